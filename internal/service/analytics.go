package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gobigtech/status-service/internal/repository"
)

// recentOrdersLimit — сколько последних заказов попадает в статистику
const recentOrdersLimit = 10

// FilterQuery — параметры фильтрации, как их прислал клиент.
// Даты в формате YYYY-MM-DD; некорректная дата логируется сервисом
// и трактуется как отсутствие фильтра.
type FilterQuery struct {
	Status    string `json:"status"`
	ProductID string `json:"product_id"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// orderFilter — разобранный предикат фильтрации
type orderFilter struct {
	status    string
	productID string
	dateFrom  time.Time
	dateTo    time.Time // эксклюзивная граница
	limit     int
	offset    int
}

// Statistics — агрегированная статистика по всем заказам
type Statistics struct {
	TotalOrders       int                       `json:"total_orders"`
	OrdersByStatus    map[repository.Status]int `json:"orders_by_status"`
	OrdersByProduct   map[string]int            `json:"orders_by_product"`
	RecentOrders      []repository.OrderState   `json:"recent_orders"`
	TotalRevenue      float64                   `json:"total_revenue"`
	AverageOrderValue float64                   `json:"average_order_value"`
	CompletionRate    float64                   `json:"completion_rate"`
	ProcessingTime    map[string]string         `json:"processing_time"`
}

// DailyReport — отчёт за один календарный день
type DailyReport struct {
	Date            string                    `json:"date"`
	TotalOrders     int                       `json:"total_orders"`
	OrdersByStatus  map[repository.Status]int `json:"orders_by_status"`
	OrdersByProduct map[string]int            `json:"orders_by_product"`
	TotalRevenue    float64                   `json:"total_revenue"`
	Orders          []repository.OrderState   `json:"orders"`
}

// revenueRecognized: выручка считается только по заказам с подтверждённой
// оплатой (payment_completed или более поздняя стадия shipped)
func revenueRecognized(status repository.Status) bool {
	return status == repository.StatusPaymentCompleted || status == repository.StatusShipped
}

// sortByRecency сортирует заказы по last_updated, новые первыми
func sortByRecency(orders []repository.OrderState) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].LastUpdated.After(orders[j].LastUpdated)
	})
}

// filterOrders применяет предикат к снимку, сортирует по свежести
// и пагинирует строго после сортировки.
// Линейный скан без индексов — приемлемо на PoC-масштабе.
func filterOrders(orders []repository.OrderState, f orderFilter) []repository.OrderState {
	result := make([]repository.OrderState, 0)

	for _, order := range orders {
		if f.status != "" && string(order.Status) != f.status {
			continue
		}
		if f.productID != "" && order.ProductID != f.productID {
			continue
		}
		if !f.dateFrom.IsZero() && order.LastUpdated.Before(f.dateFrom) {
			continue
		}
		if !f.dateTo.IsZero() && !order.LastUpdated.Before(f.dateTo) {
			continue
		}
		result = append(result, order)
	}

	sortByRecency(result)

	if f.offset > 0 {
		if f.offset >= len(result) {
			return []repository.OrderState{}
		}
		result = result[f.offset:]
	}
	if f.limit > 0 && f.limit < len(result) {
		result = result[:f.limit]
	}

	return result
}

// searchOrders ищет подстроку (без учёта регистра) в идентификаторе заказа,
// продукте, статусе и трек-номере. Результат отсортирован по свежести.
func searchOrders(orders []repository.OrderState, query string) []repository.OrderState {
	q := strings.ToLower(query)
	result := make([]repository.OrderState, 0)

	for _, order := range orders {
		if strings.Contains(strings.ToLower(order.OrderID), q) ||
			strings.Contains(strings.ToLower(order.ProductID), q) ||
			strings.Contains(strings.ToLower(string(order.Status)), q) ||
			strings.Contains(strings.ToLower(order.TrackingNumber), q) {
			result = append(result, order)
		}
	}

	sortByRecency(result)
	return result
}

// computeStatistics считает агрегаты по снимку всех заказов
func computeStatistics(orders []repository.OrderState) Statistics {
	stats := Statistics{
		OrdersByStatus:  make(map[repository.Status]int),
		OrdersByProduct: make(map[string]int),
		ProcessingTime:  make(map[string]string),
		RecentOrders:    make([]repository.OrderState, 0),
	}

	var totalRevenue float64
	var paidOrders int

	for _, order := range orders {
		stats.TotalOrders++
		stats.OrdersByStatus[order.Status]++
		if order.ProductID != "" {
			stats.OrdersByProduct[order.ProductID]++
		}
		if revenueRecognized(order.Status) {
			totalRevenue += order.PaymentAmount
			paidOrders++
		}
	}

	// Последние N заказов: сортируем весь снимок, потом отрезаем
	recent := make([]repository.OrderState, len(orders))
	copy(recent, orders)
	sortByRecency(recent)
	if len(recent) > recentOrdersLimit {
		recent = recent[:recentOrdersLimit]
	}
	stats.RecentOrders = recent

	stats.TotalRevenue = totalRevenue
	if paidOrders > 0 {
		stats.AverageOrderValue = totalRevenue / float64(paidOrders)
	}
	if stats.TotalOrders > 0 {
		stats.CompletionRate = float64(paidOrders) / float64(stats.TotalOrders) * 100
	}

	// Средняя задержка по стадиям: для каждого заказа с >=2 событиями
	// считаем отставание каждого следующего события от первого,
	// усредняем по порядковому номеру стадии
	stageDurations := make(map[string][]time.Duration)
	for _, order := range orders {
		if len(order.Events) < 2 {
			continue
		}
		first := order.Events[0].Timestamp
		for i, event := range order.Events[1:] {
			stage := fmt.Sprintf("stage_%d", i+1)
			stageDurations[stage] = append(stageDurations[stage], event.Timestamp.Sub(first))
		}
	}
	for stage, durations := range stageDurations {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		stats.ProcessingTime[stage] = (total / time.Duration(len(durations))).String()
	}

	return stats
}

// buildDailyReport строит отчёт за календарный день [day, day+24h)
func buildDailyReport(orders []repository.OrderState, day time.Time) DailyReport {
	report := DailyReport{
		Date:            day.Format("2006-01-02"),
		OrdersByStatus:  make(map[repository.Status]int),
		OrdersByProduct: make(map[string]int),
	}

	dayOrders := filterOrders(orders, orderFilter{
		dateFrom: day,
		dateTo:   day.Add(24 * time.Hour),
	})

	for _, order := range dayOrders {
		report.OrdersByStatus[order.Status]++
		if order.ProductID != "" {
			report.OrdersByProduct[order.ProductID]++
		}
		if revenueRecognized(order.Status) {
			report.TotalRevenue += order.PaymentAmount
		}
	}

	report.TotalOrders = len(dayOrders)
	report.Orders = dayOrders
	return report
}
