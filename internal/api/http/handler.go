package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/repository"
	"github.com/gobigtech/status-service/internal/service"
)

// Handler содержит HTTP-обработчики Status Service.
// Зависит только от service слоя, бизнес-логики не содержит.
type Handler struct {
	logger  *zap.Logger
	service *service.StatusService
}

// NewHandler создаёт новый HTTP handler
func NewHandler(logger *zap.Logger, svc *service.StatusService) *Handler {
	return &Handler{
		logger:  logger,
		service: svc,
	}
}

// OrdersResponse — список заказов с размером выборки
type OrdersResponse struct {
	Orders []repository.OrderState `json:"orders"`
	Count  int                     `json:"count"`
}

// FilteredResponse дополняет список эффективным фильтром
type FilteredResponse struct {
	Orders []repository.OrderState `json:"orders"`
	Count  int                     `json:"count"`
	Filter service.FilterQuery     `json:"filter"`
}

// SearchResponse дополняет список строкой запроса
type SearchResponse struct {
	Orders []repository.OrderState `json:"orders"`
	Count  int                     `json:"count"`
	Query  string                  `json:"query"`
}

// EventsResponse — история событий одного заказа
type EventsResponse struct {
	OrderID string                   `json:"order_id"`
	Events  []repository.EventRecord `json:"events"`
	Count   int                      `json:"count"`
}

// DeleteResponse — подтверждение удаления одного заказа
type DeleteResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
}

// BulkDeleteRequest — запрос на пакетное удаление
type BulkDeleteRequest struct {
	OrderIDs []string `json:"order_ids"`
}

// BulkDeleteResponse — по-элементный итог пакетного удаления
type BulkDeleteResponse struct {
	Deleted        int `json:"deleted"`
	NotFound       int `json:"not_found"`
	TotalRequested int `json:"total_requested"`
}

// GetOrderStatus обрабатывает GET /status/{orderID}
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.Error("failed to get order", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListOrders обрабатывает GET /orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, OrdersResponse{Orders: orders, Count: len(orders)})
}

// FilterOrders обрабатывает GET /orders/filtered
func (h *Handler) FilterOrders(w http.ResponseWriter, r *http.Request) {
	query := service.FilterQuery{
		Status:    r.URL.Query().Get("status"),
		ProductID: r.URL.Query().Get("product_id"),
		DateFrom:  r.URL.Query().Get("date_from"),
		DateTo:    r.URL.Query().Get("date_to"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			query.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			query.Offset = offset
		}
	}

	h.filtered(w, r, query)
}

// OrdersByStatus обрабатывает GET /orders/status/{status}
func (h *Handler) OrdersByStatus(w http.ResponseWriter, r *http.Request) {
	h.filtered(w, r, service.FilterQuery{Status: chi.URLParam(r, "status")})
}

// OrdersByProduct обрабатывает GET /orders/product/{productID}
func (h *Handler) OrdersByProduct(w http.ResponseWriter, r *http.Request) {
	h.filtered(w, r, service.FilterQuery{ProductID: chi.URLParam(r, "productID")})
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request, query service.FilterQuery) {
	orders, err := h.service.Filter(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to filter orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, FilteredResponse{
		Orders: orders,
		Count:  len(orders),
		Filter: query,
	})
}

// SearchOrders обрабатывает GET /orders/search?q=
func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	orders, err := h.service.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "Search query 'q' is required")
			return
		}
		h.logger.Error("failed to search orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Orders: orders,
		Count:  len(orders),
		Query:  query,
	})
}

// OrderEvents обрабатывает GET /orders/{orderID}/events
func (h *Handler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	events, err := h.service.Events(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.Error("failed to get order events", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, EventsResponse{
		OrderID: orderID,
		Events:  events,
		Count:   len(events),
	})
}

// Statistics обрабатывает GET /statistics
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute statistics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// DailyReport обрабатывает GET /reports/daily/{date}
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	dateStr := chi.URLParam(r, "date")

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return
	}

	report, err := h.service.DailyReport(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to build daily report", zap.String("date", dateStr), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// DeleteOrder обрабатывает DELETE /orders/{orderID}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	if err := h.service.Delete(r.Context(), orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.Error("failed to delete order", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{
		Message: "Order deleted successfully",
		OrderID: orderID,
	})
}

// BulkDeleteOrders обрабатывает POST /orders/bulk-delete.
// Частичный успех допустим: ответ содержит счётчики deleted/not_found.
func (h *Handler) BulkDeleteOrders(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if len(req.OrderIDs) == 0 {
		writeError(w, http.StatusBadRequest, "order_ids is required")
		return
	}

	deleted, notFound := h.service.DeleteMany(r.Context(), req.OrderIDs)

	writeJSON(w, http.StatusOK, BulkDeleteResponse{
		Deleted:        deleted,
		NotFound:       notFound,
		TotalRequested: len(req.OrderIDs),
	})
}

// writeJSON сериализует ответ с указанным статусом
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError сериализует ошибку в формате {"error": ...}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
