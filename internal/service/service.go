package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/broadcast"
	"github.com/gobigtech/status-service/internal/repository"
)

// ErrEmptyQuery возвращается при поиске с пустой строкой запроса
var ErrEmptyQuery = errors.New("search query is required")

// StatusService — агрегатор статусов заказов.
// Владеет state store и реестром подписчиков через явные зависимости
// (никаких package-level синглтонов); один экземпляр шарится между
// ingestion-воркерами и HTTP слоем.
type StatusService struct {
	logger   *zap.Logger
	repo     repository.StatusRepository
	registry *broadcast.Registry
}

// NewStatusService создаёт новый сервис с указанными зависимостями
func NewStatusService(logger *zap.Logger, repo repository.StatusRepository, registry *broadcast.Registry) *StatusService {
	return &StatusService{
		logger:   logger,
		repo:     repo,
		registry: registry,
	}
}

// ApplyEvent применяет одно событие из любого upstream-потока.
// Переход статуса безусловный (last-write-wins по прибытию): причинный
// порядок между потоками не восстанавливается. После мутации рассылает
// свежий snapshot подписчикам заказа — блокировка store к этому моменту
// уже отпущена.
func (s *StatusService) ApplyEvent(ctx context.Context, orderID, eventType string, payload []byte) (repository.OrderState, error) {
	if orderID == "" {
		return repository.OrderState{}, fmt.Errorf("order_id is required")
	}
	if eventType == "" {
		return repository.OrderState{}, fmt.Errorf("event_type is required")
	}

	upd := buildEventUpdate(eventType, payload, time.Now())

	state, err := s.repo.Apply(ctx, orderID, upd)
	if err != nil {
		return repository.OrderState{}, err
	}

	s.logger.Debug("event applied",
		zap.String("order_id", orderID),
		zap.String("event_type", eventType),
		zap.String("status", string(state.Status)),
		zap.Int("events_total", len(state.Events)),
	)

	s.registry.Publish(orderID, state)
	return state, nil
}

// Get возвращает текущее полное состояние заказа
func (s *StatusService) Get(ctx context.Context, orderID string) (repository.OrderState, error) {
	return s.repo.Get(ctx, orderID)
}

// List возвращает все заказы, новые первыми
func (s *StatusService) List(ctx context.Context) ([]repository.OrderState, error) {
	orders, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sortByRecency(orders)
	return orders, nil
}

// Filter возвращает заказы по предикату статус/продукт/окно дат с пагинацией.
// Некорректные даты логируются и трактуются как отсутствие фильтра,
// чтобы запрос оставался устойчивым.
func (s *StatusService) Filter(ctx context.Context, q FilterQuery) ([]repository.OrderState, error) {
	f := orderFilter{
		status:    q.Status,
		productID: q.ProductID,
		limit:     q.Limit,
		offset:    q.Offset,
	}

	if q.DateFrom != "" {
		from, err := time.Parse("2006-01-02", q.DateFrom)
		if err != nil {
			s.logger.Warn("invalid date_from, ignoring filter",
				zap.String("date_from", q.DateFrom), zap.Error(err))
		} else {
			f.dateFrom = from
		}
	}
	if q.DateTo != "" {
		to, err := time.Parse("2006-01-02", q.DateTo)
		if err != nil {
			s.logger.Warn("invalid date_to, ignoring filter",
				zap.String("date_to", q.DateTo), zap.Error(err))
		} else {
			// Граница включает весь указанный день
			f.dateTo = to.Add(24 * time.Hour)
		}
	}

	orders, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return filterOrders(orders, f), nil
}

// Search ищет подстроку в идентификаторе, продукте, статусе и трек-номере.
// Пустой запрос — ошибка валидации, а не пустой результат.
func (s *StatusService) Search(ctx context.Context, query string) ([]repository.OrderState, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	orders, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return searchOrders(orders, query), nil
}

// Events возвращает только историю событий заказа
func (s *StatusService) Events(ctx context.Context, orderID string) ([]repository.EventRecord, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.Events, nil
}

// Statistics считает агрегаты по текущему снимку
func (s *StatusService) Statistics(ctx context.Context) (Statistics, error) {
	orders, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Statistics{}, err
	}
	return computeStatistics(orders), nil
}

// DailyReport строит отчёт за один календарный день
func (s *StatusService) DailyReport(ctx context.Context, day time.Time) (DailyReport, error) {
	orders, err := s.repo.Snapshot(ctx)
	if err != nil {
		return DailyReport{}, err
	}
	return buildDailyReport(orders, day), nil
}

// Delete удаляет заказ и сносит всех его живых подписчиков.
// Блокировки store и реестра независимы и не берутся вложенно: подписчик
// в худшем случае получит один последний push, гоняющийся с удалением,
// что контракт канала (нет гарантированного финального сообщения) допускает.
func (s *StatusService) Delete(ctx context.Context, orderID string) error {
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return err
	}
	s.registry.Drop(orderID)
	s.logger.Info("order deleted", zap.String("order_id", orderID))
	return nil
}

// DeleteMany удаляет заказы списком и возвращает счётчики deleted/not-found.
// Частичный успех — нормальный исход, батч не откатывается.
func (s *StatusService) DeleteMany(ctx context.Context, orderIDs []string) (deleted, notFound int) {
	for _, orderID := range orderIDs {
		if err := s.Delete(ctx, orderID); err != nil {
			notFound++
		} else {
			deleted++
		}
	}
	return deleted, notFound
}

// Subscribe регистрирует подписчика на заказ. Если заказ уже существует,
// его текущий snapshot уходит подписчику сразу после регистрации.
// Порядок строгий: сперва регистрация хэндла, потом чтение снимка —
// мутация, попавшая в просвет, дойдёт до подписчика обычным push-ом,
// а не потеряется. Подписка на ещё не существующий заказ допустима:
// snapshot придёт с первым событием.
func (s *StatusService) Subscribe(ctx context.Context, orderID, subID string, sub broadcast.Subscriber) {
	s.registry.Subscribe(orderID, subID, sub)
	if state, err := s.repo.Get(ctx, orderID); err == nil {
		s.registry.SendInitial(orderID, subID, state)
	}
	s.logger.Info("subscriber registered",
		zap.String("order_id", orderID),
		zap.String("subscriber_id", subID),
	)
}

// Unsubscribe убирает подписчика из реестра
func (s *StatusService) Unsubscribe(orderID, subID string) {
	s.registry.Unsubscribe(orderID, subID)
}
