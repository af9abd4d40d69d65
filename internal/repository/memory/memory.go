package memory

import (
	"context"
	"sync"

	"github.com/gobigtech/status-service/internal/repository"
)

// MemoryRepository реализует StatusRepository используя in-memory хранилище.
// Одна грубая RWMutex на всю map (не per-entry) — обменяли пропускную
// способность на простоту. Состояние живёт только в памяти: рестарт процесса
// теряет агрегат, retention-политики нет — заказы хранятся до явного Delete.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*repository.OrderState
}

// NewMemoryRepository создаёт новый in-memory репозиторий
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[string]*repository.OrderState),
	}
}

// Apply атомарно применяет событие к заказу.
// Первое событие для неизвестного orderID материализует заказ со статусом created.
// История append-only: запись дописывается всегда, даже для неизвестных видов
// событий; статус меняется только если вид есть в таблице переходов.
func (r *MemoryRepository) Apply(ctx context.Context, orderID string, upd repository.EventUpdate) (repository.OrderState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.orders[orderID]
	if !exists {
		order = &repository.OrderState{
			OrderID: orderID,
			Status:  repository.StatusCreated,
			Events:  make([]repository.EventRecord, 0),
		}
		r.orders[orderID] = order
	}

	order.Events = append(order.Events, upd.Record)
	order.LastUpdated = upd.Record.Timestamp

	if status, ok := upd.Kind.Status(); ok {
		order.Status = status
	}

	// Опциональные поля выставляются только несущим событием и не очищаются
	if upd.ProductID != "" {
		order.ProductID = upd.ProductID
	}
	if upd.Quantity != 0 {
		order.Quantity = upd.Quantity
	}
	if upd.PaymentAmount != 0 {
		order.PaymentAmount = upd.PaymentAmount
	}
	if upd.TrackingNumber != "" {
		order.TrackingNumber = upd.TrackingNumber
	}

	return order.Clone(), nil
}

// Get возвращает глубокую копию заказа по ID
func (r *MemoryRepository) Get(ctx context.Context, orderID string) (repository.OrderState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[orderID]
	if !exists {
		return repository.OrderState{}, repository.ErrNotFound
	}

	return order.Clone(), nil
}

// Snapshot возвращает глубокие копии всех заказов.
// Копирование под shared lock — единственное, на что читатели
// могут задержать ingestion
func (r *MemoryRepository) Snapshot(ctx context.Context) ([]repository.OrderState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]repository.OrderState, 0, len(r.orders))
	for _, order := range r.orders {
		result = append(result, order.Clone())
	}
	return result, nil
}

// Delete удаляет заказ целиком (вместе со всей историей)
func (r *MemoryRepository) Delete(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[orderID]; !exists {
		return repository.ErrNotFound
	}
	delete(r.orders, orderID)
	return nil
}
