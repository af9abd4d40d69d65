package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается при обращении к несуществующему заказу
var ErrNotFound = errors.New("order not found")

// Status представляет агрегированный статус заказа.
// Статус всегда является функцией последнего применённого события,
// переходы не валидируются против бизнес-порядка (last-write-wins).
type Status string

const (
	StatusCreated            Status = "created"
	StatusInventoryConfirmed Status = "inventory_confirmed"
	StatusInventoryRejected  Status = "inventory_rejected"
	StatusPaymentCompleted   Status = "payment_completed"
	StatusPaymentFailed      Status = "payment_failed"
	StatusNotificationSent   Status = "notification_sent"
	StatusShipped            Status = "shipped"
)

// EventKind — закрытое перечисление известных видов событий.
// EventKindUnknown — явный вариант для событий вне таблицы переходов:
// такие события попадают в историю, но не меняют статус.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindOrderCreated
	EventKindInventoryConfirmed
	EventKindInventoryRejected
	EventKindPaymentCompleted
	EventKindPaymentFailed
	EventKindNotificationSent
	EventKindShipped
)

// ParseEventKind сопоставляет event_type из сообщения с известным видом события
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case "OrderCreated":
		return EventKindOrderCreated
	case "InventoryConfirmed":
		return EventKindInventoryConfirmed
	case "InventoryRejected":
		return EventKindInventoryRejected
	case "PaymentCompleted":
		return EventKindPaymentCompleted
	case "PaymentFailed":
		return EventKindPaymentFailed
	case "NotificationSent":
		return EventKindNotificationSent
	case "Shipped":
		return EventKindShipped
	default:
		return EventKindUnknown
	}
}

// Status возвращает статус из таблицы переходов для данного вида события.
// Для EventKindUnknown возвращает ok=false: статус заказа остаётся прежним.
func (k EventKind) Status() (Status, bool) {
	switch k {
	case EventKindOrderCreated:
		return StatusCreated, true
	case EventKindInventoryConfirmed:
		return StatusInventoryConfirmed, true
	case EventKindInventoryRejected:
		return StatusInventoryRejected, true
	case EventKindPaymentCompleted:
		return StatusPaymentCompleted, true
	case EventKindPaymentFailed:
		return StatusPaymentFailed, true
	case EventKindNotificationSent:
		return StatusNotificationSent, true
	case EventKindShipped:
		return StatusShipped, true
	default:
		return "", false
	}
}

// EventRecord — одна неизменяемая запись в истории заказа.
// Data хранит исходный payload как есть (audit trail), Timestamp — время
// прибытия события в агрегатор, не бизнес-время.
type EventRecord struct {
	EventType string    `json:"event_type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderState — восстановленное состояние одного заказа,
// собранное из всех наблюдавшихся для него событий
type OrderState struct {
	OrderID        string        `json:"order_id"`
	ProductID      string        `json:"product_id"`
	Quantity       int           `json:"quantity"`
	Status         Status        `json:"status"`
	Events         []EventRecord `json:"events"`
	LastUpdated    time.Time     `json:"last_updated"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
	PaymentAmount  float64       `json:"payment_amount,omitempty"`
}

// Clone возвращает глубокую копию состояния (включая слайс Events),
// чтобы читатели никогда не гонялись с конкурентными писателями
func (s OrderState) Clone() OrderState {
	out := s
	out.Events = make([]EventRecord, len(s.Events))
	copy(out.Events, s.Events)
	return out
}

// EventUpdate — подготовленная мутация состояния заказа.
// Kind определяет переход статуса, опциональные поля выставляются
// только если несущее событие их принесло (и после этого не очищаются).
type EventUpdate struct {
	Kind           EventKind
	Record         EventRecord
	ProductID      string
	Quantity       int
	PaymentAmount  float64
	TrackingNumber string
}

// StatusRepository определяет контракт хранилища состояний заказов.
// Реализация по умолчанию in-memory; интерфейс оставляет шов для
// persistent-реализации (checkpoint/replay) в будущем.
type StatusRepository interface {
	// Apply атомарно применяет событие: создаёт заказ при первом упоминании,
	// дописывает запись в историю, выполняет переход статуса.
	// Возвращает глубокую копию результирующего состояния.
	Apply(ctx context.Context, orderID string, upd EventUpdate) (OrderState, error)
	// Get возвращает глубокую копию состояния заказа или ErrNotFound
	Get(ctx context.Context, orderID string) (OrderState, error)
	// Snapshot возвращает глубокие копии всех заказов (порядок не определён)
	Snapshot(ctx context.Context) ([]OrderState, error)
	// Delete удаляет заказ целиком или возвращает ErrNotFound
	Delete(ctx context.Context, orderID string) error
}
