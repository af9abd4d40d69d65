package service

import (
	"encoding/json"
	"time"

	"github.com/gobigtech/status-service/internal/repository"
)

// Kind-специфичные payload-ы событий от upstream-сервисов.
// Имена ключей закреплены продюсерами (order/payment/shipping сервисы).
type orderCreatedPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type paymentCompletedPayload struct {
	Amount float64 `json:"amount"`
}

type shippedPayload struct {
	TrackingNumber string `json:"tracking_number"`
}

// buildEventUpdate готовит мутацию состояния из сырого события.
// Исходный payload сохраняется в записи истории как есть; kind-специфичные
// поля извлекаются только для несущих видов событий. Ошибки разбора полей
// не фатальны: событие всё равно попадает в историю, поля остаются пустыми.
func buildEventUpdate(eventType string, payload []byte, arrivedAt time.Time) repository.EventUpdate {
	upd := repository.EventUpdate{
		Kind: repository.ParseEventKind(eventType),
		Record: repository.EventRecord{
			EventType: eventType,
			Data:      string(payload),
			Timestamp: arrivedAt,
		},
	}

	switch upd.Kind {
	case repository.EventKindOrderCreated:
		var p orderCreatedPayload
		if err := json.Unmarshal(payload, &p); err == nil {
			upd.ProductID = p.ProductID
			upd.Quantity = p.Quantity
		}
	case repository.EventKindPaymentCompleted:
		var p paymentCompletedPayload
		if err := json.Unmarshal(payload, &p); err == nil {
			upd.PaymentAmount = p.Amount
		}
	case repository.EventKindShipped:
		var p shippedPayload
		if err := json.Unmarshal(payload, &p); err == nil {
			upd.TrackingNumber = p.TrackingNumber
		}
	}

	return upd
}
