package httpapi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/repository"
)

// upgrader принимает подключения с любого Origin: сервис стоит за
// внутренним периметром, аутентификации на этом слое нет
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSubscriber адаптирует *websocket.Conn под broadcast.Subscriber.
// Мьютекс на запись обязателен: push-и для одного заказа могут приходить
// из разных ingestion-воркеров одновременно.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{conn: conn}
}

// Send отправляет полный snapshot состояния заказа как JSON
func (s *wsSubscriber) Send(state repository.OrderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(state)
}

// Close закрывает транспорт; финальное сообщение не отправляется
func (s *wsSubscriber) Close() error {
	return s.conn.Close()
}

// Subscribe обрабатывает GET /ws/{orderID}: поднимает WebSocket, регистрирует
// подписчика (с немедленной отправкой текущего snapshot-а, если заказ есть)
// и держит соединение до обрыва с любой из сторон.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	subID := uuid.NewString()
	sub := newWSSubscriber(conn)
	h.service.Subscribe(r.Context(), orderID, subID, sub)

	// Входящие сообщения не интерпретируются: читаем только ради
	// детекции закрытия со стороны клиента
	defer func() {
		h.service.Unsubscribe(orderID, subID)
		conn.Close()
		h.logger.Info("websocket connection closed",
			zap.String("order_id", orderID),
			zap.String("subscriber_id", subID),
		)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
