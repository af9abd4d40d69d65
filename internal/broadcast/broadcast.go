package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/repository"
)

// Subscriber — живое подключение, которому рассылаются snapshot-ы заказа.
// Send отправляет полный снимок состояния (не дифф). Реализация обязана быть
// потокобезопасной: Publish для одного заказа могут идти из разных воркеров.
type Subscriber interface {
	Send(state repository.OrderState) error
	Close() error
}

// Registry хранит подписчиков по orderID и рассылает им snapshot-ы при каждой
// мутации заказа. Собственный мьютекс покрывает всю map и никогда не берётся
// вложенно с блокировкой state store.
// Очистка ленивая: подписчик удаляется при первой неудачной отправке,
// heartbeat-ов нет.
type Registry struct {
	logger *zap.Logger
	mu     sync.Mutex
	subs   map[string]map[string]Subscriber
}

// NewRegistry создаёт новый пустой реестр подписчиков
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		subs:   make(map[string]map[string]Subscriber),
	}
}

// Subscribe регистрирует подписчика. Начальный snapshot отправляется отдельно
// через SendInitial: вызывающая сторона сперва регистрирует хэндл и только
// потом читает store, чтобы мутация между чтением и регистрацией не осталась
// неразосланной.
func (r *Registry) Subscribe(orderID, subID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[orderID] == nil {
		r.subs[orderID] = make(map[string]Subscriber)
	}
	r.subs[orderID][subID] = sub
}

// SendInitial отправляет подписчику начальный snapshot. Как и в Publish,
// отправка идёт вне лока реестра: зависший транспорт одного подписчика
// не останавливает рассылку по другим заказам. Неудачная отправка удаляет
// подписчика и закрывает его транспорт.
func (r *Registry) SendInitial(orderID, subID string, state repository.OrderState) {
	r.mu.Lock()
	sub, ok := r.subs[orderID][subID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := sub.Send(state); err != nil {
		r.logger.Warn("failed to send initial snapshot, dropping subscriber",
			zap.String("order_id", orderID),
			zap.String("subscriber_id", subID),
			zap.Error(err),
		)
		_ = sub.Close()
		r.remove(orderID, subID)
	}
}

// remove убирает подписчиков из реестра, подчищая пустую запись заказа
func (r *Registry) remove(orderID string, subIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subs, ok := r.subs[orderID]; ok {
		for _, id := range subIDs {
			delete(subs, id)
		}
		if len(subs) == 0 {
			delete(r.subs, orderID)
		}
	}
}

// Unsubscribe убирает подписчика из реестра (без закрытия транспорта:
// транспортом владеет вызывающая сторона)
func (r *Registry) Unsubscribe(orderID, subID string) {
	r.remove(orderID, subID)
}

// Publish рассылает snapshot всем подписчикам заказа.
// Хэндлы копируются под локом, отправка идёт вне лока: зависший подписчик
// задерживает только соседей по этому же заказу, но не другие заказы и не
// ingestion. Неудачная отправка удаляет подписчика и закрывает его транспорт.
func (r *Registry) Publish(orderID string, state repository.OrderState) {
	r.mu.Lock()
	subs, ok := r.subs[orderID]
	if !ok || len(subs) == 0 {
		r.mu.Unlock()
		return
	}
	targets := make(map[string]Subscriber, len(subs))
	for id, sub := range subs {
		targets[id] = sub
	}
	r.mu.Unlock()

	var failed []string
	for id, sub := range targets {
		if err := sub.Send(state); err != nil {
			r.logger.Warn("failed to push snapshot, dropping subscriber",
				zap.String("order_id", orderID),
				zap.String("subscriber_id", id),
				zap.Error(err),
			)
			_ = sub.Close()
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		r.remove(orderID, failed...)
	}
}

// Drop убирает и закрывает всех подписчиков заказа (вызывается при удалении
// заказа). Финальное сообщение не гарантируется.
func (r *Registry) Drop(orderID string) {
	r.mu.Lock()
	subs := r.subs[orderID]
	delete(r.subs, orderID)
	r.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
}

// Count возвращает число живых подписчиков заказа
func (r *Registry) Count(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[orderID])
}
