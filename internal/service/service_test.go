package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/broadcast"
	"github.com/gobigtech/status-service/internal/repository"
	"github.com/gobigtech/status-service/internal/repository/memory"
)

// fakeSubscriber записывает полученные snapshot-ы
type fakeSubscriber struct {
	mu       sync.Mutex
	received []repository.OrderState
}

func (f *fakeSubscriber) Send(state repository.OrderState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, state)
	return nil
}

func (f *fakeSubscriber) Close() error { return nil }

func (f *fakeSubscriber) states() []repository.OrderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.OrderState, len(f.received))
	copy(out, f.received)
	return out
}

func newTestService() *StatusService {
	logger := zap.NewNop()
	return NewStatusService(logger, memory.NewMemoryRepository(), broadcast.NewRegistry(logger))
}

func TestApplyEvent_FullLifecycle(t *testing.T) {
	// Создание → резервирование → оплата → отгрузка для одного заказа
	ctx := context.Background()
	svc := newTestService()

	steps := []struct {
		eventType string
		payload   string
	}{
		{"OrderCreated", `{"order_id":"order-x","event_type":"OrderCreated","product_id":"P1","quantity":2}`},
		{"InventoryConfirmed", `{"order_id":"order-x","event_type":"InventoryConfirmed"}`},
		{"PaymentCompleted", `{"order_id":"order-x","event_type":"PaymentCompleted","amount":59.98}`},
		{"Shipped", `{"order_id":"order-x","event_type":"Shipped","tracking_number":"TRKABC123"}`},
	}
	for _, step := range steps {
		_, err := svc.ApplyEvent(ctx, "order-x", step.eventType, []byte(step.payload))
		require.NoError(t, err)
	}

	state, err := svc.Get(ctx, "order-x")
	require.NoError(t, err)
	require.Equal(t, repository.StatusShipped, state.Status)
	require.Equal(t, "P1", state.ProductID)
	require.Equal(t, 2, state.Quantity)
	require.Equal(t, 59.98, state.PaymentAmount)
	require.Equal(t, "TRKABC123", state.TrackingNumber)
	require.Len(t, state.Events, 4)
}

func TestApplyEvent_OutOfOrderArrival(t *testing.T) {
	// Причинный порядок не восстанавливается: оплата по никогда не виданному
	// заказу материализует его сразу со статусом payment_completed
	ctx := context.Background()
	svc := newTestService()

	state, err := svc.ApplyEvent(ctx, "order-y", "PaymentCompleted",
		[]byte(`{"order_id":"order-y","event_type":"PaymentCompleted","amount":10.00}`))
	require.NoError(t, err)

	require.Equal(t, repository.StatusPaymentCompleted, state.Status)
	require.Equal(t, "", state.ProductID)
	require.Equal(t, 10.00, state.PaymentAmount)
	require.Len(t, state.Events, 1)
}

func TestApplyEvent_LastWriteWins(t *testing.T) {
	// Статус — функция последнего применённого события, независимо от
	// того, в каком порядке потоки доставили события
	ctx := context.Background()
	svc := newTestService()

	sequences := []struct {
		name   string
		events []string
		want   repository.Status
	}{
		{
			name:   "shipped after payment",
			events: []string{"OrderCreated", "PaymentCompleted", "Shipped"},
			want:   repository.StatusShipped,
		},
		{
			name:   "payment arrives after shipped",
			events: []string{"OrderCreated", "Shipped", "PaymentCompleted"},
			want:   repository.StatusPaymentCompleted,
		},
		{
			name:   "rejection arrives last",
			events: []string{"PaymentCompleted", "InventoryRejected"},
			want:   repository.StatusInventoryRejected,
		},
	}

	for _, seq := range sequences {
		t.Run(seq.name, func(t *testing.T) {
			orderID := "order-" + seq.name
			for _, eventType := range seq.events {
				_, err := svc.ApplyEvent(ctx, orderID, eventType, []byte(`{}`))
				require.NoError(t, err)
			}
			state, err := svc.Get(ctx, orderID)
			require.NoError(t, err)
			require.Equal(t, seq.want, state.Status)
			require.Len(t, state.Events, len(seq.events))
		})
	}
}

func TestApplyEvent_UnknownKindAppendsOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "order-1", "OrderCreated",
		[]byte(`{"product_id":"P1","quantity":1}`))
	require.NoError(t, err)

	state, err := svc.ApplyEvent(ctx, "order-1", "RefundRequested", []byte(`{"reason":"test"}`))
	require.NoError(t, err)

	// Неизвестный вид попадает в историю, но не меняет статус
	require.Equal(t, repository.StatusCreated, state.Status)
	require.Len(t, state.Events, 2)
	require.Equal(t, "RefundRequested", state.Events[1].EventType)
}

func TestApplyEvent_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "", "OrderCreated", []byte(`{}`))
	require.Error(t, err)

	_, err = svc.ApplyEvent(ctx, "order-1", "", []byte(`{}`))
	require.Error(t, err)
}

func TestSubscribe_SnapshotThenPush(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "order-1", "OrderCreated",
		[]byte(`{"product_id":"P1","quantity":1}`))
	require.NoError(t, err)

	sub := &fakeSubscriber{}
	svc.Subscribe(ctx, "order-1", "sub-1", sub)

	// Ровно один начальный snapshot до любых mutation-push
	got := sub.states()
	require.Len(t, got, 1)
	require.Equal(t, repository.StatusCreated, got[0].Status)
	require.Len(t, got[0].Events, 1)

	// Каждая мутация — ровно один push со свежим полным снимком
	_, err = svc.ApplyEvent(ctx, "order-1", "InventoryConfirmed", []byte(`{}`))
	require.NoError(t, err)
	_, err = svc.ApplyEvent(ctx, "order-1", "Shipped", []byte(`{"tracking_number":"TRK1"}`))
	require.NoError(t, err)

	got = sub.states()
	require.Len(t, got, 3)
	require.Equal(t, repository.StatusInventoryConfirmed, got[1].Status)
	require.Len(t, got[1].Events, 2)
	require.Equal(t, repository.StatusShipped, got[2].Status)
	require.Len(t, got[2].Events, 3)
	require.Equal(t, "TRK1", got[2].TrackingNumber)
}

// getHookRepo вызывает onGet перед каждым чтением состояния
type getHookRepo struct {
	repository.StatusRepository
	onGet func()
}

func (r *getHookRepo) Get(ctx context.Context, orderID string) (repository.OrderState, error) {
	if r.onGet != nil {
		r.onGet()
	}
	return r.StatusRepository.Get(ctx, orderID)
}

func TestSubscribe_MutationDuringSnapshotRead(t *testing.T) {
	// Событие, прилетевшее между регистрацией подписчика и чтением начального
	// снимка, не должно теряться: регистрация идёт первой, поэтому такая
	// мутация доходит обычным push-ом
	ctx := context.Background()
	logger := zap.NewNop()
	hooked := &getHookRepo{StatusRepository: memory.NewMemoryRepository()}
	svc := NewStatusService(logger, hooked, broadcast.NewRegistry(logger))

	_, err := svc.ApplyEvent(ctx, "order-1", "OrderCreated", []byte(`{"product_id":"P1"}`))
	require.NoError(t, err)

	var once sync.Once
	hooked.onGet = func() {
		once.Do(func() {
			_, err := svc.ApplyEvent(ctx, "order-1", "Shipped",
				[]byte(`{"tracking_number":"TRK1"}`))
			require.NoError(t, err)
		})
	}

	sub := &fakeSubscriber{}
	svc.Subscribe(ctx, "order-1", "sub-1", sub)

	// Push с отгрузкой, затем начальный снимок — уже тоже с отгрузкой;
	// подписчик ни при каком исходе не застревает на created
	got := sub.states()
	require.Len(t, got, 2)
	require.Equal(t, repository.StatusShipped, got[0].Status)
	require.Equal(t, repository.StatusShipped, got[1].Status)
}

func TestSubscribe_BeforeFirstEvent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	// Подписка на ещё не существующий заказ: начального снимка нет,
	// первый push приходит с первым событием
	sub := &fakeSubscriber{}
	svc.Subscribe(ctx, "order-1", "sub-1", sub)
	require.Empty(t, sub.states())

	_, err := svc.ApplyEvent(ctx, "order-1", "OrderCreated", []byte(`{"product_id":"P1"}`))
	require.NoError(t, err)

	got := sub.states()
	require.Len(t, got, 1)
	require.Equal(t, repository.StatusCreated, got[0].Status)
}

func TestDelete_TearsDownSubscribers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "order-x", "OrderCreated", []byte(`{"product_id":"P1"}`))
	require.NoError(t, err)

	sub := &fakeSubscriber{}
	svc.Subscribe(ctx, "order-x", "sub-1", sub)
	require.Len(t, sub.states(), 1)

	require.NoError(t, svc.Delete(ctx, "order-x"))

	_, err = svc.Get(ctx, "order-x")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// Пересоздание заказа с тем же ID не воскрешает старых подписчиков
	_, err = svc.ApplyEvent(ctx, "order-x", "OrderCreated", []byte(`{"product_id":"P2"}`))
	require.NoError(t, err)
	require.Len(t, sub.states(), 1)
}

func TestDelete_NotFound(t *testing.T) {
	svc := newTestService()
	require.ErrorIs(t, svc.Delete(context.Background(), "missing"), repository.ErrNotFound)
}

func TestDeleteMany_PartialSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "order-1", "OrderCreated", []byte(`{}`))
	require.NoError(t, err)
	_, err = svc.ApplyEvent(ctx, "order-2", "OrderCreated", []byte(`{}`))
	require.NoError(t, err)

	deleted, notFound := svc.DeleteMany(ctx, []string{"order-1", "missing", "order-2"})
	require.Equal(t, 2, deleted)
	require.Equal(t, 1, notFound)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.Search(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestStatistics_RevenueAndCompletion(t *testing.T) {
	// Два оплаченных заказа (10.00 и 20.00) и один с отказом склада
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.ApplyEvent(ctx, "order-1", "PaymentCompleted",
		[]byte(`{"order_id":"order-1","event_type":"PaymentCompleted","amount":10.00}`))
	require.NoError(t, err)
	_, err = svc.ApplyEvent(ctx, "order-2", "PaymentCompleted",
		[]byte(`{"order_id":"order-2","event_type":"PaymentCompleted","amount":20.00}`))
	require.NoError(t, err)
	_, err = svc.ApplyEvent(ctx, "order-3", "InventoryRejected",
		[]byte(`{"order_id":"order-3","event_type":"InventoryRejected","reason":"out of stock"}`))
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)

	require.Equal(t, 3, stats.TotalOrders)
	require.Equal(t, 30.00, stats.TotalRevenue)
	require.Equal(t, 15.00, stats.AverageOrderValue)
	require.InDelta(t, 66.7, stats.CompletionRate, 0.1)
	require.Equal(t, 2, stats.OrdersByStatus[repository.StatusPaymentCompleted])
	require.Equal(t, 1, stats.OrdersByStatus[repository.StatusInventoryRejected])
}
