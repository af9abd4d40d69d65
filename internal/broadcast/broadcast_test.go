package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gobigtech/status-service/internal/repository"
)

// fakeSubscriber записывает все полученные snapshot-ы
type fakeSubscriber struct {
	mu       sync.Mutex
	received []repository.OrderState
	sendErr  error
	closed   bool
}

func (f *fakeSubscriber) Send(state repository.OrderState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, state)
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSubscriber) states() []repository.OrderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.OrderState, len(f.received))
	copy(out, f.received)
	return out
}

// stallingSubscriber виснет внутри Send до явного release
type stallingSubscriber struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStallingSubscriber() *stallingSubscriber {
	return &stallingSubscriber{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *stallingSubscriber) Send(repository.OrderState) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *stallingSubscriber) Close() error { return nil }

func state(orderID string, status repository.Status, events int) repository.OrderState {
	evs := make([]repository.EventRecord, events)
	for i := range evs {
		evs[i] = repository.EventRecord{EventType: "e", Timestamp: time.Now()}
	}
	return repository.OrderState{OrderID: orderID, Status: status, Events: evs}
}

func TestSubscribe_InitialSnapshotBeforePushes(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	sub := &fakeSubscriber{}

	registry.Subscribe("order-1", "sub-1", sub)
	registry.SendInitial("order-1", "sub-1", state("order-1", repository.StatusCreated, 1))

	registry.Publish("order-1", state("order-1", repository.StatusShipped, 2))

	got := sub.states()
	require.Len(t, got, 2)
	// Начальный snapshot строго раньше любого последующего mutation-push
	require.Equal(t, repository.StatusCreated, got[0].Status)
	require.Equal(t, repository.StatusShipped, got[1].Status)
}

func TestSubscribe_NoInitialForUnknownOrder(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	sub := &fakeSubscriber{}

	registry.Subscribe("order-1", "sub-1", sub)
	require.Empty(t, sub.states())
	require.Equal(t, 1, registry.Count("order-1"))
}

func TestSendInitial_UnknownSubscriberIgnored(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	// Подписчик успел отвалиться до начального снимка — это не ошибка
	registry.SendInitial("order-1", "gone", state("order-1", repository.StatusCreated, 1))
	require.Equal(t, 0, registry.Count("order-1"))
}

func TestSendInitial_DoesNotBlockOtherOrders(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	stuck := newStallingSubscriber()
	registry.Subscribe("order-1", "stuck", stuck)

	go registry.SendInitial("order-1", "stuck", state("order-1", repository.StatusCreated, 1))
	<-stuck.entered

	// Пока начальная отправка висит в транспорте, рассылка по другому
	// заказу обязана проходить: лок реестра не держится через Send
	done := make(chan struct{})
	go func() {
		registry.Publish("order-2", state("order-2", repository.StatusShipped, 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("publish for unrelated order blocked by a stalled initial send")
	}

	close(stuck.release)
}

func TestPublish_OnePushPerMutation(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	sub := &fakeSubscriber{}
	registry.Subscribe("order-1", "sub-1", sub)

	for i := 1; i <= 5; i++ {
		registry.Publish("order-1", state("order-1", repository.StatusCreated, i))
	}

	got := sub.states()
	require.Len(t, got, 5)
	for i, st := range got {
		require.Len(t, st.Events, i+1)
	}
}

func TestPublish_OnlyMatchingOrder(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	subA := &fakeSubscriber{}
	subB := &fakeSubscriber{}
	registry.Subscribe("order-a", "sub-a", subA)
	registry.Subscribe("order-b", "sub-b", subB)

	registry.Publish("order-a", state("order-a", repository.StatusCreated, 1))

	require.Len(t, subA.states(), 1)
	require.Empty(t, subB.states())
}

func TestPublish_FailedSendDropsSubscriber(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	healthy := &fakeSubscriber{}
	broken := &fakeSubscriber{sendErr: errors.New("transport gone")}
	registry.Subscribe("order-1", "healthy", healthy)
	registry.Subscribe("order-1", "broken", broken)

	registry.Publish("order-1", state("order-1", repository.StatusCreated, 1))

	// Ленивая очистка: сломанный транспорт убран и закрыт, здоровый остался
	require.Equal(t, 1, registry.Count("order-1"))
	require.True(t, broken.closed)
	require.Len(t, healthy.states(), 1)

	registry.Publish("order-1", state("order-1", repository.StatusShipped, 2))
	require.Len(t, healthy.states(), 2)
}

func TestSendInitial_FailedSendDropsSubscriber(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	broken := &fakeSubscriber{sendErr: errors.New("transport gone")}

	registry.Subscribe("order-1", "broken", broken)
	registry.SendInitial("order-1", "broken", state("order-1", repository.StatusCreated, 1))

	require.Equal(t, 0, registry.Count("order-1"))
	require.True(t, broken.closed)
}

func TestDrop_ClosesAllSubscribers(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	subA := &fakeSubscriber{}
	subB := &fakeSubscriber{}
	registry.Subscribe("order-1", "a", subA)
	registry.Subscribe("order-1", "b", subB)

	registry.Drop("order-1")

	require.Equal(t, 0, registry.Count("order-1"))
	require.True(t, subA.closed)
	require.True(t, subB.closed)

	// После Drop push-ей больше нет
	registry.Publish("order-1", state("order-1", repository.StatusShipped, 1))
	require.Empty(t, subA.states())
	require.Empty(t, subB.states())
}

func TestUnsubscribe(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	sub := &fakeSubscriber{}
	registry.Subscribe("order-1", "sub-1", sub)

	registry.Unsubscribe("order-1", "sub-1")
	require.Equal(t, 0, registry.Count("order-1"))

	registry.Publish("order-1", state("order-1", repository.StatusCreated, 1))
	require.Empty(t, sub.states())
}
