package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(t *testing.T, size int) *Bus {
	t.Helper()
	bus := NewBus(zaptest.NewLogger(t), size)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})
	return bus
}

func settled(op string) *SettlementEvent {
	return &SettlementEvent{
		BaseEvent: BaseEvent{EventType: TokensBought, EventTime: time.Now()},
		Operation: op,
	}
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := newTestBus(t, 64)

	var (
		mu  sync.Mutex
		got []string
		wg  sync.WaitGroup
	)
	wg.Add(20)
	bus.SubscribeFunc(TokensBought, func(_ context.Context, e Event) error {
		mu.Lock()
		got = append(got, e.(*SettlementEvent).Operation)
		mu.Unlock()
		wg.Done()
		return nil
	})

	var want []string
	for i := 0; i < 20; i++ {
		op := string(rune('a' + i))
		want = append(want, op)
		require.NoError(t, bus.Publish(settled(op)))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestBus_AnyReceivesEveryType(t *testing.T) {
	bus := newTestBus(t, 8)

	var types []EventType
	bus.SubscribeFunc(Any, func(_ context.Context, e Event) error {
		types = append(types, e.Type())
		return nil
	})

	ctx := context.Background()
	require.NoError(t, bus.PublishSync(ctx, settled("buy")))
	require.NoError(t, bus.PublishSync(ctx, &OperationFailedEvent{BaseEvent: BaseEvent{EventType: OperationFailed}}))

	assert.Equal(t, []EventType{TokensBought, OperationFailed}, types)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus(t, 8)

	calls := 0
	sub := bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		calls++
		return nil
	})
	require.NoError(t, bus.PublishSync(context.Background(), settled("one")))
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), settled("two")))

	assert.Equal(t, 1, calls)
	assert.Empty(t, bus.Stats().HandlersPerType)
}

func TestBus_HandlerErrorsAreJoined(t *testing.T) {
	bus := newTestBus(t, 8)
	boom := errors.New("boom")

	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error { return boom })
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error { return nil })

	err := bus.PublishSync(context.Background(), settled("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), bus.Stats().Failed)
}

func TestBus_FullBufferDrops(t *testing.T) {
	bus := newTestBus(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	require.NoError(t, bus.Publish(settled("blocking")))
	<-started
	require.NoError(t, bus.Publish(settled("queued")))

	err := bus.Publish(settled("dropped"))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, uint64(1), bus.Stats().Dropped)
	close(release)
}

func TestBus_ShutdownDrainsAndRejects(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 16)

	var mu sync.Mutex
	count := 0
	bus.SubscribeFunc(TokensBought, func(context.Context, Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(settled("x")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))

	mu.Lock()
	assert.Equal(t, 5, count)
	mu.Unlock()
	assert.ErrorIs(t, bus.Publish(settled("late")), ErrBusClosed)
}
