package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishFansOutAndIsolatesFailures(t *testing.T) {
	bus := NewBus(time.Second)
	var delivered atomic.Int32

	bus.Subscribe(KindSignupCompleted, "failing", func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(KindSignupCompleted, "panicking", func(ctx context.Context, e Event) error {
		panic("handler bug")
	})
	bus.Subscribe(KindSignupCompleted, "healthy", func(ctx context.Context, e Event) error {
		delivered.Add(1)
		return nil
	})

	bus.Publish(context.Background(), SignupCompleted{UserID: 1})
	bus.Wait()

	assert.Equal(t, int32(1), delivered.Load())
}

func TestPublishIgnoresOtherKinds(t *testing.T) {
	bus := NewBus(time.Second)
	var called atomic.Bool
	bus.Subscribe(KindCouponIssued, "coupon", func(ctx context.Context, e Event) error {
		called.Store(true)
		return nil
	})

	bus.Publish(context.Background(), SignupCompleted{UserID: 1})
	bus.Wait()

	assert.False(t, called.Load())
}

func TestHandlersOutliveCancelledPublisher(t *testing.T) {
	bus := NewBus(time.Second)
	var got atomic.Value
	bus.Subscribe(KindSettlementConfirmed, "probe", func(ctx context.Context, e Event) error {
		got.Store(ctx.Err() == nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, SettlementConfirmed{PaymentID: 55})
	bus.Wait()

	assert.Equal(t, true, got.Load())
}

func TestHandlerTimeoutIsEnforced(t *testing.T) {
	bus := NewBus(20 * time.Millisecond)
	var deadlineHit atomic.Bool
	bus.Subscribe(KindCouponIssued, "slow", func(ctx context.Context, e Event) error {
		<-ctx.Done()
		deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	bus.Publish(context.Background(), CouponIssued{CouponID: 1})
	bus.Wait()

	assert.True(t, deadlineHit.Load())
}

func TestPublishDoesNotWaitForHandlers(t *testing.T) {
	bus := NewBus(time.Second)
	release := make(chan struct{})
	bus.Subscribe(KindCommentCreated, "blocked", func(ctx context.Context, e Event) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), CommentCreated{CommentID: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}
	close(release)
	bus.Wait()
}

func TestOutboxFlushAndDiscard(t *testing.T) {
	bus := NewBus(time.Second)
	var mu sync.Mutex
	received := make([]uint, 0)
	bus.Subscribe(KindSettlementConfirmed, "collector", func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.(SettlementConfirmed).PaymentID)
		return nil
	})

	rolledBack := &Outbox{}
	rolledBack.Add(SettlementConfirmed{PaymentID: 1})
	rolledBack.Discard()
	assert.Equal(t, 0, bus.Flush(context.Background(), rolledBack))

	committed := &Outbox{}
	committed.Add(SettlementConfirmed{PaymentID: 2})
	assert.Equal(t, 1, committed.Len())
	assert.Equal(t, 1, bus.Flush(context.Background(), committed))
	assert.Equal(t, 0, committed.Len())
	assert.Equal(t, 0, bus.Flush(context.Background(), committed))
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint{2}, received)
}
