package events

import (
	"context"
	"log"
	"runtime/debug"
	"slices"
	"sync"
	"time"
)

type HandlerFunc func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	name   string
	handle HandlerFunc
}

// Bus fans events out to subscribers. Every handler runs on its own
// goroutine, outside the publisher's cancellation, bounded by timeout.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Kind][]subscription
	timeout     time.Duration
	inflight    sync.WaitGroup
}

func NewBus(timeout time.Duration) *Bus {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bus{
		subscribers: make(map[Kind][]subscription),
		timeout:     timeout,
	}
}

func (b *Bus) Subscribe(kind Kind, name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], subscription{name: name, handle: handler})
	log.Printf("[EventBus] %s subscribed to %s\n", name, kind)
}

// Publish returns as soon as every handler has been scheduled.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := slices.Clone(b.subscribers[e.Kind()])
	b.mu.RUnlock()
	if len(subs) == 0 {
		log.Printf("[EventBus] no subscribers for %s\n", e.Kind())
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, sub := range subs {
		b.inflight.Add(1)
		go b.dispatch(detached, sub, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, e Event) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EventBus] %s panicked handling %s: %v\n%s", sub.name, e.Kind(), r, debug.Stack())
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := sub.handle(ctx, e); err != nil {
		log.Printf("[EventBus] %s failed handling %s: %s\n", sub.name, e.Kind(), err.Error())
	}
}

// Flush publishes everything buffered in o. Call it only after the unit of
// work that filled o has committed.
func (b *Bus) Flush(ctx context.Context, o *Outbox) int {
	pending := o.drain()
	for _, e := range pending {
		b.Publish(ctx, e)
	}
	return len(pending)
}

// Wait blocks until every scheduled handler has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// Outbox buffers events raised inside a transaction.
type Outbox struct {
	mu     sync.Mutex
	events []Event
}

func (o *Outbox) Add(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Discard drops everything buffered, used when the transaction rolls back.
func (o *Outbox) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
}

func (o *Outbox) drain() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	pending := o.events
	o.events = nil
	return pending
}
