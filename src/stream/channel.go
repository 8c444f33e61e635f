package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel is one live push connection. The message queue is never closed;
// readers select on Done.
type Channel struct {
	ID        uuid.UUID
	UserID    uint
	CreatedAt time.Time

	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

func (c *Channel) Messages() <-chan Message {
	return c.messages
}

func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) Expired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(c.CreatedAt) >= lifetime
}

// Close is idempotent and deregisters the channel from its hub.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.hub != nil {
			c.hub.remove(c)
		}
	})
}

func (c *Channel) send(ctx context.Context, msg Message, timeout time.Duration) error {
	if c.Closed() {
		return ErrChannelClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.messages <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-timer.C:
		return ErrSendTimeout
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrSendTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}
