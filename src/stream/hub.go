package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized  = errors.New("invalid subscription token")
	ErrNoChannel     = errors.New("no open channel for user")
	ErrChannelClosed = errors.New("channel closed")
	ErrSendTimeout   = errors.New("channel send timed out")
	ErrHubClosed     = errors.New("stream hub is shut down")
)

const EventNotification = "notification"

type TokenVerifier interface {
	VerifyToken(token string) (uint, error)
}

type Options struct {
	SendTimeout time.Duration
	Lifetime    time.Duration
	Buffer      int
}

type Message struct {
	Event string
	Data  []byte
}

type userChannels struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*Channel
	// dead is set once the set has been removed from the registry
	dead bool
}

// Hub keeps every open push channel, keyed by user. No lock is held while
// a message is being pushed.
type Hub struct {
	verifier TokenVerifier
	opts     Options
	users    sync.Map
	closed   atomic.Bool
	now      func() time.Time
}

func NewHub(verifier TokenVerifier, opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 3 * time.Second
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 60 * time.Minute
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	return &Hub{verifier: verifier, opts: opts, now: time.Now}
}

func (h *Hub) Lifetime() time.Duration {
	return h.opts.Lifetime
}

// Subscribe authenticates token and registers a new channel for its user.
func (h *Hub) Subscribe(token string) (*Channel, error) {
	if h.closed.Load() {
		return nil, ErrHubClosed
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	ch := &Channel{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: h.now(),
		messages:  make(chan Message, h.opts.Buffer),
		done:      make(chan struct{}),
		hub:       h,
	}
	for {
		v, _ := h.users.LoadOrStore(userID, &userChannels{channels: make(map[uuid.UUID]*Channel)})
		set := v.(*userChannels)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		set.channels[ch.ID] = ch
		set.mu.Unlock()
		if h.closed.Load() {
			ch.Close()
			return nil, ErrHubClosed
		}
		log.Printf("[StreamHub] channel %s opened for user %d\n", ch.ID, userID)
		return ch, nil
	}
}

func (h *Hub) remove(ch *Channel) {
	v, ok := h.users.Load(ch.UserID)
	if !ok {
		return
	}
	set := v.(*userChannels)
	set.mu.Lock()
	defer set.mu.Unlock()
	delete(set.channels, ch.ID)
	if len(set.channels) == 0 && !set.dead {
		set.dead = true
		h.users.CompareAndDelete(ch.UserID, set)
	}
}

// Channels returns a snapshot of the user's open channels.
func (h *Hub) Channels(userID uint) []*Channel {
	v, ok := h.users.Load(userID)
	if !ok {
		return nil
	}
	set := v.(*userChannels)
	set.mu.Lock()
	defer set.mu.Unlock()
	snapshot := make([]*Channel, 0, len(set.channels))
	for _, ch := range set.channels {
		snapshot = append(snapshot, ch)
	}
	return snapshot
}

func (h *Hub) Count() int {
	total := 0
	h.users.Range(func(key, value any) bool {
		set := value.(*userChannels)
		set.mu.Lock()
		total += len(set.channels)
		set.mu.Unlock()
		return true
	})
	return total
}

func (h *Hub) all() []*Channel {
	var channels []*Channel
	h.users.Range(func(key, value any) bool {
		channels = append(channels, h.Channels(key.(uint))...)
		return true
	})
	return channels
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}

// SendNotification pushes payload to every open channel of userID
// concurrently. A channel that cannot take the message within the send
// timeout is closed and deregistered.
func (h *Hub) SendNotification(ctx context.Context, userID uint, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	channels := h.Channels(userID)
	if len(channels) == 0 {
		return ErrNoChannel
	}
	msg := Message{Event: EventNotification, Data: data}
	errs := make([]error, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ch.send(ctx, msg, h.opts.SendTimeout)
			if err == nil {
				return
			}
			errs[i] = fmt.Errorf("channel %s: %w", ch.ID, err)
			if errors.Is(err, ErrSendTimeout) || errors.Is(err, ErrChannelClosed) {
				log.Printf("[StreamHub] evicting channel %s of user %d: %s\n", ch.ID, userID, err.Error())
				ch.Close()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// EvictExpired closes channels older than the configured lifetime.
func (h *Hub) EvictExpired() int {
	now := h.now()
	evicted := 0
	for _, ch := range h.all() {
		if ch.Expired(now, h.opts.Lifetime) {
			ch.Close()
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[StreamHub] evicted %d expired channels\n", evicted)
	}
	return evicted
}

func (h *Hub) Shutdown() {
	h.closed.Store(true)
	for _, ch := range h.all() {
		ch.Close()
	}
}
