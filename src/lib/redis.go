package lib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		return nil
	}
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// Deliverer is implemented by the local stream hub.
type Deliverer interface {
	SendNotification(ctx context.Context, userID uint, payload any) error
}

type relayEnvelope struct {
	UserID  uint            `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

// NotificationRelay fans notifications out through redis pub/sub so that
// every API instance can reach the channels it holds.
type NotificationRelay struct {
	client  *redis.Client
	channel string
}

func NewNotificationRelay(client *redis.Client, channel string) *NotificationRelay {
	return &NotificationRelay{client: client, channel: channel}
}

func (r *NotificationRelay) SendNotification(ctx context.Context, userID uint, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}
	envelope, err := json.Marshal(relayEnvelope{UserID: userID, Payload: data})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, envelope).Err()
}

// Listen subscribes to the relay channel and hands every message to target
// until ctx is done. It returns once the subscription is confirmed. Delivery
// errors matching quiet are not logged.
func (r *NotificationRelay) Listen(ctx context.Context, target Deliverer, quiet ...error) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Printf("[redis] relay listening on %s\n", r.channel)
	go func() {
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				r.deliver(ctx, target, msg.Payload, quiet)
			}
		}
	}()
	return nil
}

func (r *NotificationRelay) deliver(ctx context.Context, target Deliverer, raw string, quiet []error) {
	var envelope relayEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		log.Printf("[redis] dropping malformed relay message: %s\n", err.Error())
		return
	}
	err := target.SendNotification(ctx, envelope.UserID, []byte(envelope.Payload))
	if err == nil {
		return
	}
	for _, q := range quiet {
		if errors.Is(err, q) {
			return
		}
	}
	log.Printf("[redis] relay delivery to user %d: %s\n", envelope.UserID, err.Error())
}
