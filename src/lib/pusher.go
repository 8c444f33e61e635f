package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pusher/pusher-http-go/v5"
)

const pusherNotificationEvent = "notification"

var pusherClient *pusher.Client

// GetPusherClient returns nil unless PUSHER_APP_ID is configured.
func GetPusherClient() *pusher.Client {
	if pusherClient != nil {
		return pusherClient
	}
	if os.Getenv("PUSHER_APP_ID") == "" {
		return nil
	}
	pusherClient = &pusher.Client{
		AppID:   os.Getenv("PUSHER_APP_ID"),
		Key:     os.Getenv("PUSHER_KEY"),
		Secret:  os.Getenv("PUSHER_SECRET"),
		Cluster: os.Getenv("PUSHER_CLUSTER"),
		Secure:  true,
	}
	return pusherClient
}

func PusherUserChannel(userID uint) string {
	return fmt.Sprintf("private-user-%d", userID)
}

// PusherSender mirrors notifications to a per-user Pusher channel for
// clients that are not holding a stream open.
type PusherSender struct {
	client *pusher.Client
}

func NewPusherSender(client *pusher.Client) *PusherSender {
	return &PusherSender{client: client}
}

func (p *PusherSender) SendNotification(ctx context.Context, userID uint, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if raw, ok := payload.([]byte); ok {
		payload = json.RawMessage(raw)
	}
	if err := p.client.Trigger(PusherUserChannel(userID), pusherNotificationEvent, payload); err != nil {
		return fmt.Errorf("pusher trigger for user %d: %w", userID, err)
	}
	return nil
}
