package boot

import (
	"context"
	"log"
	"staylog/src/common"
	"staylog/src/config"
	"staylog/src/coupons"
	"staylog/src/db"
	"staylog/src/events"
	"staylog/src/lib"
	"staylog/src/middlewares"
	"staylog/src/notifications"
	"staylog/src/settlement"
	"staylog/src/store"
	"staylog/src/stream"
	"staylog/src/webhook"
	"time"

	"gorm.io/gorm"
)

const evictionInterval = 30 * time.Second

func InitDb() *gorm.DB {
	d := db.GetDb()
	if err := db.Migrate(d); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	return d
}

// InitStore picks the persistence backend from DATABASE_DRIVER.
func InitStore() store.Store {
	if config.GetDatabaseDriver() == "memory" {
		log.Println("[Store] using in-memory store")
		return store.NewMemory()
	}
	return store.NewGorm(InitDb())
}

// ResolveWebhookSecret prefers Secrets Manager when TOSS_WEBHOOK_SECRET_ID is
// set and falls back to TOSS_WEBHOOK_SECRET.
func ResolveWebhookSecret(ctx context.Context, client lib.SecretsGetter) string {
	secretID := config.GetWebhookSecretID()
	if secretID == "" || client == nil {
		return config.GetWebhookSecret()
	}
	secret, err := lib.AWSGetSecretString(ctx, client, secretID, "TOSS_WEBHOOK_SECRET")
	if err != nil {
		log.Printf("[Secrets] Error reading webhook secret: %s\n", err.Error())
		return config.GetWebhookSecret()
	}
	return secret
}

type Services struct {
	Store      store.Store
	Bus        *events.Bus
	Hub        *stream.Hub
	Verifier   *middlewares.JWTVerifier
	Gateway    *webhook.Gateway
	Settlement *settlement.StateMachine
	Dispatcher *notifications.Dispatcher
	Coupons    *coupons.Handler

	settlement *lib.SettlementRelay
	cancel     context.CancelFunc
}

// NewServices wires the pipeline around st. Live notifications go straight
// to the local hub; InitBroker may swap in the redis relay.
func NewServices(st store.Store, webhookSecret string) *Services {
	bus := events.NewBus(config.GetEventHandlerTimeout())
	verifier := middlewares.NewJWTVerifier(config.GetJWTSecret())
	hub := stream.NewHub(verifier, stream.Options{
		SendTimeout: config.GetSSESendTimeout(),
		Lifetime:    config.GetSSEChannelLifetime(),
		Buffer:      config.GetSSEBuffer(),
	})
	machine := settlement.NewStateMachine(st, bus)
	s := &Services{
		Store:      st,
		Bus:        bus,
		Hub:        hub,
		Verifier:   verifier,
		Settlement: machine,
		Gateway:    webhook.NewGateway(webhook.NewSignatureVerifier(webhookSecret), st, machine),
		Coupons:    coupons.NewHandler(st, bus),
		cancel:     func() {},
	}
	s.Coupons.Register(bus)
	return s
}

// InitBroker attaches the optional transports and registers the dispatcher.
// It must run once, before traffic is served.
func (s *Services) InitBroker(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	var sender notifications.Sender = s.Hub
	if client := lib.GetRedisClient(); client != nil {
		relay := lib.NewNotificationRelay(client, config.NOTIFICATION_CHANNEL)
		if err := relay.Listen(ctx, s.Hub, stream.ErrNoChannel); err != nil {
			log.Printf("[redis] relay disabled: %s\n", err.Error())
		} else {
			sender = relay
		}
	}
	if client := lib.GetPusherClient(); client != nil {
		log.Println("[Pusher] mirroring notifications to user channels")
		sender = notifications.FanOut{sender, lib.NewPusherSender(client)}
	}
	s.Dispatcher = notifications.NewDispatcher(s.Store, s.Store, sender, config.GetDefaultNotificationImage())
	s.Dispatcher.Register(s.Bus)

	if config.GetKafkaBroker() != "" {
		go func() {
			if _, err := lib.KafkaCreateTopics(ctx, config.SETTLEMENT_TOPIC); err != nil {
				log.Printf("[Kafka] Error creating topics: %s\n", err.Error())
			}
		}()
		relay, err := lib.NewSettlementRelay("staylog-api", config.SETTLEMENT_TOPIC)
		if err != nil {
			log.Printf("[Kafka] settlement relay disabled: %s\n", err.Error())
		} else {
			s.settlement = relay
			relay.Register(s.Bus)
		}
	}

	if config.SQSConsumersEnabled() {
		client, err := lib.AWSGetSQSClient(ctx)
		if err != nil {
			log.Printf("[SQS] consumers disabled: %s\n", err.Error())
			return
		}
		started := common.SQSConsumers(ctx, client, s.Bus)
		log.Printf("[SQS] %d consumers started\n", started)
	}
}

func (s *Services) InitScheduler() {
	if _, err := lib.CreateCronJob("stream.evict-expired", func() { s.Hub.EvictExpired() }, evictionInterval); err != nil {
		log.Printf("Error scheduling channel eviction: %s\n", err.Error())
	}
}

// Shutdown stops background work, closes every live channel and waits for
// in-flight event handlers.
func (s *Services) Shutdown() {
	lib.StopScheduler()
	s.cancel()
	s.Hub.Shutdown()
	s.Bus.Wait()
	if s.settlement != nil {
		s.settlement.Close()
	}
}
