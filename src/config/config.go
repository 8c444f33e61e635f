package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=staylog port=5432 sslmode=disable TimeZone=Asia/Seoul"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	WEBHOOK_SIGNATURE_HEADER = "Toss-Signature"
	SETTLEMENT_TOPIC         = "SettlementConfirmed"
	NOTIFICATION_CHANNEL     = "staylog:notifications"
	DEFAULT_PAGE_SIZE        = 20
)

func GetAPIEnv() string {
	env := os.Getenv("API_ENV")
	if env == "" {
		return "local"
	}
	return env
}

// GetDatabaseDriver returns "postgres" unless DATABASE_DRIVER selects the in-memory store.
func GetDatabaseDriver() string {
	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		return "postgres"
	}
	return driver
}

func GetJWTSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func GetWebhookSecret() string {
	return os.Getenv("TOSS_WEBHOOK_SECRET")
}

func GetWebhookSecretID() string {
	return os.Getenv("TOSS_WEBHOOK_SECRET_ID")
}

func GetPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		return "8080"
	}
	return port
}

func GetEventHandlerTimeout() time.Duration {
	return durationFromEnv("EVENT_HANDLER_TIMEOUT", 10*time.Second)
}

func GetSSESendTimeout() time.Duration {
	return durationFromEnv("SSE_SEND_TIMEOUT", 3*time.Second)
}

func GetSSEChannelLifetime() time.Duration {
	return durationFromEnv("SSE_CHANNEL_LIFETIME", 60*time.Minute)
}

func GetSSEHeartbeat() time.Duration {
	return durationFromEnv("SSE_HEARTBEAT", 30*time.Second)
}

func GetSSEBuffer() int {
	return intFromEnv("SSE_BUFFER", 16)
}

func GetDefaultNotificationImage() string {
	return os.Getenv("NOTIFICATION_DEFAULT_IMAGE")
}

func GetKafkaBroker() string {
	return os.Getenv("KAFKA_BROKER")
}

func SQSConsumersEnabled() bool {
	enabled, err := strconv.ParseBool(os.Getenv("SQS_CONSUMERS_ENABLED"))
	return err == nil && enabled
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration for %s=%q, using %s\n", key, value, fallback)
		return fallback
	}
	return d
}

func intFromEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid integer for %s=%q, using %d\n", key, value, fallback)
		return fallback
	}
	return n
}
