package lib

import (
	"staylog/src/events"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSettlementMessage(t *testing.T) {
	couponID := uint(9)
	msg, err := SettlementMessage("SettlementConfirmed", events.SettlementConfirmed{
		PaymentID: 55,
		BookingID: 10,
		Amount:    decimal.RequireFromString("120000.50"),
		CouponID:  &couponID,
	})
	require.NoError(t, err)

	assert.Equal(t, "SettlementConfirmed", *msg.TopicPartition.Topic)
	assert.Equal(t, "55", string(msg.Key))
	assert.Equal(t, int64(10), gjson.GetBytes(msg.Value, "bookingId").Int())
	assert.Equal(t, "120000.5", gjson.GetBytes(msg.Value, "amount").String())
	assert.Equal(t, int64(9), gjson.GetBytes(msg.Value, "couponId").Int())
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "settlement.confirmed", string(msg.Headers[0].Value))
}

func TestKafkaProducerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	cfg := GetKafkaProducerConfig("staylog-api")

	v, err := cfg.Get("bootstrap.servers", "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", v)
	v, _ = cfg.Get("acks", "")
	assert.Equal(t, "all", v)
}
