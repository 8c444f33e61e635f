package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"staylog/src/events"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func GetKafkaProducerConfig(clientId string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":  os.Getenv("KAFKA_BROKER"),
		"client.id":          clientId,
		"acks":               "all",
		"enable.idempotence": true,
	}
}

func KafkaCreateTopics(ctx context.Context, topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
	})
	if err != nil {
		log.Printf("Error on AdminClient: %s\n", err.Error())
		return nil, err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     10,
			ReplicationFactor: 1,
		})
	}
	result, err := a.CreateTopics(ctx, topicsDef)
	if err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
		return nil, err
	}
	return result, nil
}

// SettlementMessage keys the record by payment id so one payment always lands
// on the same partition.
func SettlementMessage(topic string, e events.SettlementConfirmed) (*kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.FormatUint(uint64(e.PaymentID), 10)),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Kind())},
		},
	}, nil
}

// SettlementRelay forwards committed settlements to a kafka topic for
// reporting consumers outside this service.
type SettlementRelay struct {
	producer *kafka.Producer
	topic    string
}

func NewSettlementRelay(clientId, topic string) (*SettlementRelay, error) {
	p, err := kafka.NewProducer(GetKafkaProducerConfig(clientId))
	if err != nil {
		log.Printf("Error on producer: %s\n", err.Error())
		return nil, err
	}
	return &SettlementRelay{producer: p, topic: topic}, nil
}

func (r *SettlementRelay) Register(bus *events.Bus) {
	bus.Subscribe(events.KindSettlementConfirmed, "kafka.settlement", func(ctx context.Context, e events.Event) error {
		return r.Publish(ctx, e.(events.SettlementConfirmed))
	})
}

func (r *SettlementRelay) Publish(ctx context.Context, e events.SettlementConfirmed) error {
	msg, err := SettlementMessage(r.topic, e)
	if err != nil {
		return err
	}
	delivery := make(chan kafka.Event, 1)
	if err := r.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("produce settlement %d: %w", e.PaymentID, err)
	}
	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery report %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver settlement %d: %w", e.PaymentID, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *SettlementRelay) Close() {
	r.producer.Flush(5000)
	r.producer.Close()
}
