package events

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// KafkaSink publishes lifecycle events to a Kafka topic.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink creates a Kafka-backed sink.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Kafka event sink initialized")
	return &KafkaSink{producer: producer, topic: topic}, nil
}

// Emit publishes the event. Failures are logged and dropped; event delivery
// must never fail a settlement operation.
func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		// Key by transaction so per-transaction ordering survives partitioning
		Key:   sarama.StringEncoder(event.TransactionID.String()),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to publish event")
		return
	}

	log.Debug().
		Str("event_type", event.Type).
		Str("transaction_id", event.TransactionID.String()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Lifecycle event published")
}

// Close shuts down the underlying producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
