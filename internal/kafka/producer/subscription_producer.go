package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/IBM/sarama"
)

// SubscriptionProducer публикует события подписок в Kafka
type SubscriptionProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewSubscriptionProducer создает новый продюсер событий подписок
func NewSubscriptionProducer(producer sarama.SyncProducer, log *logger.Logger) *SubscriptionProducer {
	return &SubscriptionProducer{
		producer: producer,
		log:      log,
	}
}

// NewSyncProducer dials the brokers with the given sarama config.
func NewSyncProducer(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return p, nil
}

// Publish отправляет событие в топик, совпадающий с его типом.
// Events of one user share a partition, keyed by user id.
func (p *SubscriptionProducer) Publish(ctx context.Context, event domain.SubscriptionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription event: %w", err)
	}

	topic := string(event.Type)
	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.UserID.String()),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: event.Timestamp,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish subscription event: %w", err)
	}

	p.log.Debugw("Published subscription event",
		"topic", topic, "subscriptionID", event.SubscriptionID, "partition", partition, "offset", offset)
	return nil
}

// Close закрывает продюсер
func (p *SubscriptionProducer) Close() error {
	return p.producer.Close()
}
