package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher mirrors events onto a Kafka topic for downstream
// accounting/analytics consumers. The stream name becomes the message key.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchTimeout: 20 * time.Millisecond,
		},
		log: log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(stream),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.log.Warn("kafka publish failed", zap.String("stream", stream), zap.String("type", event.Type), zap.Error(err))
	}
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
