package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/feedbot/internal/models"
)

// JobEventProducer publishes job status transitions keyed by job ID.
type JobEventProducer struct {
	producer *kafka.Producer
	topic    string
}

func NewJobEventProducer(cfg KafkaConfig) (*JobEventProducer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.Topic))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"security.protocol":  "PLAINTEXT",
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	go logProducerErrors(p)

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &JobEventProducer{producer: p, topic: cfg.Topic}, nil
}

// logProducerErrors drains client-level events. Deliveries are reported on
// per-message channels.
func logProducerErrors(p *kafka.Producer) {
	for e := range p.Events() {
		if kafkaErr, ok := e.(kafka.Error); ok {
			slog.Warn("[KafkaClient] Producer error",
				slog.String("code", kafkaErr.Code().String()),
				slog.String("error", kafkaErr.Error()))
		}
	}
}

// PublishJobEvent produces the event and waits for its delivery report.
func (jp *JobEventProducer) PublishJobEvent(ctx context.Context, event models.JobEvent) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to marshal job event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &jp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.JobID),
		Value:          jsonData,
		Headers:        []kafka.Header{{Key: "status", Value: []byte(event.Status.String())}},
	}

	delivery := make(chan kafka.Event, 1)
	for i := 0; i < MAX_RETRIES; i++ {
		err = jp.producer.Produce(msg, delivery)
		if err == nil {
			break
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		time.Sleep(RETRY_DELAY)
	}
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to produce job event after %d attempts: %w", MAX_RETRIES, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("[KafkaClient] unexpected delivery event %v", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("[KafkaClient] delivery failed: %w", m.TopicPartition.Error)
		}
	}

	slog.Debug("[KafkaClient] Published job event",
		slog.String("job_id", event.JobID),
		slog.String("status", event.Status.String()))
	return nil
}

func (jp *JobEventProducer) Close() {
	slog.Info("[KafkaClient] Shutting down Kafka producer...")
	if remaining := jp.producer.Flush(int(FLUSH_TIMEOUT.Milliseconds())); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	jp.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}
