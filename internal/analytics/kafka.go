package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "careergate/pkg/domain-errors"
)

// KafkaSink publishes funnel events to a Kafka topic. Produces are async:
// Emit hands the record to the client's buffer and returns; delivery
// failures are logged, never surfaced to the funnel. Close flushes what the
// buffer still holds.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "kafka brokers are required")
	}
	if topic == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create kafka client")
	}

	return &KafkaSink{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode analytics event")
	}

	record := &kgo.Record{
		Key:   []byte(event.SessionID),
		Value: value,
	}

	// Fire and forget. The callback only logs: analytics loss must never
	// affect the funnel.
	s.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("analytics event delivery failed",
				"topic", s.topic,
				"step", event.Step,
				"error", err,
			)
		}
	})
	return nil
}

// Close drains buffered records and releases the client.
func (s *KafkaSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.client.Flush(ctx)
	s.client.Close()
	return err
}
