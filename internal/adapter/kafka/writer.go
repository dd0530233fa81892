package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fleet-map/internal/config"
	"github.com/couchcryptid/fleet-map/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes marker snapshots to a Kafka topic.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot writes one message per marker in a single WriteMessages
// call. Messages are keyed by marker key so a compacted topic keeps the
// latest state of each station.
func (w *Writer) PublishSnapshot(ctx context.Context, markers []domain.Marker, renderedAt time.Time) error {
	if len(markers) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(markers))
	for i := range markers {
		msg, err := serializeToMessage(markers[i], renderedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	w.logger.Debug("snapshot published", "markers", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Marker into a Kafka message.
func serializeToMessage(m domain.Marker, renderedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize marker: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(m.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "style", Value: []byte(m.Style)},
			{Key: "status", Value: []byte(m.Popup.Status)},
			{Key: "rendered_at", Value: []byte(renderedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
