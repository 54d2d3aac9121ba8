// Package kafka publishes dataset snapshots to a sink topic for downstream
// consumers (alerting, archival). Publishing is best effort; a failed publish
// never unwinds an already swapped snapshot.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// Writer produces one message per shelter, keyed by shelter ID so a compacted
// topic converges on the latest state of each shelter.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot serializes every shelter in the snapshot and publishes them
// in a single WriteMessages call.
func (w *Writer) PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if len(snap.Shelters) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Shelters))
	for i := range snap.Shelters {
		msg, err := serializeToMessage(snap.Shelters[i], snap.RefreshedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("snapshot published", "shelters", len(msgs), "refreshed_at", snap.RefreshedAt)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one shelter into a Kafka message.
func serializeToMessage(s domain.Shelter, refreshedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize shelter: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "availability", Value: []byte(s.Availability)},
			{Key: "refreshed_at", Value: []byte(refreshedAt.Format(time.RFC3339))},
		},
	}, nil
}
