// Package ingest adapts external telemetry feeds onto the engine.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fleetwatch/internal/engine"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
)

// KafkaConsumer reads telemetry samples from a Kafka topic and hands them to
// the engine in arrival order. Consumer-group partitioning keeps a device's
// samples on one consumer, preserving per-device ordering.
type KafkaConsumer struct {
	reader *kafka.Reader
	engine *engine.Engine
	logger *zap.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, eng *engine.Engine, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{reader: reader, engine: eng, logger: logger}
}

// Run consumes until ctx is cancelled. Malformed messages are logged and
// committed past, never retried: a sample that cannot parse today will not
// parse tomorrow.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var sample models.TelemetrySample
		if err := json.Unmarshal(msg.Value, &sample); err != nil {
			c.logger.Warn("dropping malformed telemetry message",
				zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			metrics.SamplesIngested.WithLabelValues("kafka").Inc()
			c.engine.HandleSample(ctx, sample)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit failed", zap.Error(err))
		}
	}
}
