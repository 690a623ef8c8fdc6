package botlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink mirrors every published log entry onto a Kafka topic, keyed by
// tenant id, so external dashboards and audit pipelines can consume the
// same stream the in-process broadcaster serves.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink writing to the given brokers and topic.
func NewKafkaSink(brokers, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 100 * time.Millisecond,
			Async:        true,
		},
	}
}

// Write implements Sink. Mirror failures are logged and dropped; the
// broadcaster must never stall on Kafka.
func (k *KafkaSink) Write(tenantID string, e Entry) {
	value, err := json.Marshal(e)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tenantID),
		Value: value,
	}); err != nil {
		slog.Warn("botlog kafka mirror write failed", "tenant", tenantID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
