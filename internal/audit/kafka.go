package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of *kafka.Writer the shipper uses
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaShipper publishes events to a topic keyed by request ID
type KafkaShipper struct {
	writer KafkaWriter
}

// NewKafkaShipper creates a shipper writing to topic on brokers. The hash
// balancer keeps all events for one request on one partition.
func NewKafkaShipper(brokers []string, topic string) *KafkaShipper {
	return NewKafkaShipperWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	})
}

// NewKafkaShipperWithWriter allows injecting a test writer
func NewKafkaShipperWithWriter(w KafkaWriter) *KafkaShipper {
	return &KafkaShipper{writer: w}
}

// Ship writes one message per event
func (ks *KafkaShipper) Ship(ctx context.Context, event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := ks.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (ks *KafkaShipper) Close() error {
	return ks.writer.Close()
}
