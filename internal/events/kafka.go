package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON, keyed by token ID so that all events
// for one token land on the same partition.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Publish(ctx context.Context, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.TokenID, 10)),
		Value: msg,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Name)},
		},
	}); err != nil {
		return fmt.Errorf("kafka: publish %s for token %d: %w", ev.Name, ev.TokenID, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
