package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send publishes batches keyed by series name, so one series stays on
// one partition and keeps its order.
func (p *Producer) Send(ctx context.Context, batches ...Batch) error {
	msgs := make([]kafka.Message, len(batches))
	for i, b := range batches {
		msgs[i] = kafka.Message{
			Key:   []byte(b.Name),
			Value: Encode(b),
		}
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
