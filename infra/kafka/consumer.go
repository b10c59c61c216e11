package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"reclaim/metrics/registry"
	"reclaim/service"
)

// Recorder receives decoded batches.
type Recorder interface {
	RecordBatch(name string, values []float64) error
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader   MessageReader
	recorder Recorder
	log      *zap.Logger
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        250 * time.Millisecond,
		CommitInterval: 0,
	})
}

func NewConsumer(r MessageReader, rec Recorder, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: r, recorder: rec, log: log.Named("ingest")}
}

// Run records messages until ctx ends. Offsets are committed only after
// the batch is recorded. Undecodable messages and invalid batches are
// logged and committed so they do not block the partition. Any other
// recording failure stops Run without committing, so the message is
// redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if err := c.handle(msg); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(msg kafka.Message) error {
	b, err := Decode(msg.Value)
	if err != nil {
		c.log.Warn("dropping message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}
	if err := c.recorder.RecordBatch(b.Name, b.Values); err != nil {
		if !rejected(err) {
			return fmt.Errorf("record offset %d: %w", msg.Offset, err)
		}
		c.log.Warn("rejected batch",
			zap.String("series", b.Name),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
	return nil
}

func rejected(err error) bool {
	return errors.Is(err, registry.ErrInvalidName) || errors.Is(err, service.ErrInvalidSample)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
