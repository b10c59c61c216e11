// Package broadcaster publishes outbox snapshots to Kafka.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	exitwal "reclaim/infra/wal/exit"
)

// Outbox is the part of the exit WAL the broadcaster drives.
type Outbox interface {
	ScanByState(state exitwal.ExitState, fn func(seq uint64, rec exitwal.ExitRecord) error) error
	Payload(seq uint64) ([]byte, error)
	UpdateState(seq uint64, state exitwal.ExitState, retries uint32) error
}

type Broadcaster struct {
	outbox     Outbox
	producer   sarama.SyncProducer
	topic      string
	maxRetries uint32
	log        *zap.Logger
}

type Options struct {
	Topic string
	// MaxRetries bounds redelivery of FAILED entries; zero means unbounded.
	MaxRetries uint32
	Logger     *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewProducerConfig is the sarama configuration used for snapshots.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return cfg
}

// Dial connects a sync producer to brokers.
func Dial(outbox Outbox, brokers []string, opts Options) (*Broadcaster, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, err
	}
	return New(outbox, producer, opts), nil
}

func New(outbox Outbox, producer sarama.SyncProducer, opts Options) *Broadcaster {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		outbox:     outbox,
		producer:   producer,
		topic:      opts.Topic,
		maxRetries: opts.MaxRetries,
		log:        log.Named("broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run publishes pending snapshots every interval until ctx ends.
func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) error {
	b.log.Info("started", zap.String("topic", b.topic), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := b.PublishOnce(); err != nil {
				b.log.Warn("publish pass failed", zap.Error(err))
			}
		}
	}
}

// ------------------------------------------------
// PUBLISH LOGIC
// ------------------------------------------------

type pending struct {
	seq uint64
	rec exitwal.ExitRecord
}

// PublishOnce sends every NEW entry and every FAILED entry still under
// the retry limit. It returns how many were acknowledged.
func (b *Broadcaster) PublishOnce() (int, error) {
	var todo []pending
	collect := func(seq uint64, rec exitwal.ExitRecord) error {
		if rec.State == exitwal.StateFailed && b.maxRetries > 0 && rec.Retries >= b.maxRetries {
			return nil
		}
		todo = append(todo, pending{seq: seq, rec: rec})
		return nil
	}
	if err := b.outbox.ScanByState(exitwal.StateNew, collect); err != nil {
		return 0, err
	}
	if err := b.outbox.ScanByState(exitwal.StateFailed, collect); err != nil {
		return 0, err
	}

	acked := 0
	for _, p := range todo {
		ok, err := b.publish(p.seq, p.rec.Retries)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}
	return acked, nil
}

// publish reports false when Kafka rejected the message; that is not an
// error of the pass, the entry is left FAILED for the next one.
func (b *Broadcaster) publish(seq uint64, retries uint32) (bool, error) {
	payload, err := b.outbox.Payload(seq)
	if err != nil {
		return false, err
	}

	// 1️⃣ Mark SENT
	if err := b.outbox.UpdateState(seq, exitwal.StateSent, retries); err != nil {
		return false, err
	}

	// 2️⃣ Publish to Kafka
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		b.log.Warn("send failed", zap.Uint64("seq", seq), zap.Uint32("retries", retries+1), zap.Error(err))
		return false, b.outbox.UpdateState(seq, exitwal.StateFailed, retries+1)
	}

	// 3️⃣ Mark ACKED
	if err := b.outbox.UpdateState(seq, exitwal.StateAcked, retries); err != nil {
		return false, err
	}
	b.log.Debug("snapshot published",
		zap.Uint64("seq", seq),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return true, nil
}

// RecoverSent moves entries left SENT by a crash back to FAILED so they
// are retried.
func (b *Broadcaster) RecoverSent() (int, error) {
	var stuck []pending
	err := b.outbox.ScanByState(exitwal.StateSent, func(seq uint64, rec exitwal.ExitRecord) error {
		stuck = append(stuck, pending{seq: seq, rec: rec})
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i, p := range stuck {
		if err := b.outbox.UpdateState(p.seq, exitwal.StateFailed, p.rec.Retries+1); err != nil {
			return i, err
		}
	}
	return len(stuck), nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
