package broadcaster

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exitwal "reclaim/infra/wal/exit"
)

func newOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.OpenFS("outbox", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func state(t *testing.T, w *exitwal.ExitWAL, seq uint64) exitwal.ExitRecord {
	t.Helper()
	rec, err := w.Get(seq)
	require.NoError(t, err)
	return rec
}

func TestPublishOnceAcksNewEntries(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(1, []byte("one")))
	require.NoError(t, outbox.PutNew(2, []byte("two")))

	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "one" {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	b := New(outbox, producer, Options{Topic: "snapshots"})
	n, err := b.PublishOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 1).State)
	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 2).State)
	require.NoError(t, b.Close())
}

func TestPublishFailureMarksFailedAndRetries(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(1, []byte("one")))

	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()
	defer producer.Close()

	b := New(outbox, producer, Options{Topic: "snapshots"})

	n, err := b.PublishOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	rec := state(t, outbox, 1)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	n, err = b.PublishOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, exitwal.StateAcked, state(t, outbox, 1).State)
}

func TestMaxRetriesStopsRedelivery(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(1, []byte("one")))
	require.NoError(t, outbox.UpdateState(1, exitwal.StateFailed, 3))

	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	defer producer.Close()

	b := New(outbox, producer, Options{Topic: "snapshots", MaxRetries: 3})
	n, err := b.PublishOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, exitwal.StateFailed, state(t, outbox, 1).State)
}

func TestRecoverSent(t *testing.T) {
	outbox := newOutbox(t)
	require.NoError(t, outbox.PutNew(1, nil))
	require.NoError(t, outbox.UpdateState(1, exitwal.StateSent, 0))

	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	defer producer.Close()

	b := New(outbox, producer, Options{Topic: "snapshots"})
	n, err := b.RecoverSent()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := state(t, outbox, 1)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
}
