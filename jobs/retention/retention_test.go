package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exitwal "reclaim/infra/wal/exit"
	"reclaim/snapshot"
)

type fakeCheckpoints struct{ snap *snapshot.Snapshot }

func (f fakeCheckpoints) Latest() *snapshot.Snapshot { return f.snap }

type fakeOutbox struct {
	upTo []uint64
	err  error
}

func (f *fakeOutbox) PruneAcked(upTo uint64) (int, error) {
	f.upTo = append(f.upTo, upTo)
	return 2, f.err
}

type fakeJournal struct{ before []uint64 }

func (f *fakeJournal) TruncateBefore(seq uint64) (int, error) {
	f.before = append(f.before, seq)
	return 1, nil
}

func TestPruneUsesLatestSnapshot(t *testing.T) {
	outbox := &fakeOutbox{}
	journal := &fakeJournal{}
	p := NewPruner(fakeCheckpoints{&snapshot.Snapshot{Seq: 4, JournalSeq: 90}}, outbox, journal)

	res, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{SnapshotSeq: 4, OutboxEntries: 2, JournalSegments: 1}, res)
	assert.Equal(t, []uint64{3}, outbox.upTo)
	assert.Equal(t, []uint64{90}, journal.before)
}

func TestPruneWithoutSnapshotIsNoop(t *testing.T) {
	outbox := &fakeOutbox{}
	p := NewPruner(fakeCheckpoints{}, outbox, nil)

	res, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Empty(t, outbox.upTo)
}

func TestPruneReportsOutboxError(t *testing.T) {
	boom := errors.New("boom")
	journal := &fakeJournal{}
	p := NewPruner(fakeCheckpoints{&snapshot.Snapshot{Seq: 2}}, &fakeOutbox{err: boom}, journal)

	_, err := p.Prune(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, journal.before)
}

func TestPruneKeepsNewestOutboxEntry(t *testing.T) {
	outbox, err := exitwal.OpenFS("outbox", vfs.NewMem())
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, outbox.PutNew(seq, []byte("snap")))
		require.NoError(t, outbox.UpdateState(seq, exitwal.StateAcked, 0))
	}

	p := NewPruner(fakeCheckpoints{&snapshot.Snapshot{Seq: 3}}, outbox, nil)
	res, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.OutboxEntries)

	last, err := outbox.Last()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
	_, err = outbox.Get(2)
	assert.ErrorIs(t, err, exitwal.ErrNotFound)
}

func TestPruneFirstSnapshotKeepsOutbox(t *testing.T) {
	outbox := &fakeOutbox{}
	p := NewPruner(fakeCheckpoints{&snapshot.Snapshot{Seq: 1, JournalSeq: 5}}, outbox, &fakeJournal{})

	_, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outbox.upTo)
}

func TestSchedulerLifecycle(t *testing.T) {
	p := NewPruner(fakeCheckpoints{}, nil, nil)

	s := NewScheduler(p, "@every 1h", nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	require.NotNil(t, s.NextRun())
	assert.WithinDuration(t, time.Now().Add(time.Hour), *s.NextRun(), time.Minute)

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewPruner(fakeCheckpoints{}, nil, nil), "every tuesday", nil)
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestSchedulerEmptyScheduleDisabled(t *testing.T) {
	s := NewScheduler(NewPruner(fakeCheckpoints{}, nil, nil), "", nil)
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRun())
}
