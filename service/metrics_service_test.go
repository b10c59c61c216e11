package service

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	entrywal "reclaim/infra/wal/entry"
	exitwal "reclaim/infra/wal/exit"
	"reclaim/metrics/registry"
	"reclaim/snapshot"
)

type fixture struct {
	dir     string
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL
	writer  *snapshot.Writer
	svc     *MetricsService
}

func newFixture(t *testing.T, dir string, fs vfs.FS) *fixture {
	t.Helper()

	journal, err := entrywal.Open(entrywal.Config{Dir: filepath.Join(dir, "journal")})
	require.NoError(t, err)
	outbox, err := exitwal.OpenFS("outbox", fs)
	require.NoError(t, err)

	f := &fixture{
		dir:     dir,
		journal: journal,
		outbox:  outbox,
		writer:  &snapshot.Writer{Dir: filepath.Join(dir, "snapshot")},
	}
	f.svc = NewMetricsService(
		registry.New(registry.Options{Bounds: []float64{1, 10, 100}}),
		Deps{Journal: journal, Outbox: outbox, Writer: f.writer, Logger: zaptest.NewLogger(t)},
	)
	return f
}

func (f *fixture) close() {
	f.svc.Close()
	_ = f.journal.Close()
	_ = f.outbox.Close()
}

func seriesCount(s *snapshot.Snapshot, name string) uint64 {
	for _, e := range s.Series {
		if e.Name == name {
			return e.Count
		}
	}
	return 0
}

func TestRecordValidates(t *testing.T) {
	svc := NewMetricsService(registry.New(registry.Options{}), Deps{})
	defer svc.Close()

	assert.ErrorIs(t, svc.Record("", 1), registry.ErrInvalidName)
	assert.ErrorIs(t, svc.Record("x", math.NaN()), ErrInvalidSample)
	assert.ErrorIs(t, svc.RecordBatch("x", []float64{1, math.Inf(1)}), ErrInvalidSample)
	assert.NoError(t, svc.RecordBatch("x", nil))
	assert.Zero(t, svc.Stats().Recorded)
}

func TestFlushDrainsIntoSnapshot(t *testing.T) {
	f := newFixture(t, t.TempDir(), vfs.NewMem())
	defer f.close()

	require.NoError(t, f.svc.RecordBatch("latency", []float64{0.5, 5, 50}))
	require.NoError(t, f.svc.Record("size", 3))
	assert.Equal(t, 4, f.svc.Stats().Pending)

	snap, err := f.svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, uint64(2), snap.JournalSeq)
	assert.Equal(t, uint64(3), seriesCount(snap, "latency"))
	assert.Equal(t, uint64(1), seriesCount(snap, "size"))

	st := f.svc.Stats()
	assert.Zero(t, st.Pending)
	assert.Equal(t, uint64(4), st.Recorded)
	assert.Equal(t, uint64(1), st.LastSnapshotSeq)

	rec, err := f.outbox.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State)

	onDisk, err := snapshot.Load(f.writer.Path())
	require.NoError(t, err)
	assert.Equal(t, snap.ID, onDisk.ID)
}

func TestSnapshotDoesNotDrain(t *testing.T) {
	svc := NewMetricsService(registry.New(registry.Options{}), Deps{})
	defer svc.Close()

	require.NoError(t, svc.Record("a", 1))
	snap := svc.Snapshot()
	assert.Zero(t, seriesCount(snap, "a"))
	assert.Equal(t, 1, svc.Stats().Pending)

	_, err := svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seriesCount(svc.Snapshot(), "a"))
	assert.Same(t, svc.Latest(), svc.Latest())
}

func TestFlushHonoursContext(t *testing.T) {
	svc := NewMetricsService(registry.New(registry.Options{}), Deps{})
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentRecordAndFlushLosesNothing(t *testing.T) {
	f := newFixture(t, t.TempDir(), vfs.NewMem())
	defer f.close()

	const writers = 8
	const per = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				assert.NoError(t, f.svc.Record("hits", 1))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, err := f.svc.Flush(context.Background())
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
	<-done

	snap, err := f.svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(writers*per), seriesCount(snap, "hits"))
}

func TestReplayRestoresSnapshotAndJournalTail(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.NewMem()

	f := newFixture(t, dir, fs)
	require.NoError(t, f.svc.RecordBatch("latency", []float64{1, 2, 3}))
	_, err := f.svc.Flush(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordBatch("latency", []float64{4, 5}))
	require.NoError(t, f.journal.Sync())
	f.close()

	g := newFixture(t, dir, fs)
	defer g.close()

	res, err := g.svc.ReplayFromWAL()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.SnapshotSeq)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 1, res.Replayed)
	assert.Equal(t, 2, res.Samples)

	snap, err := g.svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Seq, "sequence resumes after the restored snapshot")
	assert.Equal(t, uint64(5), seriesCount(snap, "latency"))
}

func TestReplayFallsBackToOutbox(t *testing.T) {
	dir := t.TempDir()
	fs := vfs.NewMem()

	f := newFixture(t, dir, fs)
	require.NoError(t, f.svc.Record("a", 1))
	_, err := f.svc.Flush(context.Background())
	require.NoError(t, err)
	f.close()

	// A second daemon with a fresh snapshot dir but the same outbox.
	g := newFixture(t, dir, fs)
	g.svc.writer = &snapshot.Writer{Dir: filepath.Join(t.TempDir(), "none")}
	defer g.close()

	res, err := g.svc.ReplayFromWAL()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.SnapshotSeq)
	assert.Zero(t, res.Replayed)
}

func TestRunSnapshotJobFlushesOnShutdown(t *testing.T) {
	svc := NewMetricsService(registry.New(registry.Options{}), Deps{Logger: zaptest.NewLogger(t)})
	defer svc.Close()

	require.NoError(t, svc.Record("a", 1))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.RunSnapshotJob(ctx, time.Hour) }()
	cancel()
	require.NoError(t, <-errc)

	require.NotNil(t, svc.Latest())
	assert.Equal(t, uint64(1), seriesCount(svc.Latest(), "a"))
}
