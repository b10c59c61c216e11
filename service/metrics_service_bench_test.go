package service

import (
	"testing"

	entrywal "reclaim/infra/wal/entry"
	"reclaim/metrics/registry"
)

func BenchmarkRecord_Core(b *testing.B) {
	svc := NewMetricsService(registry.New(registry.Options{}), Deps{})
	defer svc.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := svc.Record("latency", 0.25); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkRecord_Journaled(b *testing.B) {
	journal, err := entrywal.Open(entrywal.Config{
		Dir:         b.TempDir(),
		SegmentSize: 64 << 20,
	})
	if err != nil {
		b.Fatal(err)
	}
	defer journal.Close()

	svc := NewMetricsService(registry.New(registry.Options{}), Deps{Journal: journal})
	defer svc.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := svc.Record("latency", 0.25); err != nil {
				b.Fatal(err)
			}
		}
	})
}
