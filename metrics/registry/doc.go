// Package registry names metric series. Each series pairs a lock-free
// bucket that request paths push into with the histogram and summary the
// bucket is periodically drained into. A Registry is also a
// prometheus.Collector.
package registry
