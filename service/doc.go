// Package service orchestrates the core components of the metrics
// daemon: registry, journal, snapshot and outbox.
//
// It provides a clean API for recording samples, flushing them into
// aggregates and querying snapshots, decoupled from transports like
// gRPC and Kafka.
package service
