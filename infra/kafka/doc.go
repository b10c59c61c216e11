// Package kafka moves samples over Kafka with segmentio/kafka-go: a
// consumer that feeds ingested batches to a recorder, and a producer
// used by the emit command.
//
// Message values are either "name v[,v...]" or
// {"name": "...", "values": [...]}.
package kafka
