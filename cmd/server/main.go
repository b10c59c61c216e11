// Command reclaimd is a metrics aggregation daemon. Samples arrive over
// gRPC or Kafka, are journaled, pushed into lock-free buckets and
// periodically drained into histograms and summaries behind an
// epoch-based reclamation scheme.
//
// Usage:
//
//	# Start the daemon
//	reclaimd serve --config reclaimd.yaml
//
//	# Push samples through a running daemon
//	reclaimd record latency 0.12 0.3 --addr localhost:50051
//
//	# Publish samples to the ingest topic
//	reclaimd emit latency 0.12 0.3 --brokers localhost:9092
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "reclaimd",
	Short:         "Lock-free metrics aggregation daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
