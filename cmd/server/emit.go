package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"reclaim/infra/config"
	"reclaim/infra/kafka"
)

var emitFlags struct {
	brokers []string
	topic   string
}

var emitCmd = &cobra.Command{
	Use:   "emit <series> <value>...",
	Short: "Publish samples to the ingest topic",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		brokers, topic := cfg.Kafka.Brokers, cfg.Kafka.IngestTopic
		if len(emitFlags.brokers) > 0 {
			brokers = emitFlags.brokers
		}
		if emitFlags.topic != "" {
			topic = emitFlags.topic
		}

		values, err := parseValues(args[1:])
		if err != nil {
			return err
		}

		p := kafka.NewProducer(brokers, topic)
		defer p.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return p.Send(ctx, kafka.Batch{Name: args[0], Values: values})
	},
}

func init() {
	rootCmd.AddCommand(emitCmd)

	emitCmd.Flags().StringSliceVar(&emitFlags.brokers, "brokers", nil, "override Kafka brokers")
	emitCmd.Flags().StringVar(&emitFlags.topic, "topic", "", "override ingest topic")
}
