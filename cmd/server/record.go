package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"reclaim/api/grpcserver"
)

var recordFlags struct {
	addr  string
	flush bool
}

var recordCmd = &cobra.Command{
	Use:   "record <series> <value>...",
	Short: "Record samples through a running daemon",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseValues(args[1:])
		if err != nil {
			return err
		}

		conn, err := grpc.NewClient(recordFlags.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		c := grpcserver.NewClient(conn)
		if err := c.RecordBatch(ctx, args[0], values); err != nil {
			return err
		}
		if recordFlags.flush {
			seq, err := c.Flush(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %d\n", seq)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&recordFlags.addr, "addr", "localhost:50051", "daemon gRPC address")
	recordCmd.Flags().BoolVar(&recordFlags.flush, "flush", false, "flush after recording")
}

func parseValues(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", a, err)
		}
		values[i] = v
	}
	return values, nil
}
