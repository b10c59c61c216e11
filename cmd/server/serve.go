package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reclaim/api/grpcserver"
	"reclaim/infra/config"
	"reclaim/infra/kafka"
	"reclaim/infra/logging"
	entrywal "reclaim/infra/wal/entry"
	exitwal "reclaim/infra/wal/exit"
	"reclaim/jobs/broadcaster"
	"reclaim/jobs/retention"
	"reclaim/metrics/registry"
	"reclaim/service"
	"reclaim/snapshot"
)

var serveFlags struct {
	grpcAddr string
	httpAddr string
	logLevel string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.grpcAddr, "grpc", "", "override gRPC listen address")
	serveCmd.Flags().StringVar(&serveFlags.httpAddr, "http", "", "override /metrics listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serveFlags.grpcAddr != "" {
		cfg.Server.GRPCAddr = serveFlags.grpcAddr
	}
	if serveFlags.httpAddr != "" {
		cfg.Server.HTTPAddr = serveFlags.httpAddr
	}
	if serveFlags.logLevel != "" {
		cfg.Logging.Level = serveFlags.logLevel
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Storage ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.Storage.JournalDir(),
		SegmentSize:     cfg.Storage.SegmentSize,
		SegmentDuration: cfg.Storage.SegmentDuration,
		SyncEveryWrite:  cfg.Storage.SyncEveryWrite,
		Logger:          log.Named("journal"),
	})
	if err != nil {
		return fmt.Errorf("journal init failed: %w", err)
	}
	defer journal.Close()

	outbox, err := exitwal.Open(cfg.Storage.OutboxDir())
	if err != nil {
		return fmt.Errorf("outbox init failed: %w", err)
	}
	defer outbox.Close()

	// ---------------- Service ----------------

	reg := registry.New(registry.Options{
		Namespace: cfg.Metrics.Namespace,
		Bounds:    cfg.Metrics.Buckets,
		Window:    cfg.Metrics.Window,
		Quantiles: cfg.Metrics.Quantiles,
	})
	svc := service.NewMetricsService(reg, service.Deps{
		Journal: journal,
		Outbox:  outbox,
		Writer:  &snapshot.Writer{Dir: cfg.Storage.SnapshotDir()},
		Logger:  log,
	})
	defer svc.Close()

	if _, err := svc.ReplayFromWAL(); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}

	var bc *broadcaster.Broadcaster
	if cfg.Kafka.PublishEnabled {
		bc, err = broadcaster.Dial(outbox, cfg.Kafka.Brokers, broadcaster.Options{
			Topic:      cfg.Kafka.SnapshotTopic,
			MaxRetries: cfg.Jobs.MaxRetries,
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("broadcaster init failed: %w", err)
		}
		defer bc.Close()
		n, err := bc.RecoverSent()
		if err != nil {
			return fmt.Errorf("broadcaster recovery failed: %w", err)
		}
		if n > 0 {
			log.Info("requeued unacknowledged snapshots", zap.Int("count", n))
		}
	}

	// ---------------- Listeners ----------------

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(reg, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}
	grpcSrv := grpcserver.NewGRPCServer(grpcserver.NewServer(svc), log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return grpcSrv.Serve(lis) })
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcSrv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	// ---------------- Background Jobs ----------------

	g.Go(func() error { return svc.RunSnapshotJob(ctx, cfg.Jobs.SnapshotInterval) })

	if bc != nil {
		g.Go(func() error { return bc.Run(ctx, cfg.Jobs.BroadcastInterval) })
	}

	if cfg.Kafka.IngestEnabled {
		consumer := kafka.NewConsumer(
			kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.GroupID),
			svc,
			log,
		)
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(ctx) })
	}

	sched := retention.NewScheduler(
		retention.NewPruner(svc, outbox, journal),
		cfg.Jobs.RetentionSchedule,
		log,
	)
	if err := sched.Start(ctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	defer sched.Stop()

	log.Info("reclaimd running",
		zap.String("grpc", cfg.Server.GRPCAddr),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.Bool("ingest", cfg.Kafka.IngestEnabled),
		zap.Bool("publish", cfg.Kafka.PublishEnabled),
	)

	err = g.Wait()
	st := svc.Stats()
	log.Info("reclaimd stopped",
		zap.Uint64("recorded", st.Recorded),
		zap.Uint64("flushes", st.Flushes),
		zap.Uint64("last_snapshot", st.LastSnapshotSeq),
		zap.Error(err),
	)
	return err
}
