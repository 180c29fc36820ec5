// Package main is the entrypoint for the lnd metrics exporter.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fsgrosa/lnd-exporter/pkg/config"
	"github.com/fsgrosa/lnd-exporter/pkg/cursor"
	"github.com/fsgrosa/lnd-exporter/pkg/lnd"
	"github.com/fsgrosa/lnd-exporter/pkg/metrics"
	"github.com/fsgrosa/lnd-exporter/pkg/server"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lnd-exporter",
		Short:         "Prometheus exporter for a single lnd node",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("bind flags: %w", err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("lnd-endpoint", config.DefaultLndEndpoint, "host:port of the lnd gRPC API")
	flags.String("tls-cert-path", "", "path to lnd's TLS certificate (empty: system roots)")
	flags.String("macaroon-path", "", "path to a readonly macaroon (empty: no macaroon auth)")
	flags.String("metrics-addr", config.DefaultMetricsAddr, "listen address for the metrics server")
	flags.Duration("rpc-timeout", 0, "deadline for the RPCs of one collection cycle (0: no deadline)")
	flags.String("cursor-backend", config.DefaultCursorBackend, "payment cursor backend: memory or s3")
	flags.String("s3-bucket", "", "S3 bucket for cursor snapshots (required for the s3 backend)")
	flags.String("s3-key-prefix", config.DefaultS3KeyPrefix, "S3 key prefix for cursor snapshots")
	flags.String("s3-region", config.DefaultS3Region, "AWS region for the S3 client")
	flags.String("s3-endpoint", "", "custom S3 endpoint URL (for MinIO, LocalStack, etc.)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("lnd-exporter starting",
		"version", version,
		"commit", commit,
		"date", date,
		"lnd_endpoint", cfg.LndEndpoint,
		"metrics_addr", cfg.MetricsAddr,
		"cursor_backend", cfg.CursorBackend,
		"rpc_timeout", cfg.RPCTimeout.String(),
	)

	client, conn, err := lnd.Dial(cfg.LndEndpoint, cfg.TLSCertPath, cfg.MacaroonPath)
	if err != nil {
		return fmt.Errorf("dial lnd: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Set up context with signal-based cancellation.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialise the cursor based on the configured backend.
	mem := cursor.New()
	var cur cursor.Store = mem
	if cfg.CursorBackend == "s3" {
		s3Client, err := cursor.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return fmt.Errorf("create S3 client: %w", err)
		}
		s3c := cursor.NewS3Cursor(mem, s3Client, cfg.S3Bucket, cfg.S3KeyPrefix)

		slog.Info("restoring cursor snapshot from S3",
			"bucket", cfg.S3Bucket,
			"key_prefix", cfg.S3KeyPrefix,
		)
		if err := s3c.Restore(ctx); err != nil {
			slog.Warn("failed to restore S3 snapshot, starting with a fresh cursor", "error", err)
		}
		cur = s3c
	}

	collector, err := metrics.NewLndCollector(client, cur, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("create collector: %w", err)
	}

	// Start the HTTP metrics server.
	srv := server.New(cfg.MetricsAddr, collector, cur)
	go func() {
		if err := srv.Run(ctx); err != nil {
			slog.Error("metrics server error", "error", err)
			cancel()
		}
	}()

	// Probe the node once at startup so connectivity problems show up in
	// the logs immediately instead of on the first scrape. The server is
	// marked ready either way: a down node is reported through the
	// scrape_errors metric, not by failing readiness.
	go func() {
		probeTimeout := 10 * time.Second
		if cfg.RPCTimeout > 0 {
			probeTimeout = cfg.RPCTimeout
		}
		probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
		defer probeCancel()

		info, err := client.GetInfo(probeCtx, &lnrpc.GetInfoRequest{})
		if err != nil {
			slog.Warn("startup probe of lnd failed", "error", err)
		} else {
			slog.Info("connected to lnd",
				"alias", info.Alias,
				"pubkey", info.IdentityPubkey,
				"block_height", info.BlockHeight,
			)
		}
		srv.SetReady()
	}()

	slog.Info("exporter running", "metrics_addr", cfg.MetricsAddr)

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("shutdown complete")
	return nil
}
