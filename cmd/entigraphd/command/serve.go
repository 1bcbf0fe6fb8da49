// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arborian/entigraph/internal/xconfig"
	"github.com/arborian/entigraph/internal/xmetrics"
	"github.com/arborian/entigraph/logging"
	"github.com/arborian/entigraph/pkg/engine"
	"github.com/arborian/entigraph/pkg/eventlog"
)

func initServe(root *cobra.Command) {
	var cfg = xconfig.Default()

	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run the entity graph engine, rebuilding from its event log and serving metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := xconfig.ApplyEnvironment(cmd); err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}

	serveCommand.Flags().Uint32Var(&cfg.WriterID, "writer-id", cfg.WriterID, "writer id assigned to this process's snowflake generator")
	serveCommand.Flags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the durable event log")
	serveCommand.Flags().IntVar(&cfg.RingCapacity, "ring-capacity", cfg.RingCapacity, "dispatcher ring buffer capacity")
	serveCommand.Flags().IntVar(&cfg.MaxPathDepth, "max-path-depth", cfg.MaxPathDepth, "maximum view path depth before a walk is abandoned")
	serveCommand.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on")

	root.AddCommand(serveCommand)
}

func runServe(cmd *cobra.Command, cfg xconfig.Config) error {
	logger := logging.New()
	metrics := xmetrics.New()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("entigraphd serve: registering metrics: %w", err)
	}

	log, err := eventlog.OpenBadgerLog(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("entigraphd serve: opening event log: %w", err)
	}
	defer log.Close()

	sys, err := engine.New(engine.Config{
		WriterID:     cfg.WriterID,
		RingCapacity: cfg.RingCapacity,
		IdleBackoff:  cfg.IdleBackoff,
		MaxPathDepth: cfg.MaxPathDepth,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return fmt.Errorf("entigraphd serve: constructing engine: %w", err)
	}
	defer sys.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("rebuilding store from event log at %s", cfg.DataDir)
	if err := sys.Rebuild(ctx, log); err != nil {
		return fmt.Errorf("entigraphd serve: rebuilding from event log: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("serving metrics on %s", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrs <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutting down")
	case err := <-serverErrs:
		return fmt.Errorf("entigraphd serve: metrics server: %w", err)
	}

	return server.Close()
}
