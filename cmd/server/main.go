// Command kira-watch runs the escalation scheduler: timer expiry, check-in
// reminders, inactivity alerts and check-in retention.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/kira-watch/internal/app"
	"github.com/and161185/kira-watch/internal/config"
	"github.com/and161185/kira-watch/internal/logging"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/migrate"
	grpcserver "github.com/and161185/kira-watch/internal/server/grpc"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, starts the scheduler and serves the
// health and metrics endpoints until SIGINT/SIGTERM.
func main() {
	if err := config.LoadDotenv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("zone", cfg.Zone),
		zap.String("transport", cfg.Transport),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	deps, closeDeps, err := app.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer closeDeps()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a, err := app.Build(cfg, deps, logger, m)
	if err != nil {
		logger.Fatal("build", zap.Error(err))
	}

	// Health mirrors job outcomes
	hs := grpcserver.NewHealth(a.Scheduler.Jobs())
	a.Scheduler.OnHealthChange(hs.SetJob)

	var opts []grpc.ServerOption
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	gs := grpcserver.New(logger, hs, cfg.Dev, opts...)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hsrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		errCh <- gs.Serve(lis)
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.Scheduler.Start()

	// Wait for stop
	exit := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exit = 1
	}

	// graceful shutdown
	hs.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Scheduler.Stop(sctx); err != nil {
		logger.Warn("scheduler did not stop in time", zap.Error(err))
	}
	_ = hsrv.Shutdown(sctx)

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		gs.Stop()
	}

	logger.Info("shutdown complete")
	if exit != 0 {
		closeDeps()
		os.Exit(exit)
	}
}
