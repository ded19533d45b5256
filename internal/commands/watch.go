package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Icinga/icingaweb2-sub007/internal/health"
	"github.com/Icinga/icingaweb2-sub007/internal/metrics"
	"github.com/Icinga/icingaweb2-sub007/internal/server"
	"github.com/Icinga/icingaweb2-sub007/internal/service"
	"github.com/Icinga/icingaweb2-sub007/internal/util/workerpool"
)

const healthCheckInterval = 15 * time.Second

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep every backend loaded and expose metrics and health probes",
		Long: `Reload every backend on the configured interval until interrupted.
Unchanged files are not parsed again. Metrics, liveness and readiness are
served on the metrics port when metrics are enabled.

Examples:
  statusdat watch --config statusdat.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt,
				syscall.SIGTERM,
				syscall.SIGQUIT,
			)
			defer stop()
			return a.runWatch(ctx)
		},
	}
}

func (a *app) runWatch(ctx context.Context) error {
	cfg := a.cfg
	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry)

	reg, err := service.NewRegistryFromConfig(cfg, m, a.logger)
	if err != nil {
		return err
	}

	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "reload",
		MaxWorkers: cfg.Reload.Workers,
		QueueSize:  cfg.Reload.QueueSize,
		Logger:     a.logger,
	})

	refresher := service.NewRefresher(reg, pool, cfg.Reload.Interval, a.logger)
	refresher.OnReload = func(backend string, snap *service.Snapshot, err error) {
		if err != nil {
			a.logger.Warn("Reload failed, keeping previous snapshot",
				zap.String("backend", backend),
				zap.Error(err))
		}
	}

	files := make(health.FileSet)
	for _, b := range cfg.Backends {
		files[b.Name] = []string{b.ObjectsFile}
		if b.StatusFile != "" {
			files[b.Name] = append(files[b.Name], b.StatusFile)
		}
	}
	checker := health.NewHealthChecker(&health.HealthCheckConfig{
		Files:        files,
		MaxStatusAge: cfg.Health.MaxStatusAge,
	}, reg, a.logger)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = server.NewMetricsServer(&server.MetricsServerConfig{
			Port:            cfg.Metrics.Port,
			ShutdownTimeout: cfg.Metrics.ShutdownTimeout,
		}, promRegistry, m, checker, a.logger)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	go refresher.Run(ctx)
	go checker.Start(ctx, healthCheckInterval)

	a.logger.Info("Watching backends",
		zap.Strings("backends", reg.Names()),
		zap.Duration("interval", cfg.Reload.Interval))

	<-ctx.Done()
	a.logger.Info("Shutdown signal received")
	checker.SetReadiness(false)

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			a.logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}
	if err := pool.Stop(cfg.Metrics.ShutdownTimeout); err != nil {
		a.logger.Warn("Reload workers did not stop in time", zap.Error(err))
	}

	stats := pool.Stats()
	a.logger.Info("Stopped",
		zap.Uint64("reloads", stats.CompletedTasks),
		zap.Uint64("failed_reloads", stats.FailedTasks),
		zap.Uint64("coalesced_reloads", stats.CoalescedTasks))
	return nil
}
