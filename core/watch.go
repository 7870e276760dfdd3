package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/metrics"
	"github.com/socinabox/modwatch/internal/outwriter"
)

// ExecuteWatch runs a scan immediately and then on every tick of cfg.Schedule until ctx is done.
// A tick is skipped while the previous scan is still running.
func ExecuteWatch(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	collector := metrics.NewCollector(nil)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           collector.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				contract.LogWarn("Metrics server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		contract.Logger().Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	w := &watcher{scanner: newScanner(cfg, mgr), cfg: cfg, collector: collector}
	return w.run(ctx)
}

// watcher runs scans on a cron schedule.
type watcher struct {
	scanner   *scanner
	cfg       *contract.Config
	collector *metrics.Collector
}

func (w *watcher) run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule scans: %w", err)
	}

	w.tick(ctx)
	c.Start()
	contract.Logger().Info().Str("schedule", w.cfg.Schedule).Msg("watching for module changes")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// tick runs one scan cycle. Failures are logged and counted, never fatal.
func (w *watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	report, err := w.scanner.scan(ctx, w.cfg)
	w.collector.ObserveRun(report, time.Since(start), err)
	if err != nil {
		contract.Logger().Error().Err(err).Str("kind", string(contract.ErrorKindOf(err))).Msg("scan failed")
		return
	}

	if err := outwriter.PrintReport(report, w.cfg, time.Since(start)); err != nil {
		contract.LogWarn("Failed to write report", err)
	}

	results, err := w.scanner.file(ctx, w.cfg, report)
	w.collector.ObserveFiling(results, err)
	if err != nil {
		contract.Logger().Error().Err(err).Msg("issue filing failed")
	}
}

// cronLogger adapts the zerolog logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	contract.Logger().Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	contract.Logger().Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
