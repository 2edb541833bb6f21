// Package daemon implements the daemon loop (spec.md 4.8): a
// reconfigurable interval scheduler with SIGHUP reload and SIGINT
// shutdown, or a single cycle-and-exit when service.daemon is false.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/logging"
)

// CycleFunc runs one full pipeline cycle against the current config.
type CycleFunc func(ctx context.Context, cfg *config.Config) error

// ReloadFunc re-reads configuration from disk, used on SIGHUP.
type ReloadFunc func() (*config.Config, error)

// Run executes cycle once if cfg.Service.Daemon is false, or repeatedly on
// the configured schedule otherwise, honoring an optional startup delay,
// SIGHUP reload, and SIGINT graceful shutdown.
func Run(ctx context.Context, cfg *config.Config, log logging.Logger, cycle CycleFunc, reload ReloadFunc) error {
	if !cfg.Service.Daemon {
		return cycle(ctx, cfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if cfg.Service.Delay.Enable {
		if !sleepInterruptible(ctx, sigCh, scheduleDuration(cfg.Service.Delay), log) {
			return nil
		}
	}

	interval := scheduleDuration(cfg.Service.Schedule)
	reloadPending := false

	for {
		if reloadPending {
			newCfg, err := reload()
			if err != nil {
				log.Error().Err(err).Msg("config reload failed, continuing with previous configuration")
			} else {
				cfg = newCfg
				logging.Relevel(&log, cfg.Service.LogLevel)
				interval = scheduleDuration(cfg.Service.Schedule)
				log.Info().Msg("configuration reloaded")
			}
			reloadPending = false
		}

		if err := cycle(ctx, cfg); err != nil {
			log.Error().Err(err).Msg("cycle failed, will retry next interval")
		}

		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				reloadPending = true
				log.Info().Msg("received SIGHUP, reload scheduled for next cycle boundary")
			default:
				log.Info().Str("signal", sig.String()).Msg("received shutdown signal, exiting cleanly")
				return nil
			}
		case <-time.After(interval):
		}
	}
}

// sleepInterruptible waits for d, returning false early if a shutdown
// signal or context cancellation arrives first. A SIGHUP during the delay
// is treated as a no-op (nothing to reload yet).
func sleepInterruptible(ctx context.Context, sigCh chan os.Signal, d time.Duration, log logging.Logger) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				log.Info().Str("signal", sig.String()).Msg("received shutdown signal during startup delay")
				return false
			}
		case <-timer.C:
			return true
		}
	}
}

func scheduleDuration(s config.Schedule) time.Duration {
	n := s.Interval
	if n == 0 {
		n = s.Time
	}
	if s.Format == "hours" {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * time.Minute
}
