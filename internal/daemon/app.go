// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/teamarr/teamarr/internal/config"
	"github.com/teamarr/teamarr/internal/log"
)

// App owns the runtime subsystems around the Manager: the config file
// watcher, reload wiring (SIGHUP and fsnotify), and the generation
// scheduler.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	sched        *Scheduler
	reloadSignal os.Signal
}

// NewApp creates the app orchestrator. holder and sched may be nil; the
// corresponding subsystem is simply not started.
func NewApp(manager Manager, holder *config.Holder, sched *Scheduler) *App {
	return &App{
		logger:       log.WithComponent("daemon"),
		manager:      manager,
		holder:       holder,
		sched:        sched,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		// Best-effort: a broken watcher degrades to SIGHUP-only reload.
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).
				Str("event", "config.watcher_start_failed").
				Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.holder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.applyConfig(cfg)
				}
			}
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hupChan := make(chan os.Signal, 1)
				signal.Notify(hupChan, a.reloadSignal)
				defer signal.Stop(hupChan)

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-hupChan:
						a.logger.Info().
							Str("event", "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")

						if err := a.holder.Reload(context.Background()); err != nil {
							a.logger.Warn().Err(err).
								Str("event", "config.reload_failed").
								Msg("config reload failed")
						}
					}
				}
			})
		}
	}

	if a.sched != nil {
		g.Go(func() error {
			return a.sched.Run(ctx)
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// applyConfig pushes the runtime-adjustable knobs of a reloaded config
// into the running subsystems. Everything else needs a restart.
func (a *App) applyConfig(cfg config.AppConfig) {
	if a.sched != nil {
		a.sched.SetInterval(cfg.Generation.Interval)
	}
	if cfg.Logging.Level != "" {
		if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}
}
