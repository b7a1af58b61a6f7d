// SPDX-License-Identifier: AGPL-3.0-or-later
// flochub - a flooding-based link layer host for an acoustic-modem mesh
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"

	"github.com/abyssnet/flochub/internal/audit"
	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
	"github.com/abyssnet/flochub/internal/floc/modemserial"
	"github.com/abyssnet/flochub/internal/floc/modemsim"
	"github.com/abyssnet/flochub/internal/floc/nest"
	"github.com/abyssnet/flochub/internal/kv"
	"github.com/abyssnet/flochub/internal/metrics"
	"github.com/abyssnet/flochub/internal/monitor"
	"github.com/abyssnet/flochub/internal/pubsub"
	"github.com/abyssnet/flochub/internal/tracing"
)

const (
	tickInterval       = 100 * time.Millisecond
	deviceActionsTopic = "device-actions"
	heartbeatKey       = "flochub:last_tick"
	shutdownTimeout    = 10 * time.Second
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flochub",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("flochub - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanupTracing, err := tracing.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}

	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			logger.Error("failed to start metrics server", "error", err)
		}
	}()

	m := metrics.NewMetrics()

	db, err := audit.OpenDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}

	auditWriter, err := audit.NewWriter(db, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit writer: %w", err)
	}

	pubsubClient, err := pubsub.MakePubSub(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	kvStore, err := kv.MakeKV(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to key-value store: %w", err)
	}

	modemDriver, bindModem, runModem, closeModem, err := makeModemDriver(cfg, pubsubClient, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create modem driver: %w", err)
	}

	core := floc.NewCore(cfg, modemDriver, m, logger, auditWriter.Recognized, nil)
	core.SetAuditWriter(auditWriter)
	core.SetActionPublisher(publishDeviceAction(pubsubClient, logger))
	bindModem(core)

	nestDriver, runNest, closeNest, err := makeNestDriver(cfg, pubsubClient, core, logger)
	if err != nil {
		return fmt.Errorf("failed to create nest driver: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := runModem(runCtx); err != nil {
			logger.Error("modem driver stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := runNest(runCtx); err != nil {
			logger.Error("nest driver stopped", "error", err)
		}
	}()

	monitorServer := monitor.New(cfg, pubsubClient, deviceActionsTopic, cfg.NeST.SimTopic, logger)
	go func() {
		if err := monitorServer.Start(runCtx); err != nil {
			logger.Error("monitor server stopped", "error", err)
		}
	}()
	if cfg.Monitor.Enabled && cfg.Monitor.OpenBrowser {
		monitorServer.OpenInBrowser()
	}

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}
	if err := scheduleTick(scheduler, core, kvStore, logger); err != nil {
		return err
	}
	scheduler.Start()

	logger.Info("flochub node ready", "networkID", cfg.Identity.NetworkID, "deviceID", cfg.Identity.DeviceID)

	stop := func(sig os.Signal) {
		logger.Error("shutting down due to signal", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		var shutdownWG sync.WaitGroup

		shutdownWG.Add(1)
		go func() {
			defer shutdownWG.Done()
			if err := scheduler.StopJobs(); err != nil {
				logger.Error("failed to stop scheduler jobs", "error", err)
			}
			if err := scheduler.Shutdown(); err != nil {
				logger.Error("failed to stop scheduler", "error", err)
			}
		}()

		shutdownWG.Add(1)
		go func() {
			defer shutdownWG.Done()
			cancelRun()
			wg.Wait()
			if closeModem != nil {
				if err := closeModem(); err != nil {
					logger.Error("failed to close modem driver", "error", err)
				}
			}
			if closeNest != nil {
				if err := closeNest(); err != nil {
					logger.Error("failed to close nest driver", "error", err)
				}
			}
			if err := monitorServer.Stop(shutdownCtx); err != nil {
				logger.Error("failed to stop monitor server", "error", err)
			}
		}()

		shutdownWG.Add(1)
		go func() {
			defer shutdownWG.Done()
			if err := cleanupTracing(shutdownCtx); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			shutdownWG.Wait()
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Error("shutdown timed out, closing resources anyway")
		}

		if err := pubsubClient.Close(); err != nil {
			logger.Error("failed to close pubsub", "error", err)
		}
		if err := kvStore.Close(); err != nil {
			logger.Error("failed to close kv", "error", err)
		}

		logger.Info("shutdown complete")
		os.Exit(0)
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}

// loadConfig loads the configuration from context.
func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}
	cfg, err := c.LoadWithoutValidation()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger configures the structured logger and installs it as the
// slog default, returning it for local use.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
	return logger
}

func setupScheduler() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// scheduleTick wires Core.Tick into a gocron job run at tickInterval,
// wrapping each call in a tracing span and recording a heartbeat so an
// operator can tell a wedged node from a quiet network.
func scheduleTick(scheduler gocron.Scheduler, core *floc.Core, kvStore kv.KV, logger *slog.Logger) error {
	_, err := scheduler.NewJob(
		gocron.DurationJob(tickInterval),
		gocron.NewTask(func() {
			ctx, span := tracing.StartTick(context.Background())
			defer span.End()
			if _, err := core.Tick(ctx); err != nil {
				logger.Error("tick failed", "error", err)
				return
			}
			if kvStore != nil {
				now, _ := time.Now().MarshalBinary()
				if err := kvStore.Set(ctx, heartbeatKey, now); err != nil {
					logger.Debug("failed to record tick heartbeat", "error", err)
				}
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule tick job: %w", err)
	}
	return nil
}

// publishDeviceAction returns the callback wired into Core via
// SetActionPublisher: every accepted device action is JSON-encoded and fanned
// out over pubsub for the monitor console's websocket feed.
func publishDeviceAction(ps pubsub.PubSub, logger *slog.Logger) func(floc.DeviceAction) {
	return func(action floc.DeviceAction) {
		raw, err := json.Marshal(action)
		if err != nil {
			logger.Warn("failed to marshal device action", "error", err)
			return
		}
		if err := ps.Publish(deviceActionsTopic, raw); err != nil {
			logger.Debug("failed to publish device action", "error", err)
		}
	}
}

// makeModemDriver selects and constructs the floc.Driver implementation named
// by cfg.Modem.Transport, returning it alongside a bind closure (to be called
// once the core it feeds exists), its Run loop, and an optional Close.
func makeModemDriver(cfg *config.Config, ps pubsub.PubSub, m *metrics.Metrics, logger *slog.Logger) (floc.Driver, func(*floc.Core), func(context.Context) error, func() error, error) {
	switch cfg.Modem.Transport {
	case "serial":
		driver, err := modemserial.Open(cfg, logger)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return driver, driver.BindCore, driver.Run, driver.Close, nil
	default:
		driver := modemsim.New(ps, cfg.Modem.SimTopic, m, logger)
		run := func(ctx context.Context) error {
			driver.Run(ctx)
			return nil
		}
		return driver, driver.BindCore, run, nil, nil
	}
}

// nestDriver is the common surface makeNestDriver needs from either
// transport, so root.go doesn't need to know which one it built.
type nestDriver interface {
	BindCore(core *floc.Core)
}

// makeNestDriver selects and constructs the NeST driver named by
// cfg.NeST.Transport, binds it to core immediately (unlike the modem driver,
// the caller already has the core in hand by this point), and returns its
// Run loop and an optional Close.
func makeNestDriver(cfg *config.Config, ps pubsub.PubSub, core *floc.Core, logger *slog.Logger) (nestDriver, func(context.Context) error, func() error, error) {
	switch cfg.NeST.Transport {
	case "serial":
		driver, err := nest.OpenSerial(cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		driver.BindCore(core)
		return driver, driver.Run, driver.Close, nil
	default:
		driver := nest.NewSim(ps, cfg.NeST.SimTopic, logger)
		driver.BindCore(core)
		return driver, driver.Run, nil, nil
	}
}
