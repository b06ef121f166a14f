package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/T-REX-XP/MMM-Gestures-Modern/broadcast"
	c "github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/logging"
	pl "github.com/T-REX-XP/MMM-Gestures-Modern/platform"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
	"github.com/T-REX-XP/MMM-Gestures-Modern/web"
)

const (
	reloadDebounce  = 500 * time.Millisecond
	shutdownTimeout = 3 * time.Second
)

var (
	flagConfig string
	flagReal   bool
)

type App struct {
	ossignal    chan os.Signal
	configFile  string
	realp       bool
	newPlatform func(conf *c.Config, ossignal chan os.Signal) pl.Platform

	config    *c.Config
	platform  pl.Platform
	scheduler *power.Scheduler
	// display belief handed from one scheduler to the next on reload
	lastPower power.State
	loop      *poll.Loop
	hub       *broadcast.Hub
	server    *web.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewApp(ossignal chan os.Signal, configFile string, realp bool) *App {
	app := &App{
		ossignal:   ossignal,
		configFile: configFile,
		realp:      realp,
	}
	app.newPlatform = func(conf *c.Config, ossignal chan os.Signal) pl.Platform {
		if app.realp {
			return pl.NewRaspberryPiPlatform(conf)
		}
		return pl.NewTUIPlatform(conf, ossignal)
	}
	return app
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "gestures",
		Short: "Gesture and presence controller for a smart mirror",
		Long: `gestures polls a PAJ7620 gesture sensor and a GP2Y0E03 distance sensor,
switches the display on when somebody stands in front of the mirror and
off again after a configurable absence, and streams gesture and presence
events to the dashboard over a websocket.

Without --real the sensors and the display are simulated in a terminal UI.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ossignal := make(chan os.Signal, 4)
			signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(ossignal)
			return NewApp(ossignal, flagConfig, flagReal).Run()
		},
	}
	rootCmd.Flags().StringVar(&flagConfig, "config", "config.yml", "Config file to use")
	rootCmd.Flags().BoolVar(&flagReal, "real", false, "Run on the Raspberry Pi sensors instead of the simulation")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Run starts all components and blocks until an interrupt. SIGHUP and
// changes of the config file restart everything with the new config.
func (a *App) Run() error {
	conf, err := c.ReadConfig(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var changes <-chan struct{}
	watcher, werr := c.NewWatcher(a.configFile, reloadDebounce)
	if werr == nil {
		defer watcher.Close()
		changes = watcher.Changes()
	}

	if err := a.initialise(conf); err != nil {
		a.shutdown()
		return err
	}
	defer logging.Close()
	if werr != nil {
		slog.Warn("Config file is not watched, reload with SIGHUP", "error", werr)
	}

	for {
		select {
		case sig := <-a.ossignal:
			if sig == syscall.SIGHUP {
				slog.Info("Received SIGHUP, reloading configuration")
				if err := a.reload(); err != nil {
					return err
				}
				continue
			}
			slog.Info("Received signal, shutting down", "signal", sig.String())
			a.shutdown()
			return nil
		case <-changes:
			slog.Info("Config file changed, reloading configuration")
			if err := a.reload(); err != nil {
				return err
			}
		}
	}
}

// reload keeps the running setup when the new config cannot be read.
func (a *App) reload() error {
	conf, err := c.ReadConfig(a.configFile)
	if err != nil {
		slog.Error("Ignoring invalid config", "file", a.configFile, "error", err)
		return nil
	}
	a.shutdown()
	if err := a.initialise(conf); err != nil {
		a.shutdown()
		return fmt.Errorf("failed to restart with new config: %w", err)
	}
	return nil
}

func (a *App) initialise(conf *c.Config) error {
	a.config = conf

	logCfg := conf.Logging.TUI
	if a.realp {
		logCfg = conf.Logging.HW
	}
	if err := logging.Init(!a.realp, logCfg); err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	slog.Debug("Configuration", "file", a.configFile, "config", litter.Sdump(conf))

	a.platform = a.newPlatform(conf, a.ossignal)
	if err := a.platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	<-a.platform.Ready()

	a.scheduler = power.NewScheduler(a.platform.Display(), power.Config{
		AbsenceDelay:   conf.AbsenceDelay(),
		OffRetryDelay:  conf.Power.OffRetryDelay,
		CommandTimeout: conf.Power.CommandTimeout,
		Initial:        a.lastPower,
	})
	if a.lastPower == power.On {
		// the new loop starts AWAY and would never report the edge
		a.scheduler.Notify(presence.Away)
	}
	a.hub = broadcast.NewHub()
	a.loop = poll.New(poll.Config{
		Interval:    conf.Presence.PollInterval,
		ReadTimeout: conf.Presence.ReadTimeout,
		WindowSize:  conf.Presence.WindowSize,
		Threshold:   conf.Presence.DistanceThreshold,
	}, a.platform.GestureReader(), a.platform.DistanceReader(), a.scheduler,
		broadcast.Fanout{broadcast.LogSink{}, a.hub})
	a.platform.ShowStatus(a.loop.Status())

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.group, ctx = errgroup.WithContext(ctx)
	a.group.Go(func() error { return a.scheduler.Run(ctx) })
	a.group.Go(func() error { return a.hub.Run(ctx) })
	a.group.Go(func() error { return a.loop.Run(ctx) })

	if conf.Web.Enabled {
		a.server = web.New(conf.Web.Listen, a.hub, a.loop.Status(), a.configFile)
		if err := a.server.Start(); err != nil {
			slog.Error("Web server disabled", "error", err)
			a.server = nil
		}
	}

	slog.Info("Gesture controller started", "simulation", !a.realp,
		"absenceDelay", conf.AbsenceDelay(), "pollInterval", conf.Presence.PollInterval)
	return nil
}

// shutdown stops everything initialise started. It is safe to call on a
// partially initialised app.
func (a *App) shutdown() {
	slog.Info("Shutting down...")
	if !a.realp {
		// the TUI log pane is about to go away
		logging.BufferOutput()
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			slog.Error("Error stopping web server", "error", err)
		}
		cancel()
		a.server = nil
	}

	if a.cancel != nil {
		a.cancel()
		if err := a.group.Wait(); err != nil {
			slog.Error("Component ended with error", "error", err)
		}
		a.cancel = nil
		a.group = nil
	}
	if a.scheduler != nil {
		a.lastPower = a.scheduler.State()
		a.scheduler = nil
	}

	if a.platform != nil {
		a.platform.Stop()
		a.platform = nil
	}
	slog.Info("Shutdown complete")
}
