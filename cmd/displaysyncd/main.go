// Package main is the entry point for the displaysyncd daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/displaysyncd/internal/audio"
	"github.com/jmylchreest/displaysyncd/internal/config"
	"github.com/jmylchreest/displaysyncd/internal/coordinator"
	"github.com/jmylchreest/displaysyncd/internal/dbus"
	"github.com/jmylchreest/displaysyncd/internal/playsync"
	"github.com/jmylchreest/displaysyncd/internal/tui"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir)")
	withTUI := flag.Bool("tui", false, "Attach a terminal render target in the foreground")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("displaysyncd version", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging; the level var lets hot reload adjust it.
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting displaysyncd", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lifecycle authority and coordinator.
	groups := playsync.NewSyncGroups(logger)
	groups.SetDurations(cfg.ShortHold(), cfg.LongHold())

	coord := coordinator.New(groups, logger)
	if err := coord.Start(ctx); err != nil {
		logger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}
	defer coord.Stop()

	// Audio playback party.
	var playback *audio.Playback
	var player *audio.Player
	if cfg.Audio.Enabled {
		player = audio.NewPlayer(logger)
		player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
		playback = audio.NewPlayback(player, groups, logger)
		defer player.Close()
	}

	// Session bus surface.
	var server *dbus.Server
	var signalTarget *dbus.SignalTarget
	if cfg.DBus.Enabled {
		server = dbus.NewServer(cfg.DBus.BusName, logger)
		signalTarget = dbus.NewSignalTarget(server, logger)

		server.SetDisplayHandler(func(meta map[string]any, messageID, dialogRequestID, serviceID string) {
			coord.Display(meta, messageID, dialogRequestID, serviceID)
		})
		server.SetPlayHandler(func(path string, meta map[string]any, messageID, dialogRequestID, serviceID string) error {
			if playback == nil {
				coord.Display(meta, messageID, dialogRequestID, serviceID)
				return nil
			}
			if err := playback.Play(path, dialogRequestID, serviceID); err != nil {
				return err
			}
			coord.Display(meta, messageID, dialogRequestID, serviceID)
			return nil
		})
		server.SetClearHandler(func() {
			coord.ClearDisplay(signalTarget)
		})
		server.SetStatusHandler(func() (string, string, bool) {
			cur := coord.Current()
			if cur == nil {
				return "", "", false
			}
			return cur.ID, string(cur.Type), signalTarget.CurrentID() == cur.ID
		})

		if err := server.Start(); err != nil {
			logger.Error("failed to start D-Bus server", "error", err)
			os.Exit(1)
		}
		defer func() { _ = server.Stop() }()

		coord.AddTarget(signalTarget)
	}

	// Config hot reload.
	watchPath := *configPath
	if watchPath == "" {
		watchPath = config.ConfigPath()
	}
	watcher, err := config.NewWatcher(watchPath, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.SetChangeCallback(func(next *config.Config) {
			level.Set(next.LogLevel())
			groups.SetDurations(next.ShortHold(), next.LongHold())
			if player != nil {
				player.SetVolume(float64(next.Audio.Volume) / 100.0)
			}
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	if *withTUI {
		runWithTUI(cfg, coord, playback, logger)
		return
	}

	// Headless: wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
}

// runWithTUI runs a terminal render target in the foreground until the user
// quits it or the process is signalled.
func runWithTUI(cfg *config.Config, coord *coordinator.Coordinator, playback *audio.Playback, logger *slog.Logger) {
	var position tui.PositionFunc
	if playback != nil {
		position = playback.Position
	}

	model := tui.New(&cfg.Display, position)
	program := tea.NewProgram(model, tea.WithAltScreen())

	target := tui.NewTarget(program)
	coord.AddTarget(target)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		logger.Error("terminal target failed", "error", err)
	}

	target.MarkDetached()
	coord.RemoveTarget(target)
	logger.Info("terminal target detached")
}
