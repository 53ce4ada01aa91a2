// Package main provides the soundtrack simulator entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/combatbgm/internal/app/library"
	"github.com/osa030/combatbgm/internal/app/notification"
	"github.com/osa030/combatbgm/internal/app/session"
	"github.com/osa030/combatbgm/internal/app/soundtrack"
	"github.com/osa030/combatbgm/internal/infra/config"
	"github.com/osa030/combatbgm/internal/infra/logger"
)

var (
	app        = kingpin.New("bgmsim", "Adaptive combat soundtrack simulator")
	configPath = app.Flag("config", "Path to config file").Default("config/combatbgm.yaml").Envar("BGM_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()
	sinkType   = app.Flag("sink", "Audio sink (overrides config)").Enum("headless", "beep", "ebiten")

	// run command
	runCmd      = app.Command("run", "Run the configured scenario or script (default)").Default()
	runScenario = runCmd.Flag("scenario", "Scenario file (overrides config)").String()
	runScript   = runCmd.Flag("script", "tengo script (overrides config)").String()
	runEvents   = runCmd.Flag("events", "Print machine events").Bool()

	// play command
	playCmd = app.Command("play", "Drive the soundtrack from the keyboard")

	// check command
	checkCmd = app.Command("check", "Resolve the playlists and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	applyFlags(cfg, command)

	// Initialize logger
	loggerConfig := logger.Config{
		Output: cfg.Logging.Output,
		Level:  cfg.Logging.Level,
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	// The terminal belongs to the UI in play mode.
	if command == playCmd.FullCommand() && (loggerConfig.Output == "stdout" || loggerConfig.Output == "stderr") {
		loggerConfig.Output = "discard"
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loaded config from %s", *configPath)

	switch command {
	case runCmd.FullCommand():
		err = runSimulation(cfg)
	case playCmd.FullCommand():
		err = runInteractive(cfg)
	case checkCmd.FullCommand():
		err = checkPlaylists(cfg, os.Stdout)
	}
	if err != nil {
		zlog.Error().Msgf("%s failed: %v", command, err)
		closer.Close()
		os.Exit(1)
	}
}

// applyFlags overrides config values with command-line flags.
func applyFlags(cfg *config.Config, command string) {
	if *sinkType != "" {
		cfg.Sink.Type = *sinkType
	}
	if command != runCmd.FullCommand() {
		return
	}
	if *runScenario != "" {
		cfg.Simulation.Scenario, cfg.Simulation.Script = *runScenario, ""
	}
	if *runScript != "" {
		cfg.Simulation.Script, cfg.Simulation.Scenario = *runScript, ""
	}
}

// runSimulation runs the configured source until it ends or the process is
// interrupted.
func runSimulation(cfg *config.Config) error {
	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := session.NewManager(ctx, cfg, session.Deps{})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			zlog.Error().Msgf("Failed to close session: %v", err)
		}
	}()

	if *runEvents {
		start := time.Now()
		mgr.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
			printEvent(os.Stdout, n.SequenceNo, n.Event, start)
			return nil
		}))
	}

	zlog.Info().Msgf("Starting session: session_id=%s", mgr.SessionID())
	if err := mgr.Run(ctx); err != nil {
		return err
	}

	info := mgr.Info()
	zlog.Info().Msgf("Session finished: reason=%s ticks=%d threat_ticks=%d state=%s track=%s",
		info.Session.Reason, info.Session.Ticks, info.Session.ThreatTicks, info.Soundtrack.State, info.Soundtrack.CurrentTrack)
	return nil
}

func printEvent(w io.Writer, seq uint64, e soundtrack.Event, start time.Time) {
	fmt.Fprintf(w, "%4d %9.3fs %-21s %s\n", seq, e.At.Sub(start).Seconds(), e.Type, eventDetail(e))
}

// eventDetail formats the fields that matter for the event type.
func eventDetail(e soundtrack.Event) string {
	switch e.Type {
	case soundtrack.EventStateChanged:
		return fmt.Sprintf("%s -> %s", e.From, e.State)
	case soundtrack.EventTrackStarted, soundtrack.EventTrackSkippedStale:
		return fmt.Sprintf("%s (%s)", e.TrackID, e.State)
	default:
		return fmt.Sprintf("%s (%s)", e.Direction, e.State)
	}
}

// checkPlaylists resolves both playlists and prints their tracks.
func checkPlaylists(cfg *config.Config, w io.Writer) error {
	ctx := context.Background()

	fmt.Fprintf(w, "menu: %s (%s)\n", cfg.Tracks.Menu.ID, cfg.Tracks.Menu.DisplayName())
	for _, p := range []struct {
		name string
		cfg  config.PlaylistConfig
	}{
		{"game", cfg.Tracks.Game},
		{"battle", cfg.Tracks.Battle},
	} {
		pl, err := library.Resolve(ctx, p.name, p.cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d tracks, %v\n", pl.Name, len(pl.Tracks), pl.TotalDuration())
		for i, t := range pl.Tracks {
			fmt.Fprintf(w, "  %2d. %-40s %s\n", i+1, t.ID, t.Path)
		}
	}
	return nil
}
