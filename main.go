// barpulse is a status-line aggregator for tiling window managers.
//
// It polls a configurable list of segments (memory, CPU, battery, mail,
// music, ...) each on its own interval, and publishes the combined line to
// the X root window name, a tmux status bar, or the terminal once per
// second. Sending SIGRTMIN+N (or `barpulse -force N`) re-polls segment N
// immediately and shows a desktop notification for it.
//
// Usage:
//
//	barpulse [flags]
//
// Flags:
//
//	-config string   Path to configuration file (default: ~/.config/barpulse/config.toml)
//	-force int       Force-update segment N (1-based) in the running daemon and exit
//	-status          Print the running daemon's status as JSON and exit
//	-print           Also preview the status line on stdout
//	-presets         List the built-in segment presets and exit
//	-verbose         Enable verbose logging
//	-version         Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/barpulse/pkg/config"
	"gitlab.com/tinyland/lab/barpulse/pkg/daemon"
	"gitlab.com/tinyland/lab/barpulse/pkg/engine"
	"gitlab.com/tinyland/lab/barpulse/pkg/notify"
	"gitlab.com/tinyland/lab/barpulse/pkg/segments"
	"gitlab.com/tinyland/lab/barpulse/pkg/sinks"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

const appName = "barpulse"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		forcePos    = flag.Int("force", 0, "Force-update the segment at this 1-based position in the running daemon")
		showStatus  = flag.Bool("status", false, "Print the running daemon's status and exit")
		printLine   = flag.Bool("print", false, "Preview the status line on stdout")
		listPresets = flag.Bool("presets", false, "List the built-in segment presets and exit")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("barpulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	if *listPresets {
		for _, name := range config.PresetNames() {
			var types []string
			for _, s := range config.Preset(name) {
				types = append(types, s.Type)
			}
			fmt.Printf("%-8s %s\n", name, strings.Join(types, " "))
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Client modes talk to a running daemon over the control socket.
	if *forcePos != 0 || *showStatus {
		os.Exit(runClient(cfg, *forcePos, *showStatus))
	}

	logger, closeLog, err := setupLogging(cfg.General, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	code := run(cfg, logger, *printLine)
	closeLog()
	os.Exit(code)
}

func runClient(cfg *config.Config, position int, status bool) int {
	client := daemon.NewIPCClient(cfg.General.ControlSocket)
	ctx := context.Background()

	if status {
		line, err := client.SendCommand(ctx, "STATUS")
		if err != nil {
			fmt.Fprintf(os.Stderr, "status: %v\n", err)
			return 1
		}
		fmt.Println(line)
		return 0
	}
	if err := client.Force(ctx, position); err != nil {
		fmt.Fprintf(os.Stderr, "force %d: %v\n", position, err)
		return 1
	}
	return 0
}

// setupLogging builds the slog logger writing to stderr and, when
// configured, to a log file as well.
func setupLogging(gc config.GeneralConfig, verbose bool) (*slog.Logger, func(), error) {
	level, err := config.ParseLevel(gc.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if gc.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(gc.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(gc.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

// newNotifier connects to the session bus. Without one, notifications are
// dropped and the dunst segment reports not paused.
func newNotifier(logger *slog.Logger) (notify.Notifier, func()) {
	n, err := notify.NewDBus(appName)
	if err != nil {
		logger.Warn("desktop notifications disabled", "error", err)
		return notify.Nop{}, func() {}
	}
	return n, func() { _ = n.Close() }
}

// buildSinks constructs the configured sinks. A sink that cannot be set up
// is skipped with a warning.
func buildSinks(cfg *config.Config, logger *slog.Logger, preview bool) ([]sinks.Sink, func()) {
	var out []sinks.Sink
	var closers []func()

	if cfg.Sinks.XRoot {
		x, err := sinks.NewXRoot("")
		if err != nil {
			logger.Warn("X root window sink disabled", "error", err)
		} else {
			out = append(out, x)
			closers = append(closers, x.Close)
		}
	}
	if cfg.Sinks.TmuxSocket != "" {
		out = append(out, sinks.NewTmux(cfg.Sinks.TmuxSocket))
	}
	if cfg.Sinks.Terminal || preview {
		out = append(out, sinks.NewTerminal(os.Stdout))
	}

	return out, func() {
		for _, c := range closers {
			c()
		}
	}
}

func run(cfg *config.Config, logger *slog.Logger, preview bool) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.General.PIDFile != "" {
		if err := daemon.AcquirePID(cfg.General.PIDFile); err != nil {
			logger.Error("cannot start", "error", err)
			return 1
		}
		defer func() {
			if err := daemon.ReleasePID(cfg.General.PIDFile); err != nil {
				logger.Warn("failed to release PID file", "error", err)
			}
		}()
	}

	notifier, closeNotifier := newNotifier(logger)
	defer closeNotifier()

	reg, err := cfg.BuildRegistry(ctx, notifier)
	if err != nil {
		logger.Error("invalid segment configuration", "error", err)
		return 1
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Debug("segment close failed", "error", err)
		}
	}()

	sinkList, closeSinks := buildSinks(cfg, logger, preview)
	defer closeSinks()
	if len(sinkList) == 0 {
		logger.Warn("no sinks configured; status line is only available over the control socket")
	}
	pub := sinks.NewPublisher(logger, sinkList...)

	eng := engine.New(reg, pub,
		engine.WithLogger(logger),
		engine.WithHeartbeat(engine.DefaultHeartbeatPeriod, cfg.General.HeartbeatOffset.Duration),
	)

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, append(engine.TerminationSignals, engine.ForceSignals(reg.Len())...)...)
	defer signal.Stop(sigCh)

	started := time.Now()
	snapshot := func() *daemon.HealthStatus {
		return &daemon.HealthStatus{
			PID:       os.Getpid(),
			StartedAt: started,
			Timestamp: time.Now(),
			Line:      segments.StripTags(eng.Status()),
			Segments:  reg.AllStatus(),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return eng.HandleSignals(gctx, sigCh) })
	g.Go(func() error {
		return daemon.RunHealthWriter(gctx, cfg.General.HealthFile, cfg.General.HealthInterval.Duration, snapshot, logger)
	})
	if cfg.General.ControlSocket != "" {
		ctl := &daemon.Control{Forcer: eng, Snapshot: snapshot, Quit: cancel}
		srv := daemon.NewIPCServer(cfg.General.ControlSocket, ctl, logger)
		g.Go(func() error {
			if err := srv.Serve(gctx); err != nil {
				logger.Warn("control socket disabled", "error", err)
				<-gctx.Done()
			}
			return nil
		})
	}

	logger.Info("barpulse running", "version", version, "segments", reg.Len(), "sinks", len(sinkList))

	if err := g.Wait(); err != nil && !errors.Is(err, engine.ErrTerminated) {
		logger.Error("barpulse failed", "error", err)
		return 1
	}
	logger.Info("barpulse stopped")
	return 0
}
