package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/aridash/ari/internal/coalesce"
	"github.com/aridash/ari/internal/config"
	"github.com/aridash/ari/internal/dashboard"
	"github.com/aridash/ari/internal/errors"
	"github.com/aridash/ari/internal/feed"
	"github.com/aridash/ari/internal/logging"
	"github.com/aridash/ari/internal/loop"
	"github.com/aridash/ari/internal/router"
	"github.com/aridash/ari/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dashboard over a session script",
	Long: `Run the dashboard and replay a session script into it.

Without --script the built-in demo session is replayed. When stdout is not a
terminal, or with --headless, no TUI is started: the script is replayed, the
router is drained and the final panels and counters are printed.

Examples:
  # Watch the demo session
  ari run

  # Replay a recorded session at four times its speed
  ari run --script session.yaml --speed 4

  # Replay without a terminal and expose metrics while it runs
  ari run --headless --metrics-addr 127.0.0.1:9090`,
	RunE: runRun,
}

var (
	runScript      string
	runHeadless    bool
	runSpeed       float64
	runMetricsAddr string
	runIdleTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runScript, "script", "s", "", "Session script to replay (default: built-in demo)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Replay without the TUI and print a summary")
	runCmd.Flags().Float64Var(&runSpeed, "speed", -1, "Replay speed multiplier (default: feed.speed from config)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().DurationVar(&runIdleTimeout, "drain-timeout", 5*time.Second, "How long headless mode waits for the router to drain")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	script, err := loadScript(runScript)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger, err := newSessionLogger(cfg, sessionID)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.Info("session started",
		"script", script.Name,
		"steps", len(script.Steps),
		"duration", script.Duration().String())

	speed := cfg.Feed.Speed
	if runSpeed >= 0 {
		speed = runSpeed
	}
	metricsAddr := runMetricsAddr
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := session{
		cfg:         cfg,
		script:      script,
		speed:       speed,
		metricsAddr: metricsAddr,
		logger:      logger,
		out:         cmd.OutOrStdout(),
	}
	if runHeadless || !term.IsTerminal(int(os.Stdout.Fd())) {
		return s.headless(ctx)
	}
	return s.interactive(ctx)
}

func loadScript(path string) (*feed.Script, error) {
	if path == "" {
		return feed.DemoScript(), nil
	}
	script, err := feed.LoadScript(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	return script, nil
}

// newSessionLogger opens the session's rotating debug log, or a discarding
// logger when logging is disabled.
func newSessionLogger(cfg *config.Config, sessionID string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(
		cfg.Logging.SessionDir(sessionID),
		cfg.Logging.Level,
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	return logger.WithSession(sessionID), nil
}

type session struct {
	cfg         *config.Config
	script      *feed.Script
	speed       float64
	metricsAddr string
	logger      *logging.Logger
	out         io.Writer
}

// watchConfig hot-reloads d when the config file changes.
func (s *session) watchConfig(d *dashboard.Dashboard) {
	watching := config.Watch(d.Reload, func(err error) {
		s.logger.Warn("config reload rejected", "error", err)
	})
	if watching {
		s.logger.Debug("watching config for changes")
	}
}

// replay plays the script and logs how it ended. Steps that fail are logged,
// not fatal; a cancelled context or a closed router ends the replay early.
func (s *session) replay(ctx context.Context, d *dashboard.Dashboard) {
	err := s.script.Play(ctx, d.Translator, s.speed)
	switch {
	case err == nil:
		s.logger.Info("replay finished", "received", d.Router.Stats().Received)
	case errors.Is(err, context.Canceled), errors.Is(err, errors.ErrRouterClosed):
		s.logger.Info("replay stopped", "reason", err)
	default:
		s.logger.Warn("replay finished with errors", "error", err)
	}
}

func (s *session) interactive(ctx context.Context) error {
	exec := tui.NewProgramExecutor(s.logger)
	d, err := dashboard.New(s.cfg, exec, s.logger)
	if err != nil {
		return err
	}
	s.watchConfig(d)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if s.metricsAddr != "" {
		g.Go(func() error { return d.Metrics.Serve(gctx, s.metricsAddr, s.logger) })
	}
	g.Go(func() error {
		s.replay(gctx, d)
		return nil
	})

	app := tui.New(exec, d.Widgets,
		tui.WithStats(d.Router.Stats),
		tui.WithLogger(s.logger),
		tui.WithQuitHook(d.Router.Close))
	runErr := app.Run(ctx)

	// The program has exited, so nothing else touches the panels.
	stop()
	shutdownErr := d.Shutdown()
	if err := g.Wait(); err != nil {
		s.logger.Warn("background task failed", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return shutdownErr
}

// Panel size used when printing the final panels in headless mode.
const (
	summaryWidth  = 100
	summaryHeight = 16
)

func (s *session) headless(ctx context.Context) error {
	lp := loop.New(loop.WithLogger(s.logger))
	d, err := dashboard.New(s.cfg, lp, s.logger)
	if err != nil {
		return err
	}
	s.watchConfig(d)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := lp.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if s.metricsAddr != "" {
		g.Go(func() error { return d.Metrics.Serve(gctx, s.metricsAddr, s.logger) })
	}

	s.replay(ctx, d)
	d.Router.Close()
	drained := waitIdle(ctx, runIdleTimeout, func() bool {
		if !d.Router.Idle() {
			return false
		}
		rendering := true
		lp.Do(func() { rendering = d.Tasks.RenderState() != coalesce.Idle })
		return !rendering
	})

	var views []string
	var shutdownErr error
	lp.Do(func() {
		for _, w := range d.Widgets.All() {
			w.SetSize(summaryWidth, summaryHeight)
			views = append(views, w.View())
		}
		shutdownErr = d.Shutdown()
	})

	stop()
	lp.Stop()
	if err := g.Wait(); err != nil {
		return err
	}

	for _, v := range views {
		fmt.Fprintln(s.out, v)
	}
	printSummary(s.out, d.Router.Stats(), drained)
	return shutdownErr
}

// waitIdle polls idle until it reports true, ctx ends or timeout passes.
func waitIdle(ctx context.Context, timeout time.Duration, idle func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !idle() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
	return true
}

func printSummary(w io.Writer, st router.Stats, drained bool) {
	fmt.Fprintln(w, "Session summary:")
	fmt.Fprintf(w, "  received:   %s\n", humanize.Comma(st.Received))
	fmt.Fprintf(w, "  dispatched: %s in %s batches\n", humanize.Comma(st.Dispatched), humanize.Comma(st.Batches))
	fmt.Fprintf(w, "  dropped:    %s evicted, %s rejected, %s stale\n",
		humanize.Comma(st.Evicted), humanize.Comma(st.Rejected), humanize.Comma(st.Stale))
	fmt.Fprintf(w, "  failed:     %s\n", humanize.Comma(st.Failed))
	if !drained {
		fmt.Fprintf(w, "  %d messages were still queued when the dashboard stopped\n", st.Queued)
	}
}
