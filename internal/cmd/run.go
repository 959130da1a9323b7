package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/TannerBurns/termai/internal/ai"
	"github.com/TannerBurns/termai/internal/approval"
	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
	"github.com/TannerBurns/termai/internal/orchestrator"
	"github.com/TannerBurns/termai/internal/session"
	"github.com/TannerBurns/termai/internal/shell"
	"github.com/TannerBurns/termai/internal/tool"
	"github.com/TannerBurns/termai/internal/tui"
	"github.com/TannerBurns/termai/internal/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run the agent on a prompt",
	Long: `Run the agent on a prompt in the current directory.

The agent restates the prompt as a goal, plans a checklist, and works
through it with the tools its capability mode allows. Raw shell
commands pause for approval unless --auto-approve is set. A TUI monitor
shows progress; --plain (or a non-interactive stdout) switches to line
output.

Use --session to resume a stored session with its checklist and work
log; without a new prompt the session's original request is continued.`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

var (
	runPlain     bool
	runSessionID string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("mode", "m", "", "capability mode: scout, navigator, copilot, pilot")
	runCmd.Flags().Int("max-iterations", 0, "cap the number of agent iterations for this run")
	runCmd.Flags().Bool("auto-approve", false, "run shell commands without asking")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "line output instead of the TUI monitor")
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "resume a stored session by id")

	// Changed flags override the config file and environment
	_ = viper.BindPFlag("tools.default_mode", runCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("agent.max_iterations", runCmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("approval.auto_approve", runCmd.Flags().Lookup("auto-approve"))
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && runSessionID == "" {
		return fmt.Errorf("nothing to do: give a prompt or --session to resume")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mode, err := tool.ParseMode(cfg.Tools.DefaultMode)
	if err != nil {
		return fmt.Errorf("invalid mode %q (valid: %s)",
			cfg.Tools.DefaultMode, strings.Join(config.ValidAgentModes(), ", "))
	}

	workdir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logger.Close()

	client, err := ai.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	bus := event.NewBus()

	namer := session.NewNamer(session.NewAISummarizer(client), logger)
	manager, err := session.NewManager(cfg, bus, logger, session.WithNamer(namer))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer manager.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sess *session.Session
	if runSessionID != "" {
		sess, err = manager.Resume(ctx, runSessionID)
	} else {
		sess, err = manager.Create(ctx, prompt, mode)
	}
	if err != nil {
		return err
	}
	if prompt == "" {
		prompt = sess.Prompt()
	}

	watch, err := watcher.New(workdir, bus, logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", workdir, err)
	}
	if err := watch.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watch.Stop()

	broker := approval.NewBroker(cfg, bus, logger)

	executor := shell.NewPTYExecutor(cfg, workdir, logger)
	defer executor.Close()
	procs := shell.NewProcManager(cfg, workdir, logger)
	defer procs.StopAll()

	registry, err := tool.NewRegistry(tool.Deps{
		Config:    cfg,
		SessionID: sess.ID(),
		Workdir:   workdir,
		Locks:     manager.Coordinator(),
		Shell:     executor,
		Procs:     procs,
		Approvals: broker,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	engine, err := orchestrator.NewEngine(orchestrator.Deps{
		Config:    cfg,
		Session:   sess,
		Client:    client,
		Registry:  registry,
		Shell:     executor,
		Locks:     manager.Coordinator(),
		Approvals: broker,
		Watcher:   watch,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if runPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		tui.NewPrinter(os.Stdout, os.Stdin, broker).Attach(bus)
		return finishRun(engine.Run(ctx, prompt))
	}

	monitor := tui.New(sess, broker, bus)
	runErr := monitor.Run(ctx, func() error { return engine.Run(ctx, prompt) })
	if runErr != nil && ctx.Err() != nil {
		// A signal kills the program loop before the run winds down.
		runErr = apperrors.ErrRunCancelled
	}
	if err := finishRun(runErr); err != nil {
		return err
	}

	// The alt screen is gone; repeat the outcome where it stays visible.
	if snap := sess.Snapshot(); snap.Summary != "" {
		fmt.Println(snap.Summary)
	}
	return nil
}

// finishRun folds run outcomes into the process exit status. A
// cancelled run is a user choice, not a failure.
func finishRun(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrRunCancelled) {
		fmt.Println("run cancelled")
		return nil
	}
	return err
}

// buildLogger opens the rotating debug log under the data directory,
// or a no-op logger when logging is disabled.
func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLoggerWithRotation(
		filepath.Join(config.DataDir(), "logs"),
		cfg.Logging.Level,
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	)
}
