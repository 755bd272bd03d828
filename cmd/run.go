package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/harshul/devup/internal/blueprint"
	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/orchestrator"
	"github.com/harshul/devup/internal/platform"
	"github.com/harshul/devup/internal/ports"
	"github.com/harshul/devup/internal/supervisor"
	"github.com/harshul/devup/internal/toolchain"
	"github.com/harshul/devup/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	flags := rootCmd.Flags()
	flags.Bool("auto-setup-only", false, "Run only the machine setup script and exit")
	flags.Bool("stop-only", false, "Free the backend and frontend ports and exit")
	flags.Bool("reuse-running", false, "Adopt instances already listening instead of restarting them")
	flags.Bool("no-browser", false, "Do not open the browser when the frontend is ready")
	flags.Bool("skip-build", false, "Skip the backend package and frontend build steps")
	rootCmd.MarkFlagsMutuallyExclusive("auto-setup-only", "stop-only")
}

// shutdownSignals end a run through its deferred cleanup. SIGHUP is
// included because the children sit in their own process groups and never
// see the terminal hang up.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), shutdownSignals...)
}

// env is what every command needs: the platform, a runner, a locator and
// the loaded blueprint.
type env struct {
	log     *zap.SugaredLogger
	ops     platform.Ops
	runner  *command.Runner
	locator *toolchain.Locator
	root    string
	bp      blueprint.Blueprint
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	rootFlag, _ := cmd.Flags().GetString("root")
	configPath, _ := cmd.Flags().GetString("config")

	log, err := ui.NewLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	runner := command.NewRunner(log)
	ops := platform.Current(runner, log)
	defaults := blueprint.Default(ops.DefaultServiceName())

	root := rootFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		root = blueprint.DetectRoot(cwd, defaults)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	bp, err := blueprint.Load(root, configPath, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	bp.ApplyEnv(os.Getenv)
	log.Debugw("configuration loaded", "root", root, "platform", ops.Name(), "backend", bp.Backend.Port, "frontend", bp.Frontend.Port)

	return &env{
		log:     log,
		ops:     ops,
		runner:  runner,
		locator: toolchain.NewLocator(runner, ops, log),
		root:    root,
		bp:      bp,
	}, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.log.Sync() //nolint:errcheck

	autoSetupOnly, _ := cmd.Flags().GetBool("auto-setup-only")
	stopOnly, _ := cmd.Flags().GetBool("stop-only")
	reuse, _ := cmd.Flags().GetBool("reuse-running")
	noBrowser, _ := cmd.Flags().GetBool("no-browser")
	skipBuild, _ := cmd.Flags().GetBool("skip-build")

	o, err := orchestrator.New(e.bp, orchestrator.Options{
		Root:         e.root,
		NoBrowser:    noBrowser,
		SkipBuild:    skipBuild,
		ReuseRunning: reuse,
		Observer: func(ev orchestrator.Event) {
			if ev.Kind != orchestrator.EventState {
				e.log.Infow("trace", "at", ev.At, "kind", ev.Kind, "role", ev.Role, "pid", ev.PID, "detail", ev.Detail)
			}
		},
	}, orchestrator.Deps{
		Runner:     e.runner,
		Locator:    e.locator,
		Ports:      ports.NewManager(e.ops, e.log),
		Supervisor: supervisor.New(e.runner, e.log),
		Host:       e.ops,
		Log:        e.log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	switch {
	case autoSetupOnly:
		return o.AutoSetupOnly(ctx)
	case stopOnly:
		return o.StopOnly(ctx)
	}

	ui.Highlight("Starting "+e.bp.Name, e.root)
	return o.Run(ctx)
}
