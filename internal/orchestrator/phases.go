package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/doctor"
	"github.com/harshul/devup/internal/provisioner"
	"github.com/harshul/devup/internal/supervisor"
	"github.com/harshul/devup/internal/toolchain"
	"github.com/harshul/devup/internal/ui"
)

// tools are the toolchains resolved for this run.
type tools struct {
	build  toolchain.Path
	pm     toolchain.Path
	pmInfo provisioner.Info
}

// autoSetup runs the bootstrap script when one exists and something is
// missing. Its outcome is advisory.
func (o *Orchestrator) autoSetup(ctx context.Context, force bool) {
	if o.bp.Bootstrap.Disabled && !force {
		ui.Info("Auto setup disabled (AUTO_SETUP=0).")
		return
	}
	script, ok := o.host.BootstrapCommand(o.root, o.bp.Bootstrap.Script)
	if !ok {
		ui.Info("Auto setup skipped (no " + o.bp.Bootstrap.Script + " script in " + o.root + ").")
		return
	}

	manager := provisioner.Detect(o.dir(o.bp.Frontend.Dir)).Manager
	report := doctor.New(o.locator, o.runner, manager).Diagnose(ctx)
	if report.Healthy() {
		ui.Success("Auto setup skipped (environment looks ready).")
		return
	}
	ui.Warn("Missing required tools:")
	for _, item := range report.Missing() {
		ui.Bullet(item)
	}

	ui.Info("Running " + script.String())
	result, err := o.runner.Run(ctx, script)
	ui.Output(result.Output)
	if err != nil || !result.OK() {
		o.log.Warnw("bootstrap failed", "command", script.String(), "exit", result.ExitCode, "error", err)
		ui.Warn("Auto setup finished with warnings. Continue with manual setup if needed.")
	} else {
		ui.Success("Auto setup finished.")
	}
	o.locator.Reset()
}

func (o *Orchestrator) validateEnv(ctx context.Context) (tools, error) {
	var t tools

	build, ok := o.locator.ResolveBuildTool(ctx)
	if !ok {
		ui.Error("Maven not found in PATH or well-known locations. Set MAVEN_HOME or add mvn to PATH.")
		return t, fmt.Errorf("%w: Maven (mvn)", ErrPrerequisiteMissing)
	}
	ui.Success("Build tool: " + build.String())

	t.pmInfo = provisioner.Detect(o.dir(o.bp.Frontend.Dir))
	pm, ok := o.locator.ResolvePackageManager(ctx, t.pmInfo.Manager)
	if !ok {
		ui.Error(fmt.Sprintf("%s not found in PATH or system locations. Set NODE_HOME or add %s to PATH.", t.pmInfo.Manager, t.pmInfo.Manager))
		if hint := provisioner.InstallHint(t.pmInfo.Manager); hint != "" {
			ui.Info(hint)
		}
		return t, fmt.Errorf("%w: %s", ErrPrerequisiteMissing, t.pmInfo.Manager)
	}
	ui.Success("Package manager: " + pm.String())

	t.build, t.pm = build, pm
	return t, nil
}

// cleanupPorts reclaims both ports. With ReuseRunning, a role whose port
// already has a listener is recorded for adoption instead. Failure to free
// a port is only a warning here; the launch re-checks.
func (o *Orchestrator) cleanupPorts(ctx context.Context) map[string]int {
	adopt := make(map[string]int)
	for _, b := range []struct {
		role string
		port int
	}{
		{RoleBackend, o.bp.Backend.Port},
		{RoleFrontend, o.bp.Frontend.Port},
	} {
		if o.opts.ReuseRunning && !o.ports.IsAvailable(b.port) {
			owners, err := o.ports.FindOwningProcesses(ctx, b.port, true)
			if err == nil && len(owners) > 0 {
				adopt[b.role] = owners[0]
				ui.Info(fmt.Sprintf("Reusing running %s on port %d (PID %d).", b.role, b.port, owners[0]))
				continue
			}
		}
		if !o.ports.ForceFree(ctx, b.port, b.role) {
			o.log.Warnw("port not freed", "role", b.role, "port", b.port)
			ui.Warn(fmt.Sprintf("Failed to free %s port %d. Try again with administrator privileges.", b.role, b.port))
		}
	}
	return adopt
}

// ensureDatabase starts the database service when it is stopped. Every
// failure here is a warning.
func (o *Orchestrator) ensureDatabase(ctx context.Context) {
	name := o.bp.Database.Service
	if name == "" {
		ui.Info("Database service check skipped (no service configured).")
		return
	}
	sc, ok := o.host.ServiceControl(name)
	if !ok {
		ui.Info("Database service check skipped on this platform.")
		return
	}

	result, err := o.runner.Run(ctx, sc.Query)
	if err != nil {
		o.log.Warnw("service query failed", "service", name, "error", err)
		ui.Warn("Failed to query database service: " + name)
		return
	}
	if sc.Running(result) {
		ui.Success("Database service is running: " + name)
		return
	}

	ui.Info("Starting database service: " + name)
	result, err = o.runner.Run(ctx, sc.Start)
	if err != nil || !result.OK() {
		ui.Output(result.Output)
		ui.Warn("Could not start database service " + name + "; the backend may fail to connect.")
		return
	}
	ui.Success("Database service started: " + name)
}

func (o *Orchestrator) build(ctx context.Context, t tools, adopted map[string]int) error {
	if o.opts.SkipBuild {
		ui.Info("Build skipped (--skip-build).")
		return nil
	}

	if _, ok := adopted[RoleBackend]; !ok {
		ui.Info("Building backend...")
		c := t.build.Command(o.bp.Backend.Build...).In(o.dir(o.bp.Backend.Dir))
		if err := o.runStep(ctx, "backend package", c); err != nil {
			return err
		}
	}

	if _, ok := adopted[RoleFrontend]; ok {
		return nil
	}
	frontendDir := o.dir(o.bp.Frontend.Dir)
	if !isDir(filepath.Join(frontendDir, "node_modules")) {
		ui.Info("Installing frontend dependencies...")
		install := o.bp.Frontend.Install
		if len(install) == 0 {
			install = t.pmInfo.InstallArgs
		}
		if err := o.runStep(ctx, "frontend install", t.pm.Command(install...).In(frontendDir)); err != nil {
			return err
		}
	}

	if len(o.bp.Frontend.Build) == 0 {
		ui.Info("No frontend build configured; frontend build skipped.")
		return nil
	}
	manifest, err := provisioner.ReadManifest(frontendDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ui.Info("No package.json in " + frontendDir + "; frontend build skipped.")
		return nil
	case err != nil:
		o.log.Warnw("cannot read package.json", "dir", frontendDir, "error", err)
		ui.Warn("Could not read package.json (" + err.Error() + "); frontend build skipped.")
		return nil
	case !manifest.HasScript("build"):
		ui.Info("No build script in package.json; frontend build skipped.")
		return nil
	}
	ui.Info("Building frontend...")
	return o.runStep(ctx, "frontend build", t.pm.Command(o.bp.Frontend.Build...).In(frontendDir))
}

// runStep runs a one-shot build command. A failure surfaces the captured
// output.
func (o *Orchestrator) runStep(ctx context.Context, step string, c command.Command) error {
	result, err := o.runner.Run(ctx, c)
	if err != nil {
		ui.Output(result.Output)
		ui.Error(step + " could not run: " + err.Error())
		return &BuildError{Step: step, Command: c.String(), ExitCode: result.ExitCode, Output: result.Output, Err: err}
	}
	if !result.OK() {
		ui.Output(result.Output)
		ui.Error(fmt.Sprintf("%s failed (exit %d): %s", step, result.ExitCode, c.String()))
		return &BuildError{Step: step, Command: c.String(), ExitCode: result.ExitCode, Output: result.Output}
	}
	o.log.Debugw("step finished", "step", step, "output", strings.TrimSpace(result.Output))
	return nil
}

func (o *Orchestrator) startBackend(ctx context.Context, t tools, adopted map[string]int) (*supervisor.Managed, error) {
	if pid, ok := adopted[RoleBackend]; ok {
		ui.Success(fmt.Sprintf("Backend already running on http://localhost:%d", o.bp.Backend.Port))
		return o.sup.Adopt(ctx, RoleBackend, pid), nil
	}
	c := t.build.Command(o.bp.Backend.RunArgs()...)
	return o.launch(ctx, RoleBackend, o.dir(o.bp.Backend.Dir), c, o.bp.Backend.Port, o.bp.Backend.ReadyTimeout)
}

func (o *Orchestrator) startFrontend(ctx context.Context, t tools, adopted map[string]int) (*supervisor.Managed, error) {
	if pid, ok := adopted[RoleFrontend]; ok {
		return o.sup.Adopt(ctx, RoleFrontend, pid), nil
	}
	c := t.pm.Command(o.bp.Frontend.RunArgs()...)
	return o.launch(ctx, RoleFrontend, o.dir(o.bp.Frontend.Dir), c, o.bp.Frontend.Port, o.bp.Frontend.ReadyTimeout)
}

// launch re-checks the port, spawns the child and waits for it to listen.
// A non-nil Managed is returned whenever a child was spawned, even with an
// error, so the caller can release it.
func (o *Orchestrator) launch(ctx context.Context, role, dir string, c command.Command, port int, timeout time.Duration) (*supervisor.Managed, error) {
	if !o.ports.IsAvailable(port) && !o.ports.ForceFree(ctx, port, role) {
		ui.Error(fmt.Sprintf("Failed to free %s port %d. Try again with administrator privileges.", role, port))
		return nil, fmt.Errorf("%w: %s port %d", ErrPortContention, role, port)
	}

	o.emit(Event{Kind: EventLaunch, Role: role, Detail: c.String()})
	m, err := o.sup.Launch(role, dir, c)
	if err != nil {
		ui.Error(fmt.Sprintf("Failed to start %s: %v", role, err))
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, role, err)
	}

	if err := o.awaitReady(ctx, m, port, timeout); err != nil {
		ui.Error(fmt.Sprintf("%s failed to start. Please check logs.", title(role)))
		return m, err
	}
	o.emit(Event{Kind: EventReady, Role: role, PID: m.PID()})
	ui.Success(fmt.Sprintf("%s started on http://localhost:%d", title(role), port))
	return m, nil
}

// awaitReady waits for port to open, giving up early if the child exits.
func (o *Orchestrator) awaitReady(ctx context.Context, m *supervisor.Managed, port int, timeout time.Duration) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	if o.ports.WaitUntilOpen(waitCtx, port, timeout) {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case !m.Alive():
		return fmt.Errorf("%w: %s exited before opening port %d", ErrLaunchFailed, m.Role, port)
	default:
		return fmt.Errorf("%w: %s did not open port %d within %s", ErrReadinessTimeout, m.Role, port, timeout)
	}
}

// handleReady opens the browser for a freshly started frontend, once per
// run. It returns whether the browser has been opened.
func (o *Orchestrator) handleReady(ctx context.Context, frontend *supervisor.Managed, opened bool) bool {
	url := o.bp.Frontend.URL()
	if !frontend.StartedByUs {
		ui.Info("Frontend already running at " + url)
		return opened
	}
	if opened || o.opts.NoBrowser {
		ui.Info("Frontend is ready: " + url)
		return opened
	}
	if !o.ports.WaitUntilOpen(ctx, o.bp.Frontend.Port, o.readyWait) {
		ui.Warn("Frontend not ready; open manually: " + url)
		return opened
	}

	ui.Success("Frontend is ready: " + url)
	o.emit(Event{Kind: EventBrowser, Role: RoleFrontend, Detail: url})
	if err := o.host.OpenURL(url); err != nil {
		o.log.Warnw("open browser failed", "url", url, "error", err)
		ui.Warn("Could not open a browser; open manually: " + url)
	}
	return true
}

// keepAlive blocks until ctx ends or either child stops on its own.
func (o *Orchestrator) keepAlive(ctx context.Context, backend, frontend *supervisor.Managed) error {
	select {
	case <-ctx.Done():
		ui.Info("Shutting down...")
		return nil
	case <-backend.Done():
		ui.Warn("Backend exited; stopping the frontend.")
		return fmt.Errorf("%w: %s", ErrExited, RoleBackend)
	case <-frontend.Done():
		ui.Warn("Frontend exited; stopping the backend.")
		return fmt.Errorf("%w: %s", ErrExited, RoleFrontend)
	}
}

func title(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
