// Package orchestrator runs the local stack end to end: setup check,
// environment validation, port cleanup, database, build, backend and
// frontend launch with readiness waits, browser, and teardown on exit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harshul/devup/internal/blueprint"
	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/doctor"
	"github.com/harshul/devup/internal/platform"
	"github.com/harshul/devup/internal/provisioner"
	"github.com/harshul/devup/internal/supervisor"
	"github.com/harshul/devup/internal/toolchain"
	"github.com/harshul/devup/internal/ui"
	"go.uber.org/zap"
)

const (
	RoleBackend  = "backend"
	RoleFrontend = "frontend"
)

// Runner runs one-shot commands.
type Runner interface {
	Run(ctx context.Context, c command.Command) (command.Result, error)
}

// Locator resolves toolchains.
type Locator interface {
	doctor.Resolver
	ResolveBuildTool(ctx context.Context) (toolchain.Path, bool)
	ResolvePackageManager(ctx context.Context, pm provisioner.PackageManager) (toolchain.Path, bool)
	Reset()
}

// PortManager checks, frees and waits for ports.
type PortManager interface {
	IsAvailable(port int) bool
	FindOwningProcesses(ctx context.Context, port int, requireListening bool) ([]int, error)
	ForceFree(ctx context.Context, port int, label string) bool
	WaitUntilOpen(ctx context.Context, port int, timeout time.Duration) bool
	StopByName(ctx context.Context, names ...string) int
}

// Supervisor owns the long-running children.
type Supervisor interface {
	Launch(role, dir string, c command.Command) (*supervisor.Managed, error)
	Adopt(ctx context.Context, role string, pid int) *supervisor.Managed
	Stop(m *supervisor.Managed)
}

// Host is the part of the platform the orchestrator talks to directly.
type Host interface {
	OpenURL(url string) error
	BootstrapCommand(root, base string) (command.Command, bool)
	ServiceControl(name string) (platform.ServiceControl, bool)
	ServerProcessNames() []string
}

// Options controls how the orchestrator runs the stack.
type Options struct {
	Root         string
	NoBrowser    bool
	SkipBuild    bool
	ReuseRunning bool // adopt instances already listening instead of replacing them
	Observer     Observer
}

// Deps are the collaborators of a run.
type Deps struct {
	Runner     Runner
	Locator    Locator
	Ports      PortManager
	Supervisor Supervisor
	Host       Host
	Log        *zap.SugaredLogger
}

// Orchestrator drives one run. It is not reusable across runs.
type Orchestrator struct {
	bp   blueprint.Blueprint
	opts Options
	root string

	runner  Runner
	locator Locator
	ports   PortManager
	sup     Supervisor
	host    Host
	log     *zap.SugaredLogger

	state         State
	shuttingDown  bool
	browserOpened bool
	readyWait     time.Duration
	releaseWait   time.Duration
}

// New validates the blueprint and wires the collaborators.
func New(bp blueprint.Blueprint, opts Options, deps Deps) (*Orchestrator, error) {
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blueprint: %w", err)
	}
	if deps.Runner == nil || deps.Locator == nil || deps.Ports == nil || deps.Supervisor == nil || deps.Host == nil {
		return nil, errors.New("orchestrator: missing dependency")
	}
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		bp:          bp,
		opts:        opts,
		root:        root,
		runner:      deps.Runner,
		locator:     deps.Locator,
		ports:       deps.Ports,
		sup:         deps.Supervisor,
		host:        deps.Host,
		log:         log,
		state:       StateStart,
		readyWait:   5 * time.Second,
		releaseWait: 10 * time.Second,
	}, nil
}

// State returns the phase the run is in.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the full sequence and blocks while the services run. It
// returns nil when ctx is cancelled (Ctrl+C) and an error wrapping one of
// the Err* sentinels when a phase fails. Every child started by the run is
// stopped before Run returns, frontend first.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.beginShutdown()

	o.enter(StateAutoSetupCheck)
	o.autoSetup(ctx, false)

	o.enter(StateEnvValidation)
	tools, err := o.validateEnv(ctx)
	if err != nil {
		return err
	}

	o.enter(StatePortCleanup)
	running := o.cleanupPorts(ctx)

	o.enter(StateDatabase)
	o.ensureDatabase(ctx)

	o.enter(StateBuild)
	if err := o.build(ctx, tools, running); err != nil {
		return err
	}

	o.enter(StateLaunchBackend)
	backend, err := o.startBackend(ctx, tools, running)
	defer o.release(backend, o.bp.Backend.Port)
	if err != nil {
		return err
	}

	o.enter(StateLaunchFrontend)
	frontend, err := o.startFrontend(ctx, tools, running)
	defer o.release(frontend, o.bp.Frontend.Port)
	if err != nil {
		return err
	}

	o.enter(StateReady)
	o.browserOpened = o.handleReady(ctx, frontend, o.browserOpened)

	o.enter(StateRunning)
	return o.keepAlive(ctx, backend, frontend)
}

// AutoSetupOnly runs the bootstrap step, ignoring AUTO_SETUP=0, and
// starts nothing.
func (o *Orchestrator) AutoSetupOnly(ctx context.Context) error {
	ui.Step(1, 1, "Auto setup only mode...")
	o.autoSetup(ctx, true)
	return nil
}

// StopOnly frees both ports. When reclaiming by port is not enough it
// falls back to killing the server processes by name. It fails if either
// port is still taken at the end.
func (o *Orchestrator) StopOnly(ctx context.Context) error {
	ui.Step(1, 1, "Stop only mode...")
	backendPort, frontendPort := o.bp.Backend.Port, o.bp.Frontend.Port

	backendFree := o.ports.ForceFree(ctx, backendPort, RoleBackend)
	frontendFree := o.ports.ForceFree(ctx, frontendPort, RoleFrontend)
	if !backendFree || !frontendFree {
		ui.Info("Port cleanup incomplete; falling back to process-name stop...")
		o.ports.StopByName(ctx, o.host.ServerProcessNames()...)
	}

	backendFree = o.ports.IsAvailable(backendPort)
	frontendFree = o.ports.IsAvailable(frontendPort)
	if backendFree && frontendFree {
		ui.Success("Frontend/backend ports are free.")
		return nil
	}

	var busy []int
	if !backendFree {
		ui.Warn(fmt.Sprintf("Backend port still in use: %d", backendPort))
		busy = append(busy, backendPort)
	}
	if !frontendFree {
		ui.Warn(fmt.Sprintf("Frontend port still in use: %d", frontendPort))
		busy = append(busy, frontendPort)
	}
	return fmt.Errorf("%w: %v", ErrPortContention, busy)
}

func (o *Orchestrator) enter(s State) {
	o.state = s
	o.emit(Event{Kind: EventState, State: s})
	for i, step := range steps {
		if step.state == s {
			ui.Step(i+1, len(steps), step.text)
			return
		}
	}
}

func (o *Orchestrator) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.State == "" {
		e.State = o.state
	}
	o.log.Debugw("event", "kind", e.Kind, "state", e.State, "role", e.Role, "pid", e.PID, "detail", e.Detail)
	if o.opts.Observer != nil {
		o.opts.Observer(e)
	}
}

func (o *Orchestrator) beginShutdown() {
	if o.shuttingDown {
		return
	}
	o.shuttingDown = true
	o.enter(StateShutdown)
}

// release stops m and, for a child this run started, makes sure its port
// is not left held by a descendant. Nil and adopted processes are fine.
func (o *Orchestrator) release(m *supervisor.Managed, port int) {
	if m == nil {
		return
	}
	o.beginShutdown()
	o.emit(Event{Kind: EventStop, Role: m.Role, PID: m.PID()})
	o.sup.Stop(m)
	if !m.StartedByUs {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.releaseWait)
	defer cancel()
	if !o.ports.IsAvailable(port) {
		o.ports.ForceFree(ctx, port, m.Role)
	}
}

func (o *Orchestrator) dir(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(o.root, rel)
}
