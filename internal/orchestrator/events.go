package orchestrator

import "time"

// State is a phase of a run. A run moves through them in order and may
// stop early; SHUTDOWN always comes last.
type State string

const (
	StateStart          State = "START"
	StateAutoSetupCheck State = "AUTO_SETUP_CHECK"
	StateEnvValidation  State = "ENV_VALIDATION"
	StatePortCleanup    State = "PORT_CLEANUP"
	StateDatabase       State = "DATABASE"
	StateBuild          State = "BUILD"
	StateLaunchBackend  State = "LAUNCH_BACKEND"
	StateLaunchFrontend State = "LAUNCH_FRONTEND"
	StateReady          State = "READY"
	StateRunning        State = "RUNNING"
	StateShutdown       State = "SHUTDOWN"
)

// steps are the numbered progress lines, one per user-visible phase.
var steps = []struct {
	state State
	text  string
}{
	{StateAutoSetupCheck, "Running auto setup (if needed)..."},
	{StateEnvValidation, "Checking environment..."},
	{StatePortCleanup, "Stopping existing frontend/backend processes..."},
	{StateDatabase, "Ensuring database service..."},
	{StateBuild, "Building backend and frontend..."},
	{StateLaunchBackend, "Starting backend service..."},
	{StateLaunchFrontend, "Starting frontend dev server..."},
	{StateReady, "Waiting for frontend and opening browser..."},
	{StateRunning, "Services are running. Press Ctrl+C to stop."},
}

// EventKind says what happened.
type EventKind string

const (
	EventState   EventKind = "state"
	EventLaunch  EventKind = "launch"
	EventReady   EventKind = "ready"
	EventBrowser EventKind = "browser"
	EventStop    EventKind = "stop"
)

// Event is one timestamped entry of a run's trace.
type Event struct {
	At     time.Time
	Kind   EventKind
	State  State
	Role   string
	PID    int
	Detail string
}

// Observer receives events synchronously, on the orchestrator's goroutine.
type Observer func(Event)
