package supervisor

// State is the lifecycle phase of the supervised process.
type State int

const (
	// StateIdle means no child process is running.
	StateIdle State = iota
	// StateStarting means a child has been spawned but has not yet
	// answered a health check.
	StateStarting
	// StateHealthy means the child is running and passed its last
	// startup health check.
	StateHealthy
	// StateRestarting means the child exited unexpectedly and a restart
	// attempt is pending or in progress.
	StateRestarting
	// StateFailed means the restart budget is exhausted. Terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateHealthy:
		return "healthy"
	case StateRestarting:
		return "restarting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
