// Package supervisor runs the maple-proxy binary as a child process and
// keeps it alive.
//
// Lifecycle: Start spawns the child with the MAPLE_* environment contract,
// forwards its stdout/stderr to the logger, and polls GET /health until the
// proxy answers 200 or the startup timeout expires. Once healthy, a watcher
// goroutine reaps unexpected exits and restarts the child with a linear
// backoff, up to a bounded number of attempts. Exhausting the budget is
// terminal. Stop is deliberate shutdown: SIGTERM, then SIGKILL after a grace
// period.
//
// Process output is never treated as a readiness signal. Only a passing
// health check moves the supervisor to the healthy state.
package supervisor
