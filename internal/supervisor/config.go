package supervisor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPort is the loopback port maple-proxy listens on.
	DefaultPort = 8080
	// DefaultStartupTimeout bounds how long a freshly spawned child may
	// take to answer its first health check.
	DefaultStartupTimeout = 10 * time.Second
	// DefaultHealthInterval is the polling cadence during startup.
	DefaultHealthInterval = 200 * time.Millisecond
	// DefaultMaxRestarts bounds restart attempts after an unexpected exit.
	DefaultMaxRestarts = 3
	// DefaultRestartBackoff is multiplied by the attempt number to give a
	// linearly increasing delay between restarts.
	DefaultRestartBackoff = 2 * time.Second
	// DefaultShutdownGrace is how long a SIGTERM'd child gets before
	// SIGKILL.
	DefaultShutdownGrace = 3 * time.Second
)

// Config describes how to run and supervise the maple-proxy child.
type Config struct {
	// BinaryPath is the maple-proxy executable to run. Required.
	BinaryPath string

	// Version is the installed proxy version, for logs and the Version
	// accessor.
	Version string

	// Port is the loopback port the proxy is told to listen on.
	Port int

	// APIKey is forwarded to the child as MAPLE_API_KEY. Required.
	APIKey string

	// BackendURL overrides the proxy's upstream when non-empty.
	BackendURL string

	// Debug turns on verbose logging in the child.
	Debug bool

	StartupTimeout time.Duration
	HealthInterval time.Duration
	MaxRestarts    int
	RestartBackoff time.Duration
	ShutdownGrace  time.Duration

	// Logger receives supervisor events and forwarded child output. The
	// zero value discards them.
	Logger zerolog.Logger
}

func (c *Config) withDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.MaxRestarts == 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.RestartBackoff == 0 {
		c.RestartBackoff = DefaultRestartBackoff
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
}

func (c *Config) validate() error {
	if c.BinaryPath == "" {
		return errors.New("binary path is required")
	}
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// env builds the child environment: the parent environment plus the MAPLE_*
// contract the proxy reads its settings from.
func (c *Config) env() []string {
	env := append(os.Environ(),
		"MAPLE_HOST=127.0.0.1",
		"MAPLE_PORT="+strconv.Itoa(c.Port),
		"MAPLE_API_KEY="+c.APIKey,
	)
	if c.BackendURL != "" {
		env = append(env, "MAPLE_BACKEND_URL="+c.BackendURL)
	}
	if c.Debug {
		env = append(env, "MAPLE_DEBUG=true")
	}
	return env
}
