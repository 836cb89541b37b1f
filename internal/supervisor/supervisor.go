package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrPortInUse reports that the configured port already has a
	// listener, so the proxy was not spawned at all.
	ErrPortInUse = errors.New("port already in use")

	// ErrStartInProgress reports an overlapping Start call.
	ErrStartInProgress = errors.New("start already in progress")

	// ErrRestartsExhausted reports that the child kept dying until the
	// restart budget ran out.
	ErrRestartsExhausted = errors.New("restart budget exhausted")
)

// child is one spawned maple-proxy process. done is closed after Wait
// returns, at which point waitErr holds the exit result.
type child struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

// Supervisor owns at most one maple-proxy child process at a time.
type Supervisor struct {
	config    Config
	log       zerolog.Logger
	client    *http.Client
	healthURL string
	failed    chan struct{}

	// newCommand builds the child command. Replaced in tests.
	newCommand func(binaryPath string, env []string) *exec.Cmd

	mu       sync.Mutex
	state    State
	child    *child
	pending  *child
	gen      int
	starting bool
	stopping bool
	err      error
}

// New validates the configuration and returns a supervisor in the idle
// state. Nothing is spawned until Start.
func New(config Config) (*Supervisor, error) {
	config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid supervisor config: %w", err)
	}
	return &Supervisor{
		config:    config,
		log:       config.Logger,
		healthURL: fmt.Sprintf("http://127.0.0.1:%d/health", config.Port),
		client: &http.Client{
			Timeout:   time.Second,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		failed:     make(chan struct{}),
		newCommand: defaultCommand,
		state:      StateIdle,
	}, nil
}

func defaultCommand(binaryPath string, env []string) *exec.Cmd {
	cmd := exec.Command(binaryPath)
	cmd.Env = env
	return cmd
}

// State reports the current lifecycle phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port is the loopback port the proxy listens on.
func (s *Supervisor) Port() int {
	return s.config.Port
}

// Version is the proxy version this supervisor runs.
func (s *Supervisor) Version() string {
	return s.config.Version
}

// Done is closed when the supervisor gives up permanently. Err then
// reports why.
func (s *Supervisor) Done() <-chan struct{} {
	return s.failed
}

// Err reports the terminal failure, or nil while the supervisor is alive.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start spawns maple-proxy and blocks until it answers a health check or
// startup fails. A previously owned child is torn down first. If the child
// exits before becoming healthy, even with status 0, Start fails and the
// child is reaped before returning.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.starting {
		s.mu.Unlock()
		return ErrStartInProgress
	}
	if s.state == StateFailed {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is in a terminal state: %w", ErrRestartsExhausted)
	}
	s.starting = true
	s.stopping = false
	s.gen++
	gen := s.gen
	old := s.child
	s.child = nil
	s.state = StateStarting
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	if old != nil {
		s.log.Debug().Msg("tearing down previous maple-proxy instance")
		s.stopChild(old)
	}

	if err := probePort(s.config.Port); err != nil {
		s.setIdle(gen)
		return err
	}

	c, err := s.spawn()
	if err != nil {
		s.setIdle(gen)
		return err
	}
	if !s.registerPending(c, gen) {
		s.killChild(c)
		return errors.New("supervisor stopped during startup")
	}

	err = s.awaitHealthy(ctx, c)
	s.clearPending(c)
	if err != nil {
		s.killChild(c)
		s.setIdle(gen)
		return err
	}

	s.mu.Lock()
	if s.gen != gen || s.stopping {
		s.mu.Unlock()
		s.stopChild(c)
		return errors.New("supervisor stopped during startup")
	}
	s.child = c
	s.state = StateHealthy
	s.mu.Unlock()

	s.log.Info().
		Int("pid", c.cmd.Process.Pid).
		Int("port", s.config.Port).
		Str("version", s.config.Version).
		Msg("maple-proxy healthy")

	go s.watch(c, gen)
	return nil
}

// Stop shuts the child down deliberately. Safe to call more than once and
// while a restart is pending. A child still in its startup health poll is
// killed outright before Stop returns; only a confirmed-healthy child gets
// the termination signal and grace period.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.gen++
	c := s.child
	p := s.pending
	s.child = nil
	s.pending = nil
	if s.state != StateFailed {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if p != nil {
		s.killChild(p)
	}
	if c != nil {
		s.stopChild(c)
	}
}

// registerPending parks a freshly spawned child where Stop can find it
// while the health poll is still running. Reports false when a Stop or a
// newer Start took over in the meantime.
func (s *Supervisor) registerPending(c *child, gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.stopping {
		return false
	}
	s.pending = c
	return true
}

func (s *Supervisor) clearPending(c *child) {
	s.mu.Lock()
	if s.pending == c {
		s.pending = nil
	}
	s.mu.Unlock()
}

// setIdle returns to idle unless a newer Start or Stop took over.
func (s *Supervisor) setIdle(gen int) {
	s.mu.Lock()
	if s.gen == gen {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

func (s *Supervisor) spawn() (*child, error) {
	cmd := s.newCommand(s.config.BinaryPath, s.config.env())
	cmd.Stdout = &lineWriter{log: s.log, stream: "stdout"}
	cmd.Stderr = &lineWriter{log: s.log, stream: "stderr"}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start maple-proxy: %w", err)
	}
	c := &child{cmd: cmd, done: make(chan struct{})}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()
	s.log.Debug().Int("pid", cmd.Process.Pid).Msg("spawned maple-proxy")
	return c, nil
}

// awaitHealthy polls the health endpoint until the child answers 200. An
// exit before that, with any status, fails startup immediately.
func (s *Supervisor) awaitHealthy(ctx context.Context, c *child) error {
	deadline := time.NewTimer(s.config.StartupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.config.HealthInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("maple-proxy exited before becoming healthy: %s", exitStatus(c))
		case <-deadline.C:
			return fmt.Errorf("maple-proxy not healthy after %s", s.config.StartupTimeout)
		case <-tick.C:
			if s.checkHealth(ctx) {
				return nil
			}
		}
	}
}

func (s *Supervisor) checkHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// watch reaps an unexpected exit of a healthy child and hands off to the
// restart loop. Deliberate stops and superseded generations are ignored.
func (s *Supervisor) watch(c *child, gen int) {
	<-c.done

	s.mu.Lock()
	if s.gen != gen || s.stopping || s.child != c {
		s.mu.Unlock()
		return
	}
	s.child = nil
	s.state = StateRestarting
	s.mu.Unlock()

	s.log.Warn().Str("exit", exitStatus(c)).Msg("maple-proxy exited unexpectedly")
	s.recover(gen)
}

// recover retries the spawn-and-health sequence with a linearly increasing
// delay. A confirmed healthy child resets the budget for the next crash.
func (s *Supervisor) recover(gen int) {
	for attempt := 1; attempt <= s.config.MaxRestarts; attempt++ {
		delay := time.Duration(attempt) * s.config.RestartBackoff
		s.log.Info().
			Int("attempt", attempt).
			Int("max", s.config.MaxRestarts).
			Dur("delay", delay).
			Msg("restarting maple-proxy")
		time.Sleep(delay)

		s.mu.Lock()
		abandoned := s.gen != gen || s.stopping
		s.mu.Unlock()
		if abandoned {
			return
		}

		c, err := s.spawn()
		if err == nil {
			if !s.registerPending(c, gen) {
				s.killChild(c)
				return
			}
			err = s.awaitHealthy(context.Background(), c)
			s.clearPending(c)
		}
		if err != nil {
			if c != nil {
				s.killChild(c)
			}
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("restart attempt failed")
			continue
		}

		s.mu.Lock()
		if s.gen != gen || s.stopping {
			s.mu.Unlock()
			s.stopChild(c)
			return
		}
		s.child = c
		s.state = StateHealthy
		s.mu.Unlock()

		s.log.Info().Int("pid", c.cmd.Process.Pid).Int("attempt", attempt).Msg("maple-proxy recovered")
		go s.watch(c, gen)
		return
	}

	s.mu.Lock()
	if s.gen == gen && !s.stopping {
		s.state = StateFailed
		s.err = ErrRestartsExhausted
		close(s.failed)
	}
	s.mu.Unlock()
	s.log.Error().Int("max", s.config.MaxRestarts).Msg("maple-proxy restart budget exhausted, giving up")
}

// stopChild is the graceful path: termination signal, then kill after the
// grace period.
func (s *Supervisor) stopChild(c *child) {
	select {
	case <-c.done:
		return
	default:
	}

	if err := terminate(c.cmd.Process); err != nil {
		s.log.Debug().Err(err).Msg("signal maple-proxy")
	}

	select {
	case <-c.done:
	case <-time.After(s.config.ShutdownGrace):
		s.log.Warn().Dur("grace", s.config.ShutdownGrace).Msg("maple-proxy ignored shutdown signal, killing")
		_ = c.cmd.Process.Kill()
		<-c.done
	}
}

// killChild reaps a child that never became healthy.
func (s *Supervisor) killChild(c *child) {
	select {
	case <-c.done:
		return
	default:
	}
	_ = c.cmd.Process.Kill()
	<-c.done
}

func probePort(port int) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		if isAddrInUse(err) {
			return fmt.Errorf("%w: port %d has a listener already, pick a different port setting", ErrPortInUse, port)
		}
		return fmt.Errorf("probe port %d: %w", port, err)
	}
	listener.Close()
	return nil
}

func exitStatus(c *child) string {
	if c.waitErr == nil {
		return "exit status 0"
	}
	return c.waitErr.Error()
}

// lineWriter forwards child output to the logger one line at a time.
// Partial lines are held until the newline arrives.
type lineWriter struct {
	log    zerolog.Logger
	stream string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			w.buf.WriteString(line)
			break
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			w.log.Debug().Str("stream", w.stream).Msg(line)
		}
	}
	return len(p), nil
}
