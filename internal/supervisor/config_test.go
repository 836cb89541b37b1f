package supervisor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfigDefaults(t *testing.T) {
	c := Config{BinaryPath: "/usr/bin/true", APIKey: "k"}
	c.withDefaults()

	if c.Port != DefaultPort {
		t.Errorf("port defaulted to %d", c.Port)
	}
	if c.StartupTimeout != DefaultStartupTimeout {
		t.Errorf("startup timeout defaulted to %s", c.StartupTimeout)
	}
	if c.HealthInterval != DefaultHealthInterval {
		t.Errorf("health interval defaulted to %s", c.HealthInterval)
	}
	if c.MaxRestarts != DefaultMaxRestarts {
		t.Errorf("max restarts defaulted to %d", c.MaxRestarts)
	}
	if c.RestartBackoff != DefaultRestartBackoff {
		t.Errorf("restart backoff defaulted to %s", c.RestartBackoff)
	}
	if c.ShutdownGrace != DefaultShutdownGrace {
		t.Errorf("shutdown grace defaulted to %s", c.ShutdownGrace)
	}

	// Explicit values survive.
	c = Config{BinaryPath: "/usr/bin/true", APIKey: "k", Port: 9000, MaxRestarts: 5, StartupTimeout: time.Minute}
	c.withDefaults()
	if c.Port != 9000 || c.MaxRestarts != 5 || c.StartupTimeout != time.Minute {
		t.Errorf("explicit values overwritten: %+v", c)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"missing binary path", Config{APIKey: "k", Port: 8080}, "binary path"},
		{"missing api key", Config{BinaryPath: "/bin/proxy", Port: 8080}, "api key"},
		{"negative port", Config{BinaryPath: "/bin/proxy", APIKey: "k", Port: -1}, "port"},
		{"port too large", Config{BinaryPath: "/bin/proxy", APIKey: "k", Port: 70000}, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := New(Config{BinaryPath: "/bin/proxy", APIKey: "k"}); err != nil {
		t.Errorf("minimal config rejected: %v", err)
	}
}

func TestConfigEnv(t *testing.T) {
	c := Config{BinaryPath: "/bin/proxy", APIKey: "secret", Port: 9123}
	env := c.env()

	assertEnv(t, env, "MAPLE_HOST=127.0.0.1")
	assertEnv(t, env, "MAPLE_PORT=9123")
	assertEnv(t, env, "MAPLE_API_KEY=secret")
	for _, kv := range env {
		if strings.HasPrefix(kv, "MAPLE_BACKEND_URL=") || strings.HasPrefix(kv, "MAPLE_DEBUG=") {
			t.Errorf("optional variable set without a value: %s", kv)
		}
	}

	c.BackendURL = "https://backend.example.com"
	c.Debug = true
	env = c.env()
	assertEnv(t, env, "MAPLE_BACKEND_URL=https://backend.example.com")
	assertEnv(t, env, "MAPLE_DEBUG=true")
}

func assertEnv(t *testing.T, env []string, want string) {
	t.Helper()
	for _, kv := range env {
		if kv == want {
			return
		}
	}
	t.Errorf("%q not found in child environment", want)
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateStarting:   "starting",
		StateHealthy:    "healthy",
		StateRestarting: "restarting",
		StateFailed:     "failed",
		State(99):       "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	w := &lineWriter{log: log, stream: "stdout"}

	for _, chunk := range []string{"hello wo", "rld\npar", "tial"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}

	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("complete line not forwarded: %s", out)
	}
	if strings.Contains(out, "partial") {
		t.Errorf("partial line forwarded early: %s", out)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "partial") {
		t.Errorf("buffered line lost: %s", buf.String())
	}
}
