package sidecar

import (
	"context"
	"strings"
	"testing"
)

func TestRunRequiresAPIKey(t *testing.T) {
	err := Run(context.Background(), Config{CacheDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Errorf("error does not name the missing setting: %v", err)
	}
	if !strings.Contains(err.Error(), "MAPLE_API_KEY") {
		t.Errorf("error does not point at the environment variable: %v", err)
	}
}

func TestDefaultCacheDir(t *testing.T) {
	dir, err := defaultCacheDir()
	if err != nil {
		t.Skipf("no user cache dir on this host: %v", err)
	}
	if !strings.HasSuffix(dir, "maple-sidecar") {
		t.Errorf("unexpected cache dir: %s", dir)
	}
}
