package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OpenSecretCloud/maple-sidecar/internal/platform"
)

// newIndexServer serves a GitHub-style releases/latest response and counts
// how many requests it has seen.
func newIndexServer(t *testing.T, statusCode int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestResolver(t *testing.T, cacheDir, latestURL string, clock Clock) *Resolver {
	t.Helper()
	resolver, err := NewResolver(Config{
		CacheDir:  cacheDir,
		LatestURL: latestURL,
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}
	return resolver
}

func TestResolvePinnedSkipsNetwork(t *testing.T) {
	server, requests := newIndexServer(t, http.StatusOK, `{"tag_name":"v9.9.9"}`)
	resolver := newTestResolver(t, t.TempDir(), server.URL, RealClock{})

	got, err := resolver.Resolve(context.Background(), "v0.3.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v0.3.1" {
		t.Errorf("pinned version not returned unchanged: %s", got)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("pinned resolve made %d network calls, want 0", n)
	}
}

func TestResolveFetchesAndPersistsLatest(t *testing.T) {
	server, requests := newIndexServer(t, http.StatusOK, `{"tag_name":"v0.4.2"}`)
	cacheDir := t.TempDir()
	resolver := newTestResolver(t, cacheDir, server.URL, RealClock{})

	got, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v0.4.2" {
		t.Errorf("unexpected tag: %s", got)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("expected exactly one index query, got %d", n)
	}

	data, err := os.ReadFile(filepath.Join(cacheDir, markerFile))
	if err != nil {
		t.Fatalf("marker file not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != "v0.4.2" {
		t.Errorf("marker content mismatch: %q", data)
	}

	// A second resolve within the TTL must serve from the marker.
	got, err = resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error on cached resolve: %v", err)
	}
	if got != "v0.4.2" {
		t.Errorf("unexpected cached tag: %s", got)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("cached resolve re-queried the index: %d calls", n)
	}
}

func TestResolveStaleCacheRequeries(t *testing.T) {
	server, requests := newIndexServer(t, http.StatusOK, `{"tag_name":"v0.5.0"}`)
	cacheDir := t.TempDir()

	marker := filepath.Join(cacheDir, markerFile)
	if err := os.WriteFile(marker, []byte("v0.4.0\n"), 0644); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	// A clock one minute past the TTL makes the marker stale.
	info, err := os.Stat(marker)
	if err != nil {
		t.Fatalf("stat marker: %v", err)
	}
	clock := TestClock{FixedTime: info.ModTime().Add(CacheTTL + time.Minute)}
	resolver := newTestResolver(t, cacheDir, server.URL, clock)

	got, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v0.5.0" {
		t.Errorf("stale cache was trusted: got %s", got)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("expected one index query, got %d", n)
	}
}

func TestResolveFreshCacheWins(t *testing.T) {
	server, requests := newIndexServer(t, http.StatusOK, `{"tag_name":"v0.5.0"}`)
	cacheDir := t.TempDir()

	marker := filepath.Join(cacheDir, markerFile)
	if err := os.WriteFile(marker, []byte("v0.4.0\n"), 0644); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	info, err := os.Stat(marker)
	if err != nil {
		t.Fatalf("stat marker: %v", err)
	}
	clock := TestClock{FixedTime: info.ModTime().Add(CacheTTL - time.Minute)}
	resolver := newTestResolver(t, cacheDir, server.URL, clock)

	got, err := resolver.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "v0.4.0" {
		t.Errorf("fresh cache ignored: got %s", got)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("fresh cache still queried the index %d times", n)
	}
}

func TestResolveIndexFailureIsHard(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{name: "server_error", statusCode: http.StatusInternalServerError, body: "boom"},
		{name: "rate_limited", statusCode: http.StatusForbidden, body: "rate limit"},
		{name: "empty_tag", statusCode: http.StatusOK, body: `{"tag_name":""}`},
		{name: "garbage_body", statusCode: http.StatusOK, body: "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newIndexServer(t, tt.statusCode, tt.body)
			resolver := newTestResolver(t, t.TempDir(), server.URL, RealClock{})

			if _, err := resolver.Resolve(context.Background(), ""); err == nil {
				t.Fatal("expected error but got none")
			}
		})
	}
}

func TestReleaseURLs(t *testing.T) {
	resolver := newTestResolver(t, t.TempDir(), "http://unused.invalid", RealClock{})
	artifact := platform.Artifact{Name: "maple-proxy-x86_64-unknown-linux-gnu", Archive: platform.ArchiveTarGz}

	wantArchive := DefaultBaseURL + "/v0.3.0/maple-proxy-x86_64-unknown-linux-gnu.tar.gz"
	if got := resolver.ArchiveURL("v0.3.0", artifact); got != wantArchive {
		t.Errorf("archive URL mismatch:\ngot:  %s\nwant: %s", got, wantArchive)
	}
	if got := resolver.ChecksumURL("v0.3.0", artifact); got != wantArchive+".sha256" {
		t.Errorf("checksum URL mismatch: %s", got)
	}
	if got := resolver.SignatureURL("v0.3.0", artifact); got != wantArchive+".asc" {
		t.Errorf("signature URL mismatch: %s", got)
	}
}

func TestNewResolverRequiresCacheDir(t *testing.T) {
	if _, err := NewResolver(Config{}); err == nil {
		t.Fatal("expected error for missing CacheDir")
	}
}
