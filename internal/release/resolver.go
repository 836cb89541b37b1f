// Package release decides which maple-proxy version the sidecar should run.
//
// A pinned version always wins and is never validated against the remote
// index; an invalid pin surfaces later as a 404 during download. Without a
// pin, the latest published tag is fetched from the release index and cached
// on disk so repeated startups within the TTL make no network calls.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenSecretCloud/maple-sidecar/internal/platform"
)

const (
	// DefaultBaseURL is the download base for maple-proxy release archives.
	DefaultBaseURL = "https://github.com/OpenSecretCloud/maple-proxy/releases/download"
	// DefaultLatestURL is the release index queried for the newest tag.
	DefaultLatestURL = "https://api.github.com/repos/OpenSecretCloud/maple-proxy/releases/latest"

	// CacheTTL is the maximum age at which a cached latest-version lookup is
	// still trusted without re-querying the release index.
	CacheTTL = 24 * time.Hour

	// markerFile holds the last resolved latest tag under the cache root.
	// Its modification time doubles as the checked-at timestamp.
	markerFile = ".latest-version"

	requestTimeout = 30 * time.Second
	userAgent      = "maple-sidecar/1.0"
)

// Resolver resolves the maple-proxy version to install and builds release
// URLs from the fixed release-source template.
type Resolver struct {
	baseURL   string
	latestURL string
	cacheDir  string
	client    *http.Client
	clock     Clock
	log       zerolog.Logger
}

// Config holds resolver configuration. Zero values select production
// defaults; only CacheDir is required.
type Config struct {
	// CacheDir is the root cache directory holding the latest-version marker.
	CacheDir string
	// BaseURL overrides the release download base (tests).
	BaseURL string
	// LatestURL overrides the release index endpoint (tests).
	LatestURL string
	// Client overrides the HTTP client used for index queries (tests).
	Client *http.Client
	// Clock overrides the time source used for TTL checks (tests).
	Clock Clock
	// Logger receives resolution events. The zero value discards them.
	Logger zerolog.Logger
}

// NewResolver creates a version resolver.
func NewResolver(config Config) (*Resolver, error) {
	if config.CacheDir == "" {
		return nil, fmt.Errorf("CacheDir is required")
	}

	r := &Resolver{
		baseURL:   config.BaseURL,
		latestURL: config.LatestURL,
		cacheDir:  config.CacheDir,
		client:    config.Client,
		clock:     config.Clock,
		log:       config.Logger,
	}
	if r.baseURL == "" {
		r.baseURL = DefaultBaseURL
	}
	if r.latestURL == "" {
		r.latestURL = DefaultLatestURL
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: requestTimeout}
	}
	if r.clock == nil {
		r.clock = RealClock{}
	}

	return r, nil
}

// Resolve returns the version tag to install. A pinned tag is returned
// unchanged with no network access. Otherwise a cached lookup younger than
// CacheTTL wins, and only then is the release index queried; the fresh tag
// is persisted before being returned. A failed index query is a hard
// failure: there is no fallback to a stale cache entry or a built-in tag.
func (r *Resolver) Resolve(ctx context.Context, pinned string) (string, error) {
	if pinned != "" {
		r.log.Debug().Str("version", pinned).Msg("using pinned version")
		return pinned, nil
	}

	if tag, ok := r.cachedTag(); ok {
		return tag, nil
	}

	tag, err := r.fetchLatestTag(ctx)
	if err != nil {
		return "", err
	}

	if err := r.storeTag(tag); err != nil {
		// The lookup succeeded; a broken cache only costs a re-query later.
		r.log.Warn().Err(err).Msg("persist latest-version marker")
	}

	return tag, nil
}

// cachedTag reads the latest-version marker, honoring the TTL against the
// file's modification time.
func (r *Resolver) cachedTag() (string, bool) {
	path := filepath.Join(r.cacheDir, markerFile)

	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if r.clock.Now().Sub(info.ModTime()) >= CacheTTL {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	tag := strings.TrimSpace(string(data))
	if tag == "" {
		return "", false
	}

	r.log.Debug().Str("version", tag).Msg("using cached latest version")
	return tag, true
}

// fetchLatestTag queries the release index for the newest published tag.
func (r *Resolver) fetchLatestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.latestURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query release index %s: %w", r.latestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("query release index %s: unexpected status %d", r.latestURL, resp.StatusCode)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("decode release index response: %w", err)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("release index %s returned no tag", r.latestURL)
	}

	r.log.Info().Str("version", release.TagName).Msg("resolved latest version")
	return release.TagName, nil
}

// storeTag persists the latest tag, creating the cache directory if needed.
func (r *Resolver) storeTag(tag string) error {
	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(r.cacheDir, markerFile)
	if err := os.WriteFile(path, []byte(tag+"\n"), 0644); err != nil {
		return fmt.Errorf("write marker file: %w", err)
	}
	return nil
}

// ArchiveURL returns the download URL for a version's platform archive.
func (r *Resolver) ArchiveURL(version string, artifact platform.Artifact) string {
	return fmt.Sprintf("%s/%s/%s", r.baseURL, version, artifact.Filename())
}

// ChecksumURL returns the URL of the archive's SHA-256 companion file.
func (r *Resolver) ChecksumURL(version string, artifact platform.Artifact) string {
	return r.ArchiveURL(version, artifact) + ".sha256"
}

// SignatureURL returns the URL of the archive's detached GPG signature.
func (r *Resolver) SignatureURL(version string, artifact platform.Artifact) string {
	return r.ArchiveURL(version, artifact) + ".asc"
}
