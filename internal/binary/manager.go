package binary

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/OpenSecretCloud/maple-sidecar/internal/platform"
	"github.com/OpenSecretCloud/maple-sidecar/internal/release"
)

// Install describes a verified on-disk maple-proxy binary.
type Install struct {
	// Path is the absolute path to the executable.
	Path string
	// Version is the tag the binary was installed from.
	Version string
}

// Manager orchestrates version resolution, download, verification, and
// extraction of the maple-proxy binary. It is meant to be called once per
// supervised-process startup; concurrent invocations from multiple
// processes against the same cache are an accepted, non-corrupting race.
type Manager struct {
	cacheDir   string
	resolver   *release.Resolver
	downloader *Downloader
	verifier   *Verifier
	log        zerolog.Logger
}

// Config holds configuration for the binary manager.
type Config struct {
	// CacheDir is the root cache directory: one subdirectory per downloaded
	// version plus the latest-version marker. Required.
	CacheDir string
	// Resolver decides which version to install. Required.
	Resolver *release.Resolver
	// Client overrides the HTTP client used for downloads (tests).
	Client *http.Client
	// KeyringPath optionally enables GPG verification of release archives.
	KeyringPath string
	// Logger receives install events. The zero value discards them.
	Logger zerolog.Logger
}

// NewManager creates a binary manager.
func NewManager(config Config) (*Manager, error) {
	if config.CacheDir == "" {
		return nil, fmt.Errorf("CacheDir is required")
	}
	if config.Resolver == nil {
		return nil, fmt.Errorf("Resolver is required")
	}

	downloader := NewDownloader(config.Client)
	return &Manager{
		cacheDir:   config.CacheDir,
		resolver:   config.Resolver,
		downloader: downloader,
		verifier:   NewVerifier(downloader, config.KeyringPath, config.Logger),
		log:        config.Logger,
	}, nil
}

// BinaryPath returns the expected executable path for a version.
func (m *Manager) BinaryPath(version string) string {
	return filepath.Join(m.cacheDir, version, platform.BinaryName())
}

// Ensure resolves the wanted version and guarantees a verified maple-proxy
// binary for it exists on disk. A binary already present for the resolved
// version short-circuits with no network access at all. Old cached versions
// are pruned on every call, including short-circuited ones.
func (m *Manager) Ensure(ctx context.Context, pinned string) (*Install, error) {
	version, err := m.resolver.Resolve(ctx, pinned)
	if err != nil {
		return nil, fmt.Errorf("resolve version: %w", err)
	}

	binPath := m.BinaryPath(version)
	if fileExists(binPath) {
		m.log.Debug().Str("version", version).Str("path", binPath).Msg("binary already installed")
		m.CleanupOldVersions(version)
		return &Install{Path: binPath, Version: version}, nil
	}

	artifact, err := platform.ResolveArtifact()
	if err != nil {
		return nil, err
	}

	versionDir := filepath.Join(m.cacheDir, version)
	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return nil, fmt.Errorf("create version dir: %w", err)
	}

	archiveURL := m.resolver.ArchiveURL(version, artifact)
	archivePath := filepath.Join(versionDir, artifact.Filename())
	m.log.Info().Str("version", version).Str("url", archiveURL).Msg("downloading maple-proxy")
	if err := m.downloader.DownloadToFile(ctx, archiveURL, archivePath); err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}

	// Verify before trusting: signature (when configured), then digest,
	// then and only then extraction.
	if err := m.verifier.VerifySignature(ctx, archivePath, m.resolver.SignatureURL(version, artifact)); err != nil {
		return nil, err
	}
	if err := m.verifier.VerifyChecksum(ctx, archivePath, m.resolver.ChecksumURL(version, artifact)); err != nil {
		return nil, err
	}

	if err := Extract(archivePath, versionDir, artifact.Archive); err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	if err := os.Remove(archivePath); err != nil {
		m.log.Warn().Err(err).Str("path", archivePath).Msg("remove archive after extraction")
	}

	if !fileExists(binPath) {
		return nil, fmt.Errorf("archive %s did not contain %s", artifact.Filename(), platform.BinaryName())
	}
	if err := SetExecutable(binPath); err != nil {
		return nil, err
	}

	m.CleanupOldVersions(version)
	m.log.Info().Str("version", version).Str("path", binPath).Msg("maple-proxy installed")
	return &Install{Path: binPath, Version: version}, nil
}
