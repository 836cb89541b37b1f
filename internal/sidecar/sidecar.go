// Package sidecar wires the platform, release, binary, and supervisor
// layers into the single entry point the host process calls.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenSecretCloud/maple-sidecar/internal/binary"
	"github.com/OpenSecretCloud/maple-sidecar/internal/platform"
	"github.com/OpenSecretCloud/maple-sidecar/internal/release"
	"github.com/OpenSecretCloud/maple-sidecar/internal/supervisor"
)

// Config is everything Run needs. Zero values fall back to defaults where
// one exists; APIKey has none and is required.
type Config struct {
	// APIKey is handed to maple-proxy as MAPLE_API_KEY. Required.
	APIKey string

	// BackendURL overrides the proxy's upstream when non-empty.
	BackendURL string

	// Port is the loopback port for the proxy. Zero means 8080.
	Port int

	// ProxyVersion pins a release tag. Empty means latest.
	ProxyVersion string

	// CacheDir overrides where binaries are installed. Empty means the
	// maple-sidecar directory under the user cache dir.
	CacheDir string

	// KeyringPath enables GPG signature verification of downloads.
	KeyringPath string

	Debug  bool
	Logger zerolog.Logger
}

func defaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "maple-sidecar"), nil
}

// Run installs maple-proxy if needed, supervises it, and blocks until the
// context is cancelled or the supervisor fails permanently. Cancellation is
// the graceful path: the child is stopped and Run returns nil.
func Run(ctx context.Context, config Config) error {
	if config.APIKey == "" {
		return errors.New("api key is required: set MAPLE_API_KEY or the api_key setting")
	}
	log := config.Logger

	cacheDir := config.CacheDir
	if cacheDir == "" {
		var err error
		cacheDir, err = defaultCacheDir()
		if err != nil {
			return err
		}
	}

	describeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	info, err := platform.Describe(describeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("describe host platform: %w", err)
	}
	log.Info().
		Str("os", info.OS).
		Str("arch", info.Arch).
		Str("platform", info.Platform).
		Str("platform_version", info.Version).
		Msg("starting maple-sidecar")

	resolver, err := release.NewResolver(release.Config{
		CacheDir: cacheDir,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	manager, err := binary.NewManager(binary.Config{
		CacheDir:    cacheDir,
		Resolver:    resolver,
		KeyringPath: config.KeyringPath,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	install, err := manager.Ensure(ctx, config.ProxyVersion)
	if err != nil {
		return fmt.Errorf("install maple-proxy: %w", err)
	}

	proxy, err := supervisor.New(supervisor.Config{
		BinaryPath: install.Path,
		Version:    install.Version,
		Port:       config.Port,
		APIKey:     config.APIKey,
		BackendURL: config.BackendURL,
		Debug:      config.Debug,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	if err := proxy.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		proxy.Stop()
		return nil
	case <-proxy.Done():
		proxy.Stop()
		return proxy.Err()
	}
}
