package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/OpenSecretCloud/maple-sidecar/internal/logging"
	"github.com/OpenSecretCloud/maple-sidecar/internal/sidecar"
)

// runSidecar resolves the effective configuration and blocks supervising
// maple-proxy until a signal arrives. Precedence: flags over environment
// over config file.
func runSidecar(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to TOML config file")
	port := fs.Int("port", 0, "loopback port for maple-proxy")
	proxyVersion := fs.String("proxy-version", "", "pin a maple-proxy release tag")
	backendURL := fs.String("backend-url", "", "override the proxy upstream")
	cacheDir := fs.String("cache-dir", "", "binary install directory")
	keyring := fs.String("keyring", "", "GPG keyring for release signature checks")
	debug := fs.Bool("debug", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	var config sidecar.Config
	if *configPath != "" {
		if err := applyFile(&config, *configPath); err != nil {
			return err
		}
	}
	if err := applyEnv(&config); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = *port
		case "proxy-version":
			config.ProxyVersion = *proxyVersion
		case "backend-url":
			config.BackendURL = *backendURL
		case "cache-dir":
			config.CacheDir = *cacheDir
		case "keyring":
			config.KeyringPath = *keyring
		case "debug":
			config.Debug = *debug
		}
	})

	config.Logger = logging.Init(config.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sidecar.Run(ctx, config)
}

// applyEnv overlays the MAPLE_* environment variables onto the config.
func applyEnv(config *sidecar.Config) error {
	if v := os.Getenv("MAPLE_API_KEY"); v != "" {
		config.APIKey = v
	}
	if v := os.Getenv("MAPLE_BACKEND_URL"); v != "" {
		config.BackendURL = v
	}
	if v := os.Getenv("MAPLE_PROXY_VERSION"); v != "" {
		config.ProxyVersion = v
	}
	if v := os.Getenv("MAPLE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAPLE_PORT %q: %w", v, err)
		}
		config.Port = port
	}
	if v := os.Getenv("MAPLE_DEBUG"); v == "true" || v == "1" {
		config.Debug = true
	}
	return nil
}
