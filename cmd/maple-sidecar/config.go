package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/OpenSecretCloud/maple-sidecar/internal/sidecar"
)

// fileConfig maps config.toml keys onto sidecar settings.
type fileConfig struct {
	APIKey       string `toml:"api_key"`
	BackendURL   string `toml:"backend_url"`
	Port         int    `toml:"port"`
	ProxyVersion string `toml:"proxy_version"`
	CacheDir     string `toml:"cache_dir"`
	Keyring      string `toml:"keyring"`
	Debug        bool   `toml:"debug"`
}

// applyFile overlays the TOML file onto the config. Only keys actually
// present in the file are applied, so a later env or flag overlay can still
// distinguish unset from zero.
func applyFile(config *sidecar.Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	if meta.IsDefined("api_key") {
		config.APIKey = strings.TrimSpace(raw.APIKey)
	}
	if meta.IsDefined("backend_url") {
		config.BackendURL = strings.TrimSpace(raw.BackendURL)
	}
	if meta.IsDefined("port") {
		config.Port = raw.Port
	}
	if meta.IsDefined("proxy_version") {
		config.ProxyVersion = strings.TrimSpace(raw.ProxyVersion)
	}
	if meta.IsDefined("cache_dir") {
		config.CacheDir = strings.TrimSpace(raw.CacheDir)
	}
	if meta.IsDefined("keyring") {
		config.KeyringPath = strings.TrimSpace(raw.Keyring)
	}
	if meta.IsDefined("debug") {
		config.Debug = raw.Debug
	}
	return nil
}
