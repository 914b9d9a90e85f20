package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/btouchard/phasechime/internal/hook"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/phasechime/phasechime.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "phasechime", "phasechime.yaml"))
	}

	paths = append(paths, "phasechime.yaml")

	if envPath := os.Getenv("PHASECHIME_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/phasechime/phasechime.yaml < ~/.config/phasechime/phasechime.yaml < ./phasechime.yaml < $PHASECHIME_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables have higher priority than YAML config values.
func applyEnvOverrides(cfg *Config) {
	if root := os.Getenv("PHASECHIME_WATCH_ROOT"); root != "" {
		cfg.Watch.Root = root
	}
	if level := os.Getenv("PHASECHIME_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// SoundAssets returns the configured assets keyed by hook kind.
func (c *Config) SoundAssets() map[hook.Kind]string {
	out := make(map[hook.Kind]string, len(c.Sound.Assets))
	for k, v := range c.Sound.Assets {
		out[hook.Kind(k)] = v
	}
	return out
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Watch.Root) == "" {
		return fmt.Errorf("watch.root must not be empty")
	}

	if cfg.Watch.Marker == "" || strings.ContainsAny(cfg.Watch.Marker, `/\`) {
		return fmt.Errorf("watch.marker must be a single directory name, got %q", cfg.Watch.Marker)
	}

	if len(cfg.Watch.Suffixes) == 0 {
		return fmt.Errorf("watch.suffixes must list at least one file suffix")
	}

	if cfg.Watch.SessionTTL < 0 || cfg.Watch.SweepInterval < 0 {
		return fmt.Errorf("watch.session_ttl and watch.sweep_interval must not be negative")
	}

	if cfg.Dispatch.SuppressionWindow <= 0 {
		return fmt.Errorf("dispatch.suppression_window must be positive, got %s", cfg.Dispatch.SuppressionWindow)
	}

	if cfg.Dispatch.StateFile == "" {
		return fmt.Errorf("dispatch.state_file must not be empty")
	}

	for k := range cfg.Sound.Assets {
		if !hook.Kind(k).Valid() {
			return fmt.Errorf("sound.assets: unknown event %q (want SessionStart, UserPromptSubmit or Stop)", k)
		}
	}

	if cfg.Server.Enabled {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
		}
		if cfg.Server.Host == "0.0.0.0" {
			return fmt.Errorf("server.host must not be 0.0.0.0; the status server listens on localhost only")
		}
	}

	cfg.Watch.Root = ExpandHome(cfg.Watch.Root)
	cfg.Dispatch.StateFile = ExpandHome(cfg.Dispatch.StateFile)
	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	cfg.Log.File = ExpandHome(cfg.Log.File)
	for k, v := range cfg.Sound.Assets {
		cfg.Sound.Assets[k] = ExpandHome(v)
	}

	return nil
}
