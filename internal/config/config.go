package config

import "time"

// Config is the root configuration for phasechime.
type Config struct {
	Watch    WatchConfig    `yaml:"watch"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sound    SoundConfig    `yaml:"sound"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type WatchConfig struct {
	Root          string        `yaml:"root"`
	Marker        string        `yaml:"marker"`
	Suffixes      []string      `yaml:"suffixes"`
	RequireGUID   bool          `yaml:"require_guid"`
	Dispatcher    []string      `yaml:"dispatcher"`
	InProcess     bool          `yaml:"in_process"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	EvictOnStop   bool          `yaml:"evict_on_stop"`
}

type DispatchConfig struct {
	StateFile         string        `yaml:"state_file"`
	SuppressionWindow time.Duration `yaml:"suppression_window"`
	Retention         time.Duration `yaml:"retention"`
}

type SoundConfig struct {
	Enabled bool              `yaml:"enabled"`
	Player  string            `yaml:"player"`
	Assets  map[string]string `yaml:"assets"`
}

type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Token   string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Watch: WatchConfig{
			Root:          "~/.gemini/antigravity/brain",
			Marker:        "brain",
			Suffixes:      []string{".metadata.json", ".metadata"},
			SweepInterval: 10 * time.Minute,
		},
		Dispatch: DispatchConfig{
			StateFile:         "~/.config/phasechime/state.json",
			SuppressionWindow: 3 * time.Second,
			Retention:         24 * time.Hour,
		},
		Sound: SoundConfig{
			Enabled: true,
			Assets:  map[string]string{},
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "~/.config/phasechime/phasechime.db",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8421,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
