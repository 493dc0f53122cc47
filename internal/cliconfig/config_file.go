package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	AppDir         string     `toml:"app_dir" yaml:"app_dir"`
	SourceDir      string     `toml:"source_dir" yaml:"source_dir"`
	DataDir        string     `toml:"data_dir" yaml:"data_dir"`
	StateDir       string     `toml:"state_dir" yaml:"state_dir"`
	CacheDir       string     `toml:"cache_dir" yaml:"cache_dir"`
	User           string     `toml:"user" yaml:"user"`
	Host           string     `toml:"host" yaml:"host"`
	Port           int        `toml:"port" yaml:"port"`
	Server         string     `toml:"server" yaml:"server"`
	EntryPoint     string     `toml:"entry_point" yaml:"entry_point"`
	ExtraArgs      []string   `toml:"extra_args" yaml:"extra_args"`
	DatabaseFile   string     `toml:"database_file" yaml:"database_file"`
	Manifests      []string   `toml:"manifests" yaml:"manifests"`
	InstallCommand string     `toml:"install_command" yaml:"install_command"`
	MetricsAddr    string     `toml:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTime   string     `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	WatchConfig    *bool      `toml:"watch_config" yaml:"watch_config"`
	LogLevel       string     `toml:"log_level" yaml:"log_level"`
	LogFormat      string     `toml:"log_format" yaml:"log_format"`
	Health         FileHealth `toml:"health" yaml:"health"`
}

// FileHealth is the [health] table.
type FileHealth struct {
	Path        string `toml:"path" yaml:"path"`
	Policy      string `toml:"policy" yaml:"policy"`
	Interval    string `toml:"interval" yaml:"interval"`
	Timeout     string `toml:"timeout" yaml:"timeout"`
	StartPeriod string `toml:"start_period" yaml:"start_period"`
	Retries     int    `toml:"retries" yaml:"retries"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return DefaultConfigFile
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("app-dir", fc.AppDir, &cfg.AppDir)
	s.setString("source-dir", fc.SourceDir, &cfg.SourceDir)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("cache-dir", fc.CacheDir, &cfg.CacheDir)
	s.setString("user", fc.User, &cfg.User)
	s.setString("host", fc.Host, &cfg.Host)
	s.setString("server", fc.Server, &cfg.Server)
	s.setString("entry-point", fc.EntryPoint, &cfg.EntryPoint)
	s.setString("database-file", fc.DatabaseFile, &cfg.DatabaseFile)
	s.setString("install-command", fc.InstallCommand, &cfg.InstallCommand)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("health-path", fc.Health.Path, &cfg.HealthPath)
	s.setString("health-policy", fc.Health.Policy, &cfg.HealthPolicy)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("health-retries", fc.Health.Retries, &cfg.HealthRetries)

	s.setStrings("extra-arg", fc.ExtraArgs, &cfg.ExtraArgs)
	s.setStrings("manifest", fc.Manifests, &cfg.Manifests)

	if err := s.setDuration("health-interval", fc.Health.Interval, &cfg.HealthInterval); err != nil {
		return err
	}
	if err := s.setDuration("health-timeout", fc.Health.Timeout, &cfg.HealthTimeout); err != nil {
		return err
	}
	if err := s.setDuration("health-start-period", fc.Health.StartPeriod, &cfg.HealthStartPeriod); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTime, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Resolve layers the config file at path (if it exists), then KEEL_*
// environment variables, over base, skipping every flag in changed, and
// validates the result. It is used both at startup and when the config
// file changes.
func Resolve(base Config, path string, changed map[string]bool) (Config, error) {
	cfg := base
	cfg.ExtraArgs = append([]string(nil), base.ExtraArgs...)
	cfg.Manifests = append([]string(nil), base.Manifests...)

	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
