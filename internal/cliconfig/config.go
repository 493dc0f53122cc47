package cliconfig

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/bft-labs/keel/internal/domain"
)

// Defaults for the image layout and the service contract.
const (
	DefaultAppDir      = "/app"
	DefaultUser        = "app"
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultServer      = "uvicorn"
	DefaultEntryPoint  = "src.main:app"
	DefaultHealthPath  = "/health"
	DefaultManifest    = "requirements.txt"
	DefaultInstallCmd  = "pip install --no-cache-dir -r requirements.txt"
	DefaultPolicy      = "status"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultConfigFile  = "/etc/keel/config.toml"
	stateDirName       = ".keel"
	dataDirName        = "data"
	sourceDirName      = "src"
	cacheDirName       = "cache"
	maxPort            = 65535
	defaultRetries     = 3
	defaultInterval    = 30 * time.Second
	defaultTimeout     = 10 * time.Second
	defaultStartPeriod = 5 * time.Second
	defaultShutdown    = 30 * time.Second
)

// Config holds CLI configuration for keel.
type Config struct {
	AppDir    string
	SourceDir string
	DataDir   string
	StateDir  string
	CacheDir  string

	User string

	Host       string
	Port       int
	Server     string
	EntryPoint string
	ExtraArgs  []string

	HealthPath        string
	HealthPolicy      string
	HealthInterval    time.Duration
	HealthTimeout     time.Duration
	HealthStartPeriod time.Duration
	HealthRetries     int

	DatabaseFile string

	Manifests      []string
	InstallCommand string

	MetricsAddr     string
	ShutdownTimeout time.Duration
	WatchConfig     bool

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AppDir:            DefaultAppDir,
		User:              DefaultUser,
		Host:              DefaultHost,
		Port:              DefaultPort,
		Server:            DefaultServer,
		EntryPoint:        DefaultEntryPoint,
		HealthPath:        DefaultHealthPath,
		HealthPolicy:      DefaultPolicy,
		HealthInterval:    defaultInterval,
		HealthTimeout:     defaultTimeout,
		HealthStartPeriod: defaultStartPeriod,
		HealthRetries:     defaultRetries,
		Manifests:         []string{DefaultManifest},
		InstallCommand:    DefaultInstallCmd,
		ShutdownTimeout:   defaultShutdown,
		WatchConfig:       true,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		// SourceDir, DataDir, StateDir and CacheDir are derived from AppDir during Validate
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.AppDir == "" {
		return invalid("app-dir is required")
	}
	if c.SourceDir == "" {
		c.SourceDir = filepath.Join(c.AppDir, sourceDirName)
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.AppDir, dataDirName)
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.AppDir, stateDirName)
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.StateDir, cacheDirName)
	}

	if c.User == "" || c.User == "root" {
		return invalid("user must name an unprivileged account, got %q", c.User)
	}

	if c.Port < 1 || c.Port > maxPort {
		return invalid("port %d out of range", c.Port)
	}
	if c.Server == "" {
		return invalid("server is required")
	}
	if err := ValidateEntryPoint(c.EntryPoint); err != nil {
		return err
	}

	if !strings.HasPrefix(c.HealthPath, "/") {
		return invalid("health path must start with /, got %q", c.HealthPath)
	}
	switch c.HealthPolicy {
	case "status", "body":
	default:
		return invalid("unknown health policy %q", c.HealthPolicy)
	}
	if c.HealthInterval <= 0 {
		return invalid("health interval must be positive")
	}
	if c.HealthTimeout <= 0 {
		return invalid("health timeout must be positive")
	}
	if c.HealthStartPeriod < 0 {
		return invalid("health start period must not be negative")
	}
	if c.HealthRetries < 1 {
		return invalid("health retries must be at least 1")
	}

	if c.DatabaseFile != "" && (filepath.IsAbs(c.DatabaseFile) || strings.HasPrefix(filepath.Clean(c.DatabaseFile), "..")) {
		return invalid("database file must be relative to the data dir, got %q", c.DatabaseFile)
	}

	if len(c.Manifests) == 0 {
		c.Manifests = []string{DefaultManifest}
	}
	if len(strings.Fields(c.InstallCommand)) == 0 {
		c.InstallCommand = DefaultInstallCmd
	}
	if _, err := c.InstallArgs(); err != nil {
		return invalid("install command: %v", err)
	}

	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown timeout must be positive")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid("unknown log format %q", c.LogFormat)
	}

	return nil
}

// ValidateEntryPoint checks that ep has the form module:attribute.
func ValidateEntryPoint(ep string) error {
	module, attr, ok := strings.Cut(ep, ":")
	if !ok || module == "" || attr == "" || strings.Contains(attr, ":") {
		return invalid("entry point must be module:attribute, got %q", ep)
	}
	return nil
}

// Addr returns the service bind address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Command returns the service command line.
func (c *Config) Command() []string {
	cmd := []string{c.Server, c.EntryPoint, "--host", c.Host, "--port", strconv.Itoa(c.Port)}
	return append(cmd, c.ExtraArgs...)
}

// ServiceEnv returns the variables added to the service environment.
func (c *Config) ServiceEnv() []string {
	return []string{
		"HOST=" + c.Host,
		"PORT=" + strconv.Itoa(c.Port),
		"DATA_DIR=" + c.DataDir,
	}
}

// InstallArgs splits the install command into program and arguments
// using shell quoting rules. No shell is involved when it runs.
func (c *Config) InstallArgs() ([]string, error) {
	args, err := shellquote.Split(c.InstallCommand)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list value if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// setListFromString splits a comma-separated list.
// Used for environment variables that come as strings.
func (s *configSetter) setListFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
