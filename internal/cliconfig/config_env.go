package cliconfig

import "os"

// EnvPrefix prefixes every environment variable keel reads.
const EnvPrefix = "KEEL_"

// ApplyEnvConfig applies KEEL_* environment variables to the Config struct.
// These override file config but are overridden by flags (checked via changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("app-dir", env("APP_DIR"), &cfg.AppDir)
	s.setString("source-dir", env("SOURCE_DIR"), &cfg.SourceDir)
	s.setString("data-dir", env("DATA_DIR"), &cfg.DataDir)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("cache-dir", env("CACHE_DIR"), &cfg.CacheDir)
	s.setString("user", env("USER"), &cfg.User)
	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("server", env("SERVER"), &cfg.Server)
	s.setString("entry-point", env("ENTRY_POINT"), &cfg.EntryPoint)
	s.setString("database-file", env("DATABASE_FILE"), &cfg.DatabaseFile)
	s.setString("install-command", env("INSTALL_COMMAND"), &cfg.InstallCommand)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)
	s.setString("health-path", env("HEALTH_PATH"), &cfg.HealthPath)
	s.setString("health-policy", env("HEALTH_POLICY"), &cfg.HealthPolicy)

	s.setListFromString("manifest", env("MANIFESTS"), &cfg.Manifests)
	s.setBoolFromString("watch-config", env("WATCH_CONFIG"), &cfg.WatchConfig)

	if err := s.setIntFromString("port", env("PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("health-retries", env("HEALTH_RETRIES"), &cfg.HealthRetries); err != nil {
		return err
	}

	if err := s.setDuration("health-interval", env("HEALTH_INTERVAL"), &cfg.HealthInterval); err != nil {
		return err
	}
	if err := s.setDuration("health-timeout", env("HEALTH_TIMEOUT"), &cfg.HealthTimeout); err != nil {
		return err
	}
	if err := s.setDuration("health-start-period", env("HEALTH_START_PERIOD"), &cfg.HealthStartPeriod); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", env("SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	return nil
}
