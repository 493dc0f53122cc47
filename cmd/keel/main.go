package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/cliconfig"
)

const helpDescription = `
Run one web service inside a container the way the image contract expects.

Lifecycle:
  keel install     install declared dependencies (build time, cached on manifests)
  keel provision   create the data area and hand ownership to the service identity
  keel run         provision, drop privileges, launch the service, probe /health
  keel probe       one liveness attempt; exit 0 when healthy (HEALTHCHECK)
  keel status      print the supervisor's last recorded status

Configure via /etc/keel/config.toml (or .yaml), KEEL_* environment variables, or flags.
`

var exampleUsage = strings.TrimSpace(`
  keel install --app-dir /app
  keel run --entry-point src.main:app --port 8080
  keel probe --health-timeout 10s
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the flag-bound configuration shared by every subcommand.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	privs   privileges
}

func newCLI() *cli {
	return &cli{cfg: cliconfig.DefaultConfig(), privs: systemPrivileges()}
}

// resolve layers file and environment over the flag values and returns the
// effective config together with the set of explicitly changed flags.
func (c *cli) resolve(cmd *cobra.Command) (cliconfig.Config, map[string]bool, error) {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	path := c.configPath()
	if changed["config"] && !cliconfig.FileExists(path) {
		return c.cfg, changed, fmt.Errorf("config file %s not found", path)
	}

	cfg, err := cliconfig.Resolve(c.cfg, path, changed)
	return cfg, changed, err
}

func (c *cli) configPath() string {
	if c.cfgPath != "" {
		return c.cfgPath
	}
	return cliconfig.DefaultConfigPath()
}

func newLogger(cfg cliconfig.Config) *logAdapter.ZerologAdapter {
	return logAdapter.NewZerologAdapterWithLogger(logAdapter.New(os.Stderr, cfg.LogFormat, cfg.LogLevel))
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "keel",
		Short:         "Container entry point, privilege separation and health probe for one web service",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindFlags(root.PersistentFlags(), c)

	root.AddCommand(
		newInstallCmd(c),
		newProvisionCmd(c),
		newRunCmd(c),
		newProbeCmd(c),
		newStatusCmd(c),
	)
	return root
}

func main() {
	c := newCLI()
	if err := newRootCmd(c).Execute(); err != nil {
		log := logAdapter.New(os.Stderr, c.cfg.LogFormat, c.cfg.LogLevel)
		log.Error().Err(err).Msg("keel")
		os.Exit(1)
	}
}

func bindFlags(fs *pflag.FlagSet, c *cli) {
	cfg := &c.cfg

	fs.StringVar(&c.cfgPath, "config", "", fmt.Sprintf("path to config file (default: %s)", cliconfig.DefaultConfigFile))

	fs.StringVar(&cfg.AppDir, "app-dir", cfg.AppDir, "application directory (working directory of the service)")
	fs.StringVar(&cfg.SourceDir, "source-dir", cfg.SourceDir, "application source directory (defaults to <app-dir>/src)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "persistent data directory (defaults to <app-dir>/data)")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json (defaults to <app-dir>/.keel)")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for the install stamp (defaults to <state-dir>/cache)")
	fs.StringVar(&cfg.User, "user", cfg.User, "unprivileged account the service runs as")

	fs.StringVar(&cfg.Host, "host", cfg.Host, "service bind host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "service port")
	fs.StringVar(&cfg.Server, "server", cfg.Server, "server program that hosts the entry point")
	fs.StringVar(&cfg.EntryPoint, "entry-point", cfg.EntryPoint, "application callable as module:attribute")
	fs.StringArrayVar(&cfg.ExtraArgs, "extra-arg", cfg.ExtraArgs, "extra argument for the server (repeatable)")

	fs.StringVar(&cfg.HealthPath, "health-path", cfg.HealthPath, "liveness endpoint path")
	fs.StringVar(&cfg.HealthPolicy, "health-policy", cfg.HealthPolicy, "liveness policy: status (any 2xx) or body (JSON status == healthy)")
	fs.DurationVar(&cfg.HealthInterval, "health-interval", cfg.HealthInterval, "time between probe attempts")
	fs.DurationVar(&cfg.HealthTimeout, "health-timeout", cfg.HealthTimeout, "timeout of one probe attempt")
	fs.DurationVar(&cfg.HealthStartPeriod, "health-start-period", cfg.HealthStartPeriod, "grace period after launch during which probe outcomes are not counted")
	fs.IntVar(&cfg.HealthRetries, "health-retries", cfg.HealthRetries, "consecutive failures before the service is unhealthy")

	fs.StringVar(&cfg.DatabaseFile, "database-file", cfg.DatabaseFile, "embedded database file under the data dir to check before launch (optional)")

	fs.StringSliceVar(&cfg.Manifests, "manifest", cfg.Manifests, "dependency manifest pattern relative to app-dir (repeatable)")
	fs.StringVar(&cfg.InstallCommand, "install-command", cfg.InstallCommand, "dependency install command")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus endpoint (disabled when empty)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "time allowed for graceful service shutdown")
	fs.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload health settings when the config file changes")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")
}
