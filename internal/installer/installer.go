// Package installer resolves the declared dependency manifests and installs
// them before any application source is considered.
//
// The cache key is derived from the manifests only, so rebuilding after a
// source-only change never re-runs the install.
package installer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// DefaultManifest is the manifest pattern used when none is configured.
const DefaultManifest = "requirements.txt"

// DefaultCommand installs the default manifest without keeping a package cache.
var DefaultCommand = []string{"pip", "install", "--no-cache-dir", "-r", "requirements.txt"}

// Config describes one install.
type Config struct {
	// Root is the directory manifests are resolved against and the
	// command runs in.
	Root string

	// Manifests are doublestar patterns relative to Root.
	Manifests []string

	// CacheDir holds the install stamp.
	CacheDir string

	// Command is the install command.
	Command []string

	// Force installs even when the stamp matches.
	Force bool
}

// Result describes an install.
type Result struct {
	Digest    string
	Manifests []string
	Skipped   bool
}

// Installer runs the install command when the manifests changed.
type Installer struct {
	runner ports.CommandRunner
	logger ports.Logger
	now    func() time.Time
}

// New creates an installer.
func New(runner ports.CommandRunner, logger ports.Logger) *Installer {
	return &Installer{runner: runner, logger: logger, now: time.Now}
}

// Install resolves cfg.Manifests, and runs cfg.Command once unless the
// stamp in cfg.CacheDir already records the same digest. Failures are
// returned as ErrManifestMissing or ErrInstallFailed and never retried.
func (i *Installer) Install(ctx context.Context, cfg Config) (Result, error) {
	if len(cfg.Manifests) == 0 {
		cfg.Manifests = []string{DefaultManifest}
	}
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.CacheDir == "" {
		return Result{}, fmt.Errorf("%w: cache directory not configured", domain.ErrInvalidConfig)
	}

	fsys := os.DirFS(cfg.Root)
	manifests, err := MatchManifests(fsys, cfg.Manifests)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrManifestMissing, err)
	}
	if len(manifests) == 0 {
		return Result{}, fmt.Errorf("%w: no file in %s matches %v", domain.ErrManifestMissing, cfg.Root, cfg.Manifests)
	}

	digest, err := Digest(fsys, manifests)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrManifestMissing, err)
	}
	res := Result{Digest: digest, Manifests: manifests}

	stamp, ok, err := loadStamp(cfg.CacheDir)
	if err != nil {
		return res, err
	}
	if ok && !cfg.Force && stamp.Matches(digest, cfg.Command) {
		i.logger.Info("dependencies up to date",
			ports.String("digest", digest),
			ports.Time("installed_at", stamp.InstalledAt),
		)
		res.Skipped = true
		return res, nil
	}

	i.logger.Info("installing dependencies",
		ports.Any("manifests", manifests),
		ports.Any("command", cfg.Command),
	)
	if err := i.runner.Run(ctx, cfg.Root, cfg.Command[0], cfg.Command[1:]...); err != nil {
		return res, fmt.Errorf("%w: %w", domain.ErrInstallFailed, err)
	}

	if err := saveStamp(cfg.CacheDir, Stamp{
		Digest:      digest,
		Command:     cfg.Command,
		Manifests:   manifests,
		InstalledAt: i.now().UTC(),
	}); err != nil {
		return res, fmt.Errorf("save install stamp: %w", err)
	}

	i.logger.Info("dependencies installed", ports.String("digest", digest))
	return res, nil
}
