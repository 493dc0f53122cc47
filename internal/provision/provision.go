// Package provision prepares the persistent data area before the service
// starts: the directory exists with restrictive permissions, the
// application and data trees belong to the service identity, and an
// existing embedded database is readable.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/keel/internal/adapters/sqlite"
	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/identity"
	"github.com/bft-labs/keel/internal/ports"
)

// DataDirMode is the permission of a created data directory.
const DataDirMode fs.FileMode = 0o750

// preflightTimeout bounds the embedded database check.
const preflightTimeout = 5 * time.Second

// Config describes the data area.
type Config struct {
	// DataDir is the persistent data directory, e.g. /app/data.
	DataDir string

	// OwnedTrees are re-owned to Identity along with DataDir. Missing
	// trees are skipped.
	OwnedTrees []string

	// Identity owns everything provisioned.
	Identity domain.Identity

	// DatabaseFile, relative to DataDir, is checked when it exists.
	DatabaseFile string
}

// Report summarizes a provisioning pass.
type Report struct {
	// Created is true if the data directory did not exist.
	Created bool

	// ModeFixed is true if group/other write bits were stripped.
	ModeFixed bool

	// Changed is the number of entries whose owner was changed.
	Changed int

	// Database is the preflight result, if a database file is configured.
	Database *sqlite.Result
}

// Provisioner prepares the data area. Running it again on a provisioned
// area changes nothing.
type Provisioner struct {
	cfg    Config
	logger ports.Logger

	chown     func(root string, id domain.Identity) (int, error)
	preflight func(ctx context.Context, path string, timeout time.Duration) (sqlite.Result, error)
}

// New creates a provisioner.
func New(cfg Config, logger ports.Logger) *Provisioner {
	return &Provisioner{
		cfg:       cfg,
		logger:    logger,
		chown:     identity.ChownTree,
		preflight: sqlite.Preflight,
	}
}

// Provision runs one pass. Every failure wraps ErrProvisioning.
func (p *Provisioner) Provision(ctx context.Context) (Report, error) {
	var report Report

	if err := p.cfg.Identity.Validate(); err != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}
	if p.cfg.DataDir == "" {
		return report, fmt.Errorf("%w: data directory not configured", domain.ErrProvisioning)
	}

	created, fixed, err := ensureDir(p.cfg.DataDir)
	if err != nil {
		return report, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
	}
	report.Created = created
	report.ModeFixed = fixed

	for _, root := range append(append([]string{}, p.cfg.OwnedTrees...), p.cfg.DataDir) {
		if _, err := os.Lstat(root); errors.Is(err, os.ErrNotExist) {
			p.logger.Debug("skipping missing tree", ports.String("path", root))
			continue
		}
		n, err := p.chown(root, p.cfg.Identity)
		report.Changed += n
		if err != nil {
			return report, fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
		}
	}

	if p.cfg.DatabaseFile != "" {
		path := filepath.Join(p.cfg.DataDir, p.cfg.DatabaseFile)
		res, err := p.preflight(ctx, path, preflightTimeout)
		if err != nil {
			return report, fmt.Errorf("%w: database %s: %w", domain.ErrProvisioning, path, err)
		}
		report.Database = &res
	}

	p.logger.Info("data area provisioned",
		ports.String("data_dir", p.cfg.DataDir),
		ports.String("owner", p.cfg.Identity.String()),
		ports.Bool("created", report.Created),
		ports.Bool("mode_fixed", report.ModeFixed),
		ports.Int("ownership_changes", report.Changed),
	)
	return report, nil
}

// ensureDir creates dir with DataDirMode or strips group/other write bits
// from an existing one.
func ensureDir(dir string) (created, fixed bool, err error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, DataDirMode); err != nil {
			return false, false, fmt.Errorf("create %s: %w", dir, err)
		}
		// MkdirAll is subject to the umask.
		if err := os.Chmod(dir, DataDirMode); err != nil {
			return true, false, fmt.Errorf("chmod %s: %w", dir, err)
		}
		return true, false, nil
	case err != nil:
		return false, false, fmt.Errorf("stat %s: %w", dir, err)
	case !info.IsDir():
		return false, false, fmt.Errorf("%s exists and is not a directory", dir)
	}

	mode := info.Mode().Perm()
	if mode&0o022 == 0 {
		return false, false, nil
	}
	if err := os.Chmod(dir, mode&^0o022); err != nil {
		return false, false, fmt.Errorf("chmod %s: %w", dir, err)
	}
	return false, true, nil
}
