package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logAdapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/adapters/process"
	"github.com/bft-labs/keel/internal/app"
	"github.com/bft-labs/keel/internal/cliconfig"
	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/identity"
	"github.com/bft-labs/keel/internal/ports"
	"github.com/bft-labs/keel/internal/provision"
)

func healthSettings(cfg cliconfig.Config) app.HealthSettings {
	return app.HealthSettings{
		Interval:    cfg.HealthInterval,
		Timeout:     cfg.HealthTimeout,
		StartPeriod: cfg.HealthStartPeriod,
		Retries:     cfg.HealthRetries,
	}
}

// privileges switches a root process to the service identity.
type privileges struct {
	geteuid func() int
	lookup  func(name string) (domain.Identity, error)
	drop    func(id domain.Identity) error
}

func systemPrivileges() privileges {
	return privileges{
		geteuid: os.Geteuid,
		lookup: func(name string) (domain.Identity, error) {
			return identity.NewManager(nil, logAdapter.NewNoopLogger()).Lookup(name)
		},
		drop: identity.Drop,
	}
}

// root reports whether the process runs as uid 0.
func (p privileges) root() bool {
	return p.geteuid() == 0
}

// dropTo gives up root for the named account. It does nothing when the
// process is not root and returns whether a drop happened.
func (p privileges) dropTo(name string) (bool, error) {
	if !p.root() {
		return false, nil
	}
	id, err := p.lookup(name)
	if err != nil {
		return false, err
	}
	if err := p.drop(id); err != nil {
		return false, fmt.Errorf("drop privileges to %s: %w", id, err)
	}
	return true, nil
}

// resolveIdentity creates the service identity when running as root and
// only looks it up otherwise.
func resolveIdentity(ctx context.Context, cfg cliconfig.Config, logger ports.Logger) (domain.Identity, error) {
	ids := identity.NewManager(process.NewRunner(logger), logger)
	if os.Geteuid() == 0 {
		return ids.Ensure(ctx, cfg.User)
	}
	return ids.Lookup(cfg.User)
}

// ownedTrees lists the trees re-owned at provisioning, skipping any already
// covered by the application directory.
func ownedTrees(cfg cliconfig.Config) []string {
	trees := []string{cfg.AppDir}
	for _, dir := range []string{cfg.SourceDir, cfg.StateDir} {
		if !within(dir, cfg.AppDir) {
			trees = append(trees, dir)
		}
	}
	return trees
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func newProvisioner(cfg cliconfig.Config, id domain.Identity, logger ports.Logger) *provision.Provisioner {
	return provision.New(provision.Config{
		DataDir:      cfg.DataDir,
		OwnedTrees:   ownedTrees(cfg),
		Identity:     id,
		DatabaseFile: cfg.DatabaseFile,
	}, logger)
}
