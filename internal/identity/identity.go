package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/bft-labs/keel/internal/domain"
	"github.com/bft-labs/keel/internal/ports"
)

// NoLoginShell is the shell assigned to created identities.
const NoLoginShell = "/usr/sbin/nologin"

// Manager looks up and creates the service identity.
type Manager struct {
	runner ports.CommandRunner
	logger ports.Logger

	lookup  func(name string) (*user.User, error)
	geteuid func() int
}

// NewManager creates a manager that creates missing identities with runner.
func NewManager(runner ports.CommandRunner, logger ports.Logger) *Manager {
	return &Manager{
		runner:  runner,
		logger:  logger,
		lookup:  user.Lookup,
		geteuid: os.Geteuid,
	}
}

// Lookup resolves name to an identity. It fails with ErrIdentityMissing if
// the account does not exist and ErrPrivilegedIdentity if it is uid or gid 0.
func (m *Manager) Lookup(name string) (domain.Identity, error) {
	u, err := m.lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return domain.Identity{}, fmt.Errorf("%w: %s", domain.ErrIdentityMissing, name)
		}
		return domain.Identity{}, fmt.Errorf("lookup %s: %w", name, err)
	}
	return FromUser(u)
}

// Ensure returns the identity named name, creating it as a system account
// when it does not exist and the caller is root.
func (m *Manager) Ensure(ctx context.Context, name string) (domain.Identity, error) {
	if name == "" || name == "root" {
		return domain.Identity{}, fmt.Errorf("%w: %q", domain.ErrPrivilegedIdentity, name)
	}

	id, err := m.Lookup(name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrIdentityMissing) {
		return domain.Identity{}, err
	}
	if m.geteuid() != 0 {
		return domain.Identity{}, fmt.Errorf("%w (not root, cannot create it)", err)
	}

	m.logger.Info("creating service identity", ports.String("name", name))
	if err := m.runner.Run(ctx, "", "useradd",
		"--system",
		"--no-create-home",
		"--shell", NoLoginShell,
		name,
	); err != nil {
		return domain.Identity{}, fmt.Errorf("create identity %s: %w", name, err)
	}

	return m.Lookup(name)
}

// FromUser converts an os/user record and validates it.
func FromUser(u *user.User) (domain.Identity, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %s has non-numeric uid %q", domain.ErrIdentityMissing, u.Username, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %s has non-numeric gid %q", domain.ErrIdentityMissing, u.Username, u.Gid)
	}

	id := domain.Identity{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}
	if err := id.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}
