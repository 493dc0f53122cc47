package identity

import (
	"context"
	"errors"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logadapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/domain"
)

// fakeRunner records commands and optionally "creates" the account.
type fakeRunner struct {
	calls  [][]string
	err    error
	create func()
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return f.err
	}
	if f.create != nil {
		f.create()
	}
	return nil
}

// fakeAccounts is an in-memory passwd database.
type fakeAccounts map[string]*user.User

func (a fakeAccounts) lookup(name string) (*user.User, error) {
	if u, ok := a[name]; ok {
		return u, nil
	}
	return nil, user.UnknownUserError(name)
}

func newTestManager(accounts fakeAccounts, runner *fakeRunner, euid int) *Manager {
	m := NewManager(runner, logadapter.NewNoopLogger())
	m.lookup = accounts.lookup
	m.geteuid = func() int { return euid }
	return m
}

func TestManager_LookupExisting(t *testing.T) {
	accounts := fakeAccounts{"app": {Username: "app", Uid: "999", Gid: "998", HomeDir: "/home/app"}}
	m := newTestManager(accounts, &fakeRunner{}, 1000)

	id, err := m.Lookup("app")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Name: "app", UID: 999, GID: 998, Home: "/home/app"}, id)
}

func TestManager_LookupRejectsPrivileged(t *testing.T) {
	accounts := fakeAccounts{
		"root":  {Username: "root", Uid: "0", Gid: "0"},
		"wheel": {Username: "wheel", Uid: "1000", Gid: "0"},
	}
	m := newTestManager(accounts, &fakeRunner{}, 1000)

	for _, name := range []string{"root", "wheel"} {
		_, err := m.Lookup(name)
		assert.ErrorIs(t, err, domain.ErrPrivilegedIdentity, name)
	}
}

func TestManager_LookupNonNumeric(t *testing.T) {
	accounts := fakeAccounts{"odd": {Username: "odd", Uid: "S-1-5", Gid: "1"}}
	m := newTestManager(accounts, &fakeRunner{}, 1000)

	_, err := m.Lookup("odd")
	assert.ErrorIs(t, err, domain.ErrIdentityMissing)
}

func TestManager_EnsureCreatesAsRoot(t *testing.T) {
	accounts := fakeAccounts{}
	runner := &fakeRunner{create: func() {
		accounts["app"] = &user.User{Username: "app", Uid: "999", Gid: "999"}
	}}
	m := newTestManager(accounts, runner, 0)

	id, err := m.Ensure(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, 999, id.UID)

	require.Len(t, runner.calls, 1)
	assert.Equal(t,
		[]string{"useradd", "--system", "--no-create-home", "--shell", NoLoginShell, "app"},
		runner.calls[0])
}

func TestManager_EnsureExistingDoesNotCreate(t *testing.T) {
	accounts := fakeAccounts{"app": {Username: "app", Uid: "999", Gid: "999"}}
	runner := &fakeRunner{}
	m := newTestManager(accounts, runner, 0)

	_, err := m.Ensure(context.Background(), "app")
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
}

func TestManager_EnsureMissingWithoutRoot(t *testing.T) {
	runner := &fakeRunner{}
	m := newTestManager(fakeAccounts{}, runner, 1000)

	_, err := m.Ensure(context.Background(), "app")
	assert.ErrorIs(t, err, domain.ErrIdentityMissing)
	assert.Empty(t, runner.calls)
}

func TestManager_EnsureCreateFails(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 9")}
	m := newTestManager(fakeAccounts{}, runner, 0)

	_, err := m.Ensure(context.Background(), "app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 9")
}

func TestManager_EnsureRefusesRootName(t *testing.T) {
	m := newTestManager(fakeAccounts{}, &fakeRunner{}, 0)

	for _, name := range []string{"", "root"} {
		_, err := m.Ensure(context.Background(), name)
		assert.ErrorIs(t, err, domain.ErrPrivilegedIdentity)
	}
}
