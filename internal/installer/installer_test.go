package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logadapter "github.com/bft-labs/keel/internal/adapters/log"
	"github.com/bft-labs/keel/internal/domain"
)

// countingRunner counts install runs.
type countingRunner struct {
	runs int
	dirs []string
	cmds [][]string
	err  error
}

func (r *countingRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	r.runs++
	r.dirs = append(r.dirs, dir)
	r.cmds = append(r.cmds, append([]string{name}, args...))
	return r.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newProject(t *testing.T) (root, cache string) {
	t.Helper()
	root = t.TempDir()
	cache = filepath.Join(t.TempDir(), "cache")
	writeFile(t, filepath.Join(root, "requirements.txt"), "fastapi==0.110.0\nuvicorn==0.29.0\n")
	writeFile(t, filepath.Join(root, "src", "main.py"), "app = None\n")
	return root, cache
}

func TestInstall_RunsOnceThenSkips(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())
	cfg := Config{Root: root, CacheDir: cache}

	res, err := inst.Install(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"requirements.txt"}, res.Manifests)
	require.Equal(t, 1, runner.runs)
	assert.Equal(t, DefaultCommand, runner.cmds[0])
	assert.Equal(t, root, runner.dirs[0])

	res, err = inst.Install(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, runner.runs)
}

func TestInstall_SourceChangeDoesNotReinstall(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())
	cfg := Config{Root: root, CacheDir: cache}

	first, err := inst.Install(context.Background(), cfg)
	require.NoError(t, err)

	sources := []string{
		filepath.Join(root, "src", "main.py"),
		filepath.Join(root, "src", "routes", "ingest.py"),
		filepath.Join(root, "README.md"),
	}
	for i, path := range sources {
		writeFile(t, path, "# edit\n")

		res, err := inst.Install(context.Background(), cfg)
		require.NoError(t, err)
		assert.True(t, res.Skipped, "edit %d re-triggered install", i)
		assert.Equal(t, first.Digest, res.Digest)
	}
	assert.Equal(t, 1, runner.runs)
}

func TestInstall_ManifestChangeReinstalls(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())
	cfg := Config{Root: root, CacheDir: cache}

	_, err := inst.Install(context.Background(), cfg)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "requirements.txt"), "fastapi==0.111.0\n")
	res, err := inst.Install(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, runner.runs)
}

func TestInstall_CommandChangeReinstalls(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())

	_, err := inst.Install(context.Background(), Config{Root: root, CacheDir: cache})
	require.NoError(t, err)

	res, err := inst.Install(context.Background(), Config{
		Root:     root,
		CacheDir: cache,
		Command:  []string{"uv", "pip", "install", "-r", "requirements.txt"},
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, runner.runs)
}

func TestInstall_Force(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())

	_, err := inst.Install(context.Background(), Config{Root: root, CacheDir: cache})
	require.NoError(t, err)
	_, err = inst.Install(context.Background(), Config{Root: root, CacheDir: cache, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, runner.runs)
}

func TestInstall_ManifestMissing(t *testing.T) {
	runner := &countingRunner{}
	inst := New(runner, logadapter.NewNoopLogger())

	_, err := inst.Install(context.Background(), Config{Root: t.TempDir(), CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrManifestMissing)
	assert.Zero(t, runner.runs)
}

func TestInstall_InvalidPattern(t *testing.T) {
	inst := New(&countingRunner{}, logadapter.NewNoopLogger())

	_, err := inst.Install(context.Background(), Config{
		Root:      t.TempDir(),
		CacheDir:  t.TempDir(),
		Manifests: []string{"requirements[.txt"},
	})
	assert.ErrorIs(t, err, domain.ErrManifestMissing)
}

func TestInstall_FailureIsNotStamped(t *testing.T) {
	root, cache := newProject(t)
	runner := &countingRunner{err: errors.New("exit status 1")}
	inst := New(runner, logadapter.NewNoopLogger())
	cfg := Config{Root: root, CacheDir: cache}

	_, err := inst.Install(context.Background(), cfg)
	require.ErrorIs(t, err, domain.ErrInstallFailed)
	assert.Equal(t, 1, runner.runs, "install must not be retried")

	_, statErr := os.Stat(filepath.Join(cache, StampFileName))
	assert.ErrorIs(t, statErr, os.ErrNotExist)

	runner.err = nil
	res, err := inst.Install(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}

func TestInstall_CorruptStampReinstalls(t *testing.T) {
	root, cache := newProject(t)
	writeFile(t, filepath.Join(cache, StampFileName), "{not json")
	runner := &countingRunner{}

	res, err := New(runner, logadapter.NewNoopLogger()).Install(context.Background(), Config{Root: root, CacheDir: cache})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, runner.runs)
}

func TestMatchManifests_GlobAndDedup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "requirements.txt"), "a\n")
	writeFile(t, filepath.Join(root, "requirements", "dev.txt"), "b\n")
	writeFile(t, filepath.Join(root, "requirements", "extra", "test.txt"), "c\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "requirements", "empty.txt"), 0o755))

	got, err := MatchManifests(os.DirFS(root), []string{"requirements.txt", "requirements/**/*.txt", "requirements.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"requirements.txt",
		"requirements/dev.txt",
		"requirements/extra/test.txt",
	}, got)
}

func TestDigest_DependsOnPathAndContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "xy")
	writeFile(t, filepath.Join(root, "b.txt"), "z")
	fsys := os.DirFS(root)

	base, err := Digest(fsys, []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	again, err := Digest(fsys, []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, base, again)
	assert.Len(t, base, 64)

	// Moving a byte across the file boundary changes the key.
	writeFile(t, filepath.Join(root, "a.txt"), "x")
	writeFile(t, filepath.Join(root, "b.txt"), "yz")
	moved, err := Digest(fsys, []string{"a.txt", "b.txt"})
	require.NoError(t, err)
	assert.NotEqual(t, base, moved)
}
