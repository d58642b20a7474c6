package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/checkpoint"
	"go.trai.ch/forge/internal/core/domain"
)

type testLogger struct{}

func (testLogger) Info(string) {}
func (testLogger) Warn(string) {}
func (testLogger) Error(error) {}

func newManager(t *testing.T) *checkpoint.Manager {
	t.Helper()
	m, err := checkpoint.NewManager(filepath.Join(t.TempDir(), "checkpoints"), testLogger{})
	require.NoError(t, err)
	return m
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestManager_CreateThenVerify(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{
		"configure.log":  "checking for gcc... yes",
		"src/main.c":     "int main(void) { return 0; }",
		"src/sub/util.c": "static int x;",
	})

	meta, err := m.Create(context.Background(), "coreutils", buildDir,
		map[string]string{"CFLAGS": "-O2"},
		&domain.PackageVersion{Package: "coreutils", Version: "9.4.0", Status: domain.StatusActive},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckpointFormatVersion, meta.FormatVersion)
	assert.Equal(t, "coreutils", meta.Package)
	assert.NotEmpty(t, meta.Checksum)

	require.NoError(t, m.Verify(meta.ID))
}

func TestManager_VerifyFailsAfterCorruption(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{"Makefile": "all:\n\ttrue\n"})

	meta, err := m.Create(context.Background(), "make", buildDir, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Verify(meta.ID))

	// Flip one byte of the archived content.
	root := filepath.Join(m.Root(), "make", meta.ID, "state.tar.xz")
	data, err := os.ReadFile(root)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(root, data, 0o644))

	err = m.Verify(meta.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCheckpointIntegrity)
}

func TestManager_RestoreRoundTrip(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{
		"config.status": "generated",
		"obj/a.o":       "\x7fELF",
	})

	original, err := m.Create(context.Background(), "sed", buildDir, nil, nil)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "restored")
	restored, err := m.Restore(context.Background(), original.ID, target)
	require.NoError(t, err)
	assert.Equal(t, original.ID, restored.ID)

	data, err := os.ReadFile(filepath.Join(target, "config.status"))
	require.NoError(t, err)
	assert.Equal(t, "generated", string(data))

	// A fresh checkpoint of the restored tree has the original's checksum
	// when no build step ran in between.
	fresh, err := m.Create(context.Background(), "sed", target, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, original.Checksum, fresh.Checksum)
}

func TestManager_RestoreTakesSafetyCheckpoint(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{"good.txt": "known good"})

	meta, err := m.Create(context.Background(), "grep", buildDir, nil, nil)
	require.NoError(t, err)

	target := t.TempDir()
	writeTree(t, target, map[string]string{"broken.txt": "half-written"})

	_, err = m.Restore(context.Background(), meta.ID, target)
	require.NoError(t, err)

	// The pre-restore content was checkpointed before being replaced.
	metas, err := m.List("grep")
	require.NoError(t, err)
	require.Len(t, metas, 2)

	_, statErr := os.Stat(filepath.Join(target, "broken.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestManager_RestoreRefusesUnverifiable(t *testing.T) {
	m := newManager(t)
	_, err := m.Restore(context.Background(), "nothing-20200101T000000-deadbeef", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestManager_LatestAndList(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{"f": "1"})

	first, err := m.Create(context.Background(), "tar", buildDir, nil, nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := m.Create(context.Background(), "tar", buildDir, nil, nil)
	require.NoError(t, err)

	latest, err := m.Latest("tar")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	metas, err := m.List("tar")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, second.ID, metas[0].ID)
	assert.Equal(t, first.ID, metas[1].ID)

	_, err = m.Latest("unknown")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestManager_PruneKeepsProtectedLatest(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{"f": "1"})

	var ids []string
	for range 4 {
		meta, err := m.Create(context.Background(), "gawk", buildDir, nil, nil)
		require.NoError(t, err)
		ids = append(ids, meta.ID)
		time.Sleep(5 * time.Millisecond)
	}

	// MaxAge of a nanosecond makes every checkpoint stale, but the latest of
	// a protected package survives.
	removed, err := m.Prune(context.Background(),
		domain.RetentionPolicy{MaxAge: time.Nanosecond},
		map[string]bool{"gawk": true},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	latest, err := m.Latest("gawk")
	require.NoError(t, err)
	assert.Equal(t, ids[len(ids)-1], latest.ID)
}

func TestManager_PruneByCount(t *testing.T) {
	m := newManager(t)
	buildDir := t.TempDir()
	writeTree(t, buildDir, map[string]string{"f": "1"})

	for range 5 {
		_, err := m.Create(context.Background(), "bison", buildDir, nil, nil)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	removed, err := m.Prune(context.Background(),
		domain.RetentionPolicy{MaxPerPackage: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	metas, err := m.List("bison")
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestManager_CreateEmptyDir(t *testing.T) {
	m := newManager(t)

	meta, err := m.Create(context.Background(), "hello", filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Verify(meta.ID))
}
