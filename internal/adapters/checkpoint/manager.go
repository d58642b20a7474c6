// Package checkpoint implements integrity-verified snapshots of package
// build state: an archived build tree, the captured environment and the
// package's state record, all keyed by package and creation time.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

const (
	archiveName = "state.tar.xz"
	metaName    = "meta.json"
	stagingDir  = ".staging"
)

// Manager implements ports.CheckpointManager on the local filesystem.
// Layout: <root>/<package>/<checkpoint-id>/{state.tar.xz, meta.json}.
// Checkpoints become visible through a single directory rename, so a partial
// write is never observable.
type Manager struct {
	root string
	log  ports.Logger
}

var _ ports.CheckpointManager = (*Manager)(nil)

// NewManager creates a checkpoint manager rooted at dir.
func NewManager(dir string, log ports.Logger) (*Manager, error) {
	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create checkpoint root")
	}
	return &Manager{root: root, log: log}, nil
}

// Root returns the checkpoint root directory.
func (m *Manager) Root() string { return m.root }

// Create archives buildDir plus the captured environment and state record.
func (m *Manager) Create(ctx context.Context, pkg, buildDir string, env map[string]string, state *domain.PackageVersion) (*domain.CheckpointMeta, error) {
	if pkg == "" {
		return nil, zerr.New("checkpoint package name is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := checkpointID(pkg, now)

	stage := filepath.Join(m.root, stagingDir, uuid.NewString())
	if err := os.MkdirAll(stage, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(stage) //nolint:errcheck // best effort cleanup

	archivePath := filepath.Join(stage, archiveName)
	if err := packTree(buildDir, archivePath); err != nil {
		return nil, err
	}

	checksum, err := hashFile(archivePath)
	if err != nil {
		return nil, err
	}

	meta := &domain.CheckpointMeta{
		FormatVersion: domain.CheckpointFormatVersion,
		ID:            id,
		Package:       pkg,
		CreatedAt:     now,
		Checksum:      checksum,
		Archive:       archiveName,
		Environment:   env,
		State:         state,
	}
	if err := writeMeta(filepath.Join(stage, metaName), meta); err != nil {
		return nil, err
	}

	final := filepath.Join(m.root, pkg, id)
	if err := os.MkdirAll(filepath.Dir(final), 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create package checkpoint directory")
	}
	if err := os.Rename(stage, final); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to publish checkpoint"), "id", id)
	}

	m.log.Info("checkpoint created: " + id)
	return meta, nil
}

// Verify re-derives the archive checksum and compares it with the recorded
// one. A format-version mismatch fails verification as well.
func (m *Manager) Verify(id string) error {
	dir, meta, err := m.find(id)
	if err != nil {
		return err
	}

	if meta.FormatVersion != domain.CheckpointFormatVersion {
		werr := zerr.With(domain.ErrCheckpointIntegrity, "id", id)
		werr = zerr.With(werr, "format_version", meta.FormatVersion)
		return zerr.With(werr, "supported_version", domain.CheckpointFormatVersion)
	}

	checksum, err := hashFile(filepath.Join(dir, meta.Archive))
	if err != nil {
		return err
	}
	if checksum != meta.Checksum {
		werr := zerr.With(domain.ErrCheckpointIntegrity, "id", id)
		werr = zerr.With(werr, "recorded", meta.Checksum)
		return zerr.With(werr, "derived", checksum)
	}
	return nil
}

// Restore replaces targetDir with the checkpoint contents. A safety
// checkpoint of the current target is taken first so a bad restore can
// itself be undone. The returned metadata carries the captured environment
// and state record for the caller to replay.
func (m *Manager) Restore(ctx context.Context, id, targetDir string) (*domain.CheckpointMeta, error) {
	if err := m.Verify(id); err != nil {
		return nil, err
	}

	dir, meta, err := m.find(id)
	if err != nil {
		return nil, err
	}

	if _, serr := os.Stat(targetDir); serr == nil {
		if _, err := m.Create(ctx, meta.Package, targetDir, nil, nil); err != nil {
			return nil, zerr.Wrap(err, "failed to take safety checkpoint before restore")
		}
	}

	if err := os.RemoveAll(targetDir); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to clear target directory"), "dir", targetDir)
	}
	if err := unpackTree(filepath.Join(dir, meta.Archive), targetDir); err != nil {
		return nil, err
	}

	m.log.Info("checkpoint restored: " + id)
	return meta, nil
}

// Latest returns the most recent checkpoint for the package.
func (m *Manager) Latest(pkg string) (*domain.CheckpointMeta, error) {
	metas, err := m.List(pkg)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, zerr.With(domain.ErrCheckpointNotFound, "package", pkg)
	}
	return metas[0], nil
}

// List returns checkpoints newest first. An empty pkg lists every package.
func (m *Manager) List(pkg string) ([]*domain.CheckpointMeta, error) {
	var pkgs []string
	if pkg != "" {
		pkgs = []string{pkg}
	} else {
		entries, err := os.ReadDir(m.root)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to read checkpoint root")
		}
		for _, e := range entries {
			if e.IsDir() && e.Name() != stagingDir {
				pkgs = append(pkgs, e.Name())
			}
		}
	}

	var metas []*domain.CheckpointMeta
	for _, p := range pkgs {
		pkgMetas, err := m.listPackage(p)
		if err != nil {
			return nil, err
		}
		metas = append(metas, pkgMetas...)
	}

	slices.SortFunc(metas, func(a, b *domain.CheckpointMeta) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return metas, nil
}

// Prune removes checkpoints per policy. The most recent checkpoint of any
// package in the protected set is always retained: for a failed package it
// is the only recovery path.
func (m *Manager) Prune(ctx context.Context, policy domain.RetentionPolicy, protected map[string]bool) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to read checkpoint root")
	}

	var removed atomic.Int64
	g, _ := errgroup.WithContext(ctx)

	for _, e := range entries {
		if !e.IsDir() || e.Name() == stagingDir {
			continue
		}
		pkg := e.Name()
		g.Go(func() error {
			n, err := m.prunePackage(pkg, policy, protected[pkg])
			removed.Add(int64(n))
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return int(removed.Load()), err
	}
	return int(removed.Load()), nil
}

func (m *Manager) prunePackage(pkg string, policy domain.RetentionPolicy, protect bool) (int, error) {
	metas, err := m.listPackage(pkg)
	if err != nil {
		return 0, err
	}
	slices.SortFunc(metas, func(a, b *domain.CheckpointMeta) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	now := time.Now().UTC()
	removed := 0
	for i, meta := range metas {
		if i == 0 && protect {
			continue
		}
		tooMany := policy.MaxPerPackage > 0 && i >= policy.MaxPerPackage
		tooOld := policy.MaxAge > 0 && now.Sub(meta.CreatedAt) > policy.MaxAge
		if !tooMany && !tooOld {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, pkg, meta.ID)); err != nil {
			return removed, zerr.With(zerr.Wrap(err, "failed to remove checkpoint"), "id", meta.ID)
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) listPackage(pkg string) ([]*domain.CheckpointMeta, error) {
	dir := filepath.Join(m.root, pkg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read package checkpoints"), "package", pkg)
	}

	var metas []*domain.CheckpointMeta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMeta(filepath.Join(dir, e.Name(), metaName))
		if err != nil {
			// A directory without readable metadata is an interrupted write
			// that never got renamed into place, or manual damage. Skip it.
			m.log.Warn("skipping unreadable checkpoint: " + e.Name())
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// find locates a checkpoint directory by ID.
func (m *Manager) find(id string) (string, *domain.CheckpointMeta, error) {
	pkg, ok := packageOf(id)
	if !ok {
		return "", nil, zerr.With(domain.ErrCheckpointNotFound, "id", id)
	}
	dir := filepath.Join(m.root, pkg, id)
	meta, err := readMeta(filepath.Join(dir, metaName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, zerr.With(domain.ErrCheckpointNotFound, "id", id)
		}
		return "", nil, err
	}
	return dir, meta, nil
}

// checkpointID builds the canonical identifier, keyed by package and
// creation time, with a short random suffix to keep rapid snapshots unique.
func checkpointID(pkg string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", pkg, at.Format("20060102T150405"), uuid.NewString()[:8])
}

// packageOf extracts the package name from a checkpoint ID.
func packageOf(id string) (string, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return "", false
	}
	return strings.Join(parts[:len(parts)-2], "-"), true
}

func writeMeta(path string, meta *domain.CheckpointMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal checkpoint metadata")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // metadata is not secret
		return zerr.Wrap(err, "failed to write checkpoint metadata")
	}
	return nil
}

func readMeta(path string) (*domain.CheckpointMeta, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path owned by the manager
	if err != nil {
		return nil, err
	}
	var meta domain.CheckpointMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse checkpoint metadata"), "path", path)
	}
	return &meta, nil
}

func formatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
