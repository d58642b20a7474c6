package scheduler_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/resources"
	"go.trai.ch/forge/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

// memStore is an in-memory ports.StateStore with the same lifecycle rules as
// the SQLite adapter. Good enough to drive the scheduler in tests.
type memStore struct {
	mu          sync.Mutex
	versions    map[string]*domain.PackageVersion
	queue       map[string]*domain.BuildQueueEntry
	records     []*domain.BuildRecord
	transitions []domain.Transition
}

var _ ports.StateStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		versions: make(map[string]*domain.PackageVersion),
		queue:    make(map[string]*domain.BuildQueueEntry),
	}
}

func (m *memStore) RegisterPackage(_ context.Context, _ string) error { return nil }

func (m *memStore) RegisterVersion(_ context.Context, pv *domain.PackageVersion) error {
	if err := pv.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pv
	cp.Status = domain.StatusPending
	m.versions[cp.Ref()] = &cp
	return nil
}

func (m *memStore) Version(_ context.Context, name, version string) (*domain.PackageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pv, ok := m.versions[domain.Ref(name, version)]
	if !ok {
		return nil, zerr.With(domain.ErrPackageNotRegistered, "package", domain.Ref(name, version))
	}
	cp := *pv
	return &cp, nil
}

func (m *memStore) Versions(_ context.Context) ([]*domain.PackageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PackageVersion, 0, len(m.versions))
	for _, pv := range m.versions {
		cp := *pv
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) VersionsByStatus(_ context.Context, status domain.Status) ([]*domain.PackageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PackageVersion
	for _, pv := range m.versions {
		if pv.Status == status {
			cp := *pv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, name, version string, to domain.Status, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := domain.Ref(name, version)
	pv, ok := m.versions[ref]
	if !ok {
		return zerr.With(domain.ErrPackageNotRegistered, "package", ref)
	}
	if pv.Status == to {
		return nil
	}
	if !pv.Status.CanTransition(to) {
		werr := zerr.With(domain.ErrInvalidTransition, "from", pv.Status.String())
		return zerr.With(werr, "to", to.String())
	}
	m.transitions = append(m.transitions, domain.Transition{
		Package: name, Version: version, From: pv.Status, To: to, At: time.Now(), Note: note,
	})
	pv.Status = to
	if e, ok := m.queue[ref]; ok {
		e.Status = to
	}
	return nil
}

func (m *memStore) Enqueue(_ context.Context, e *domain.BuildQueueEntry) error {
	m.mu.Lock()
	ref := domain.Ref(e.Package, e.Version)
	pv, ok := m.versions[ref]
	if !ok {
		m.mu.Unlock()
		return zerr.With(domain.ErrPackageNotRegistered, "package", ref)
	}
	if pv.Status == domain.StatusQueued || pv.Status == domain.StatusActive {
		m.mu.Unlock()
		return zerr.With(domain.ErrAlreadyQueued, "package", ref)
	}
	if pv.Status != domain.StatusPending {
		m.mu.Unlock()
		return zerr.With(domain.ErrInvalidTransition, "from", pv.Status.String())
	}
	cp := *e
	cp.Status = domain.StatusQueued
	m.queue[ref] = &cp
	m.mu.Unlock()
	return m.SetStatus(context.Background(), e.Package, e.Version, domain.StatusQueued, "enqueued")
}

func (m *memStore) Queue(_ context.Context) ([]*domain.BuildQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.BuildQueueEntry, 0, len(m.queue))
	for _, e := range m.queue {
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.BuildQueueEntry) int { return b.Priority - a.Priority })
	return out, nil
}

func (m *memStore) RecordBuild(_ context.Context, r *domain.BuildRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *memStore) Transitions(_ context.Context, name, version string) ([]domain.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transition
	for _, tr := range m.transitions {
		if tr.Package == name && tr.Version == version {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) status(t *testing.T, name, version string) domain.Status {
	t.Helper()
	pv, err := m.Version(context.Background(), name, version)
	require.NoError(t, err)
	return pv.Status
}

type nopLogger struct{}

func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(error) {}

func register(t *testing.T, store *memStore, name, version string, reqs ...domain.BuildRequirement) {
	t.Helper()
	require.NoError(t, store.RegisterVersion(context.Background(), &domain.PackageVersion{
		Package: name, Version: version, Requirements: reqs,
	}))
}

func requireOn(pkg, constraint string) domain.BuildRequirement {
	return domain.BuildRequirement{
		Package:    pkg,
		Constraint: domain.MustConstraint(constraint),
		Kind:       domain.KindRequired,
	}
}

func newScheduler(store ports.StateStore, exec ports.BuildExecutor, cp ports.CheckpointManager, tracker *resources.Tracker, buildRoot string) *scheduler.Scheduler {
	return scheduler.New(store, exec, cp, tracker, resolver.New(0), telemetry.NewNoOpTracer(), nopLogger{}, scheduler.Options{
		MaxParallel:     2,
		PollInterval:    time.Second,
		BuildRoot:       buildRoot,
		DefaultRAMMB:    512,
		DefaultCPUCores: 1,
	})
}

func anyCheckpoint(ctrl *gomock.Controller) *mocks.MockCheckpointManager {
	cp := mocks.NewMockCheckpointManager(ctrl)
	cp.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, pkg, _ string, _ map[string]string, _ *domain.PackageVersion) (*domain.CheckpointMeta, error) {
			return &domain.CheckpointMeta{ID: pkg + "-cp", Package: pkg}, nil
		}).AnyTimes()
	return cp
}

func TestScheduler_BuildsInDependencyOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := newMemStore()
		register(t, store, "zlib", "1.3.0")
		register(t, store, "openssl", "3.2.0", requireOn("zlib", ">=1.0.0"))

		var mu sync.Mutex
		var order []string
		exec := mocks.NewMockBuildExecutor(ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *ports.BuildJob) (string, error) {
			mu.Lock()
			order = append(order, job.Package)
			mu.Unlock()
			return "ok", nil
		}).Times(2)

		s := newScheduler(store, exec, anyCheckpoint(ctrl), resources.NewTracker(4096, 4), t.TempDir())

		ctx := context.Background()
		require.NoError(t, s.Enqueue(ctx, "openssl", "3.2.0", 90))
		require.NoError(t, s.Enqueue(ctx, "zlib", "1.3.0", 10))

		require.NoError(t, s.Run(ctx))

		// openssl outranks zlib but cannot start before its dependency
		// completes.
		assert.Equal(t, []string{"zlib", "openssl"}, order)
		assert.Equal(t, domain.StatusCompleted, store.status(t, "zlib", "1.3.0"))
		assert.Equal(t, domain.StatusCompleted, store.status(t, "openssl", "3.2.0"))
		assert.Len(t, store.records, 2)
	})
}

func TestScheduler_FailureBlocksDependentsUntilRequeued(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := newMemStore()
		register(t, store, "libfoo", "1.0.0")
		register(t, store, "app", "2.0.0", requireOn("libfoo", ">=1.0.0"))
		register(t, store, "tool", "1.5.0", requireOn("app", ">=2.0.0"))

		failFirst := true
		exec := mocks.NewMockBuildExecutor(ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *ports.BuildJob) (string, error) {
			if job.Package == "libfoo" && failFirst {
				failFirst = false
				return "configure: error", zerr.With(domain.ErrBuildFailed, "package", job.Package)
			}
			return "ok", nil
		}).AnyTimes()

		cp := anyCheckpoint(ctrl)
		cp.EXPECT().Latest("libfoo").Return(&domain.CheckpointMeta{ID: "libfoo-cp", Package: "libfoo"}, nil)
		cp.EXPECT().Restore(gomock.Any(), "libfoo-cp", gomock.Any()).Return(&domain.CheckpointMeta{ID: "libfoo-cp"}, nil)

		s := newScheduler(store, exec, cp, resources.NewTracker(4096, 4), t.TempDir())

		ctx := context.Background()
		require.NoError(t, s.Enqueue(ctx, "libfoo", "1.0.0", 50))
		require.NoError(t, s.Enqueue(ctx, "app", "2.0.0", 50))
		require.NoError(t, s.Run(ctx))

		// The failure cascades through the transitive dependent set.
		assert.Equal(t, domain.StatusFailed, store.status(t, "libfoo", "1.0.0"))
		assert.Equal(t, domain.StatusBlocked, store.status(t, "app", "2.0.0"))
		assert.Equal(t, domain.StatusBlocked, store.status(t, "tool", "1.5.0"))

		// Requeueing the failed package alone releases its dependents: app
		// returns to the queue it was in, tool returns to pending.
		require.NoError(t, s.Requeue(ctx, "libfoo", "1.0.0", 50))
		assert.Equal(t, domain.StatusQueued, store.status(t, "app", "2.0.0"))
		assert.Equal(t, domain.StatusPending, store.status(t, "tool", "1.5.0"))

		require.NoError(t, s.Run(ctx))

		assert.Equal(t, domain.StatusCompleted, store.status(t, "libfoo", "1.0.0"))
		assert.Equal(t, domain.StatusCompleted, store.status(t, "app", "2.0.0"))
		assert.Equal(t, domain.StatusPending, store.status(t, "tool", "1.5.0"))
	})
}

func TestScheduler_RequeueReleasesOnlyWhenAllFailuresClear(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := newMemStore()
		register(t, store, "liba", "1.0.0")
		register(t, store, "libb", "1.0.0")
		register(t, store, "app", "2.0.0", requireOn("liba", ">=1.0.0"), requireOn("libb", ">=1.0.0"))

		var mu sync.Mutex
		failedOnce := map[string]bool{}
		exec := mocks.NewMockBuildExecutor(ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *ports.BuildJob) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if job.Package != "app" && !failedOnce[job.Package] {
				failedOnce[job.Package] = true
				return "compile: error", zerr.With(domain.ErrBuildFailed, "package", job.Package)
			}
			return "ok", nil
		}).AnyTimes()

		cp := anyCheckpoint(ctrl)
		cp.EXPECT().Latest(gomock.Any()).DoAndReturn(func(pkg string) (*domain.CheckpointMeta, error) {
			return &domain.CheckpointMeta{ID: pkg + "-cp", Package: pkg}, nil
		}).AnyTimes()
		cp.EXPECT().Restore(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&domain.CheckpointMeta{}, nil).AnyTimes()

		s := newScheduler(store, exec, cp, resources.NewTracker(4096, 4), t.TempDir())

		ctx := context.Background()
		require.NoError(t, s.Enqueue(ctx, "liba", "1.0.0", 50))
		require.NoError(t, s.Enqueue(ctx, "libb", "1.0.0", 50))
		require.NoError(t, s.Enqueue(ctx, "app", "2.0.0", 50))
		require.NoError(t, s.Run(ctx))

		assert.Equal(t, domain.StatusBlocked, store.status(t, "app", "2.0.0"))

		// One failed dependency still blocks app.
		require.NoError(t, s.Requeue(ctx, "liba", "1.0.0", 50))
		assert.Equal(t, domain.StatusBlocked, store.status(t, "app", "2.0.0"))

		require.NoError(t, s.Requeue(ctx, "libb", "1.0.0", 50))
		assert.Equal(t, domain.StatusQueued, store.status(t, "app", "2.0.0"))

		require.NoError(t, s.Run(ctx))
		assert.Equal(t, domain.StatusCompleted, store.status(t, "app", "2.0.0"))
	})
}

func TestScheduler_EnqueueRejectsImpossibleDemand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	require.NoError(t, store.RegisterVersion(context.Background(), &domain.PackageVersion{
		Package: "chromium", Version: "120.0.0", RAMMB: 8192,
	}))

	s := newScheduler(store, mocks.NewMockBuildExecutor(ctrl), anyCheckpoint(ctrl), resources.NewTracker(4096, 4), t.TempDir())

	err := s.Enqueue(context.Background(), "chromium", "120.0.0", 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResourcesExhausted)
	assert.Equal(t, domain.StatusPending, store.status(t, "chromium", "120.0.0"))
}

func TestScheduler_RequeueRejectsNonFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	register(t, store, "zlib", "1.3.0")

	s := newScheduler(store, mocks.NewMockBuildExecutor(ctrl), anyCheckpoint(ctrl), resources.NewTracker(4096, 4), t.TempDir())

	err := s.Requeue(context.Background(), "zlib", "1.3.0", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotRequeueable)
}

func TestScheduler_EnqueueRejectsCyclicGraph(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	register(t, store, "a", "1.0.0", requireOn("b", ">=1.0.0"))
	register(t, store, "b", "1.0.0", requireOn("a", ">=1.0.0"))

	s := newScheduler(store, mocks.NewMockBuildExecutor(ctrl), anyCheckpoint(ctrl), resources.NewTracker(4096, 4), t.TempDir())

	err := s.Enqueue(context.Background(), "a", "1.0.0", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestScheduler_ReconcileFailsOrphanedBuilds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	register(t, store, "gcc", "13.2.0")
	ctx := context.Background()
	require.NoError(t, store.Enqueue(ctx, &domain.BuildQueueEntry{Package: "gcc", Version: "13.2.0", Priority: 50}))
	require.NoError(t, store.SetStatus(ctx, "gcc", "13.2.0", domain.StatusActive, "dispatched"))

	cp := mocks.NewMockCheckpointManager(ctrl)
	cp.EXPECT().Latest("gcc").Return(&domain.CheckpointMeta{ID: "gcc-cp", Package: "gcc"}, nil)
	cp.EXPECT().Restore(gomock.Any(), "gcc-cp", gomock.Any()).Return(&domain.CheckpointMeta{ID: "gcc-cp"}, nil)

	s := newScheduler(store, mocks.NewMockBuildExecutor(ctrl), cp, resources.NewTracker(4096, 4), t.TempDir())

	// A fresh process observes an active version with no worker behind it.
	require.NoError(t, s.Reconcile(ctx))

	assert.Equal(t, domain.StatusFailed, store.status(t, "gcc", "13.2.0"))
	trs, err := store.Transitions(ctx, "gcc", "13.2.0")
	require.NoError(t, err)
	last := trs[len(trs)-1]
	assert.Equal(t, domain.StatusFailed, last.To)
	assert.Contains(t, last.Note, "orphaned")
}

func TestScheduler_ResourceCeilingDefersDispatch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := newMemStore()
		register(t, store, "big1", "1.0.0")
		register(t, store, "big2", "1.0.0")

		tracker := resources.NewTracker(512, 4) // fits exactly one default build

		firstStarted := make(chan struct{})
		proceed := make(chan struct{})
		var once sync.Once
		exec := mocks.NewMockBuildExecutor(ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _ *ports.BuildJob) (string, error) {
			once.Do(func() {
				close(firstStarted)
				<-proceed
			})
			return "ok", nil
		}).Times(2)

		s := newScheduler(store, exec, anyCheckpoint(ctrl), tracker, t.TempDir())

		ctx := context.Background()
		require.NoError(t, s.Enqueue(ctx, "big1", "1.0.0", 50))
		require.NoError(t, s.Enqueue(ctx, "big2", "1.0.0", 50))

		errCh := make(chan error, 1)
		go func() { errCh <- s.Run(ctx) }()

		<-firstStarted
		synctest.Wait()

		// The second build must wait for the ceiling, not run degraded.
		assert.Equal(t, 1, tracker.Active())

		close(proceed)
		require.NoError(t, <-errCh)

		assert.Equal(t, domain.StatusCompleted, store.status(t, "big1", "1.0.0"))
		assert.Equal(t, domain.StatusCompleted, store.status(t, "big2", "1.0.0"))
		ram, cpu := tracker.Outstanding()
		assert.Zero(t, ram)
		assert.Zero(t, cpu)
	})
}

func TestScheduler_CancelFailsBuildAndRestores(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := newMemStore()
		register(t, store, "llvm", "17.0.0")

		started := make(chan struct{})
		exec := mocks.NewMockBuildExecutor(ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ *ports.BuildJob) (string, error) {
			close(started)
			<-ctx.Done()
			return "interrupted", ctx.Err()
		})

		cp := anyCheckpoint(ctrl)
		cp.EXPECT().Latest("llvm").Return(&domain.CheckpointMeta{ID: "llvm-cp", Package: "llvm"}, nil)
		cp.EXPECT().Restore(gomock.Any(), "llvm-cp", gomock.Any()).Return(&domain.CheckpointMeta{ID: "llvm-cp"}, nil)

		s := newScheduler(store, exec, cp, resources.NewTracker(4096, 4), t.TempDir())

		ctx := context.Background()
		require.NoError(t, s.Enqueue(ctx, "llvm", "17.0.0", 50))

		errCh := make(chan error, 1)
		go func() { errCh <- s.Run(ctx) }()

		<-started
		require.NoError(t, s.Cancel("llvm", "17.0.0"))
		require.NoError(t, <-errCh)

		assert.Equal(t, domain.StatusFailed, store.status(t, "llvm", "17.0.0"))
	})
}

func TestScheduler_CancelUnknownBuild(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	s := newScheduler(store, mocks.NewMockBuildExecutor(ctrl), anyCheckpoint(ctrl), resources.NewTracker(4096, 4), t.TempDir())

	require.Error(t, s.Cancel("ghost", "1.0.0"))
}
