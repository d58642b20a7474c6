// Package scheduler implements the bounded-parallel build dispatch loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/resources"
	"go.trai.ch/zerr"
)

// Options configures the dispatch loop.
type Options struct {
	// MaxParallel caps concurrently active builds.
	MaxParallel int

	// PollInterval is the re-poll period when no event arrives. The loop is
	// event-driven; the ticker only covers missed wakeups.
	PollInterval time.Duration

	// BuildRoot holds one working directory per package build.
	BuildRoot string

	// SkipTests drops the optional test phase for every build.
	SkipTests bool

	// DefaultRAMMB and DefaultCPUCores are reserved for versions that do not
	// declare their own demand.
	DefaultRAMMB    int
	DefaultCPUCores int
}

// Scheduler owns the build lifecycle: it admits queued versions whose
// blocking dependencies are completed, reserves resources, checkpoints,
// dispatches workers and persists every outcome. A single coordinator
// goroutine mutates scheduling state; workers only execute and report.
type Scheduler struct {
	store       ports.StateStore
	executor    ports.BuildExecutor
	checkpoints ports.CheckpointManager
	tracker     *resources.Tracker
	resolver    *resolver.Resolver
	tracer      ports.Tracer
	log         ports.Logger
	opts        Options

	mu      sync.Mutex
	running map[string]*runningBuild
	dirty   bool

	wake    chan struct{}
	results chan *buildResult
}

// runningBuild is the coordinator's handle on one in-flight worker.
type runningBuild struct {
	cancel      context.CancelFunc
	reservation *domain.Reservation
}

// buildResult is what a worker reports back to the coordinator.
type buildResult struct {
	pv          *domain.PackageVersion
	reservation *domain.Reservation
	span        ports.Span
	startedAt   time.Time
	checkpoint  string
	logTail     string
	err         error
}

// New creates a Scheduler.
func New(
	store ports.StateStore,
	executor ports.BuildExecutor,
	checkpoints ports.CheckpointManager,
	tracker *resources.Tracker,
	res *resolver.Resolver,
	tracer ports.Tracer,
	log ports.Logger,
	opts Options,
) *Scheduler {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	return &Scheduler{
		store:       store,
		executor:    executor,
		checkpoints: checkpoints,
		tracker:     tracker,
		resolver:    res,
		tracer:      tracer,
		log:         log,
		opts:        opts,
		running:     make(map[string]*runningBuild),
		dirty:       true,
		wake:        make(chan struct{}, 1),
		results:     make(chan *buildResult, opts.MaxParallel),
	}
}

// Enqueue validates the version against the dependency graph and the resource
// ceilings, then persists a queue entry. The version must be registered and
// pending. A demand no ceiling could ever admit is rejected here instead of
// deferring forever at dispatch.
func (s *Scheduler) Enqueue(ctx context.Context, name, version string, priority int) error {
	pv, err := s.store.Version(ctx, name, version)
	if err != nil {
		return err
	}
	ramMB, cpuCores := s.demand(pv)
	if !s.tracker.Fits(ramMB, cpuCores) {
		werr := zerr.With(domain.ErrResourcesExhausted, "package", pv.Ref())
		werr = zerr.With(werr, "ram_mb", ramMB)
		return zerr.With(werr, "cpu_cores", cpuCores)
	}
	if err := s.ensureResolvable(ctx); err != nil {
		return err
	}

	entry := &domain.BuildQueueEntry{
		Package:    name,
		Version:    version,
		Priority:   priority,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := s.store.Enqueue(ctx, entry); err != nil {
		return err
	}
	s.signal()
	return nil
}

// Requeue returns a failed or blocked version to pending and re-enqueues it.
// Dependents that were blocked by the failure and no longer sit downstream of
// any failed version are released back to their pre-failure state. Requeueing
// never happens automatically.
func (s *Scheduler) Requeue(ctx context.Context, name, version string, priority int) error {
	pv, err := s.store.Version(ctx, name, version)
	if err != nil {
		return err
	}
	if pv.Status != domain.StatusFailed && pv.Status != domain.StatusBlocked {
		werr := zerr.With(domain.ErrNotRequeueable, "package", pv.Ref())
		return zerr.With(werr, "status", pv.Status.String())
	}
	if err := s.store.SetStatus(ctx, name, version, domain.StatusPending, "requeued by operator"); err != nil {
		return err
	}
	if err := s.Enqueue(ctx, name, version, priority); err != nil {
		return err
	}
	return s.releaseBlocked(ctx, domain.Ref(name, version))
}

// Cancel aborts a running build. The worker observes the cancellation and
// follows the ordinary failure path.
func (s *Scheduler) Cancel(name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rb, ok := s.running[domain.Ref(name, version)]
	if !ok {
		return zerr.With(zerr.New("build is not active"), "package", domain.Ref(name, version))
	}
	rb.cancel()
	return nil
}

// MarkDirty flags the dependency graph as changed so the next enqueue
// revalidates it.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Run executes the dispatch loop until the queue drains and every worker has
// reported, or until ctx is cancelled. Reconcile runs first so state left
// behind by a crash never reaches dispatch.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Reconcile(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.dispatch(ctx); err != nil {
			return err
		}

		drained, err := s.drained(ctx)
		if err != nil {
			return err
		}
		if drained && s.activeCount() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			s.cancelAll()
			// Outcomes of cancelled workers still have to reach the store.
			s.drainWorkers(context.WithoutCancel(ctx))
			return ctx.Err()
		case res := <-s.results:
			s.handleResult(ctx, res)
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// Reconcile repairs state left behind by an unclean shutdown: versions the
// store believes are building, but for which no worker exists, are failed and
// their most recent checkpoint is restored. Must run before dispatch.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	for _, status := range []domain.Status{domain.StatusActive, domain.StatusTesting} {
		orphans, err := s.store.VersionsByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, pv := range orphans {
			if s.isRunning(pv.Ref()) {
				continue
			}
			s.log.Warn(fmt.Sprintf("reconcile: %s was %s with no live worker, failing", pv.Ref(), status))
			if err := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusFailed, "orphaned by unclean shutdown"); err != nil {
				return err
			}
			s.restoreLatest(ctx, pv)
		}
	}
	return nil
}

// dispatch starts workers for eligible queue entries until parallelism or
// resources are exhausted.
func (s *Scheduler) dispatch(ctx context.Context) error {
	entries, err := s.store.Queue(ctx)
	if err != nil {
		return err
	}
	all, err := s.store.Versions(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if s.activeCount() >= s.opts.MaxParallel {
			return nil
		}
		if entry.Status != domain.StatusQueued || s.isRunning(domain.Ref(entry.Package, entry.Version)) {
			continue
		}

		pv, err := s.store.Version(ctx, entry.Package, entry.Version)
		if err != nil {
			return err
		}
		if !s.dependenciesCompleted(pv, all) {
			continue
		}

		ramMB, cpuCores := s.demand(pv)
		res, ok := s.tracker.TryReserve(pv.Ref(), ramMB, cpuCores)
		if !ok {
			// Refusals are a scheduling condition, not a failure: log only.
			s.log.Info(fmt.Sprintf("resources exhausted, deferring %s (want %dMB RAM, %d cores)", pv.Ref(), ramMB, cpuCores))
			continue
		}

		if err := s.start(ctx, pv, res); err != nil {
			s.tracker.Release(res)
			cur, verr := s.store.Version(ctx, pv.Package, pv.Version)
			if verr != nil || cur.Status != domain.StatusActive {
				return err
			}
			// A build that cannot start safely is a failed build, not a
			// reason to stop dispatching everything else.
			s.log.Error(err)
			if serr := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusFailed, err.Error()); serr != nil {
				return serr
			}
			if berr := s.blockDependents(ctx, pv); berr != nil {
				return berr
			}
		}
	}
	return nil
}

// start flips the version to active, takes the pre-build checkpoint and
// launches the worker.
func (s *Scheduler) start(ctx context.Context, pv *domain.PackageVersion, res *domain.Reservation) error {
	if err := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusActive, "dispatched"); err != nil {
		return err
	}

	workDir := s.workDir(pv)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create build directory")
	}

	env := map[string]string{
		"FORGE_PACKAGE": pv.Package,
		"FORGE_VERSION": pv.Version,
	}

	meta, err := s.checkpoints.Create(ctx, pv.Package, workDir, env, pv)
	if err != nil {
		return zerr.Wrap(err, "pre-build checkpoint failed")
	}

	buildCtx, cancel := context.WithCancel(ctx)
	_, span := s.tracer.Start(buildCtx, "build "+pv.Ref())
	span.SetAttribute("checkpoint", meta.ID)

	s.mu.Lock()
	s.running[pv.Ref()] = &runningBuild{cancel: cancel, reservation: res}
	s.mu.Unlock()

	job := &ports.BuildJob{
		Package:     pv.Package,
		Version:     pv.Version,
		WorkingDir:  workDir,
		Environment: env,
		SkipTests:   s.opts.SkipTests,
		OnPhase: func(phase domain.BuildPhase) {
			_, _ = fmt.Fprintf(span, "phase: %s\n", phase)
			if phase == domain.PhaseTest {
				if err := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusTesting, "test phase started"); err != nil {
					s.log.Error(err)
				}
			}
		},
	}

	startedAt := time.Now().UTC()
	go func() {
		defer cancel()
		tail, execErr := s.executor.Execute(buildCtx, job)
		s.results <- &buildResult{
			pv:          pv,
			reservation: res,
			span:        span,
			startedAt:   startedAt,
			checkpoint:  meta.ID,
			logTail:     tail,
			err:         execErr,
		}
	}()
	return nil
}

// handleResult settles one finished build: persist the record, release
// resources and either complete the version or fail it, restore its last
// checkpoint and block everything downstream.
func (s *Scheduler) handleResult(ctx context.Context, res *buildResult) {
	s.mu.Lock()
	delete(s.running, res.pv.Ref())
	s.mu.Unlock()
	s.tracker.Release(res.reservation)

	record := &domain.BuildRecord{
		Package:      res.pv.Package,
		Version:      res.pv.Version,
		StartedAt:    res.startedAt,
		FinishedAt:   time.Now().UTC(),
		Success:      res.err == nil,
		CheckpointID: res.checkpoint,
		LogTail:      res.logTail,
	}
	if err := s.store.RecordBuild(ctx, record); err != nil {
		s.log.Error(err)
	}

	if res.err == nil {
		res.span.End()
		if err := s.store.SetStatus(ctx, res.pv.Package, res.pv.Version, domain.StatusCompleted, ""); err != nil {
			s.log.Error(err)
		}
		s.signal()
		return
	}

	res.span.RecordError(res.err)
	res.span.End()

	note := res.err.Error()
	if errors.Is(res.err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		note = "cancelled by operator"
	}
	if err := s.store.SetStatus(ctx, res.pv.Package, res.pv.Version, domain.StatusFailed, note); err != nil {
		s.log.Error(err)
	}
	s.restoreLatest(ctx, res.pv)
	if err := s.blockDependents(ctx, res.pv); err != nil {
		s.log.Error(err)
	}
	s.signal()
}

// blockDependents moves every pending or queued version that transitively
// depends on the failed package to blocked.
func (s *Scheduler) blockDependents(ctx context.Context, failed *domain.PackageVersion) error {
	all, err := s.store.Versions(ctx)
	if err != nil {
		return err
	}

	// Package-level reverse reachability over blocking edges.
	dependents := make(map[string][]string)
	for _, pv := range all {
		for _, req := range pv.BlockingRequirements() {
			dependents[req.Package] = append(dependents[req.Package], pv.Package)
		}
	}

	affected := map[string]bool{}
	queue := []string{failed.Package}
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[pkg] {
			if !affected[dep] {
				affected[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	for _, pv := range all {
		if !affected[pv.Package] {
			continue
		}
		if pv.Status != domain.StatusPending && pv.Status != domain.StatusQueued {
			continue
		}
		note := "blocked by failed dependency " + failed.Ref()
		if err := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusBlocked, note); err != nil {
			return err
		}
	}
	return nil
}

// releaseBlocked returns blocked versions whose cause is gone to their
// pre-failure state: previously queued entries are re-armed in the queue,
// everything else becomes pending. A version stays blocked while any package
// in its transitive blocking dependency set still has a failed version.
func (s *Scheduler) releaseBlocked(ctx context.Context, cause string) error {
	all, err := s.store.Versions(ctx)
	if err != nil {
		return err
	}

	failing := make(map[string]bool)
	requires := make(map[string][]string)
	for _, pv := range all {
		if pv.Status == domain.StatusFailed {
			failing[pv.Package] = true
		}
		for _, req := range pv.BlockingRequirements() {
			requires[pv.Package] = append(requires[pv.Package], req.Package)
		}
	}

	entries, err := s.store.Queue(ctx)
	if err != nil {
		return err
	}
	entryByRef := make(map[string]*domain.BuildQueueEntry, len(entries))
	for _, e := range entries {
		entryByRef[e.Ref()] = e
	}

	for _, pv := range all {
		if pv.Status != domain.StatusBlocked || dependsOnFailing(pv.Package, requires, failing) {
			continue
		}
		note := "unblocked by requeue of " + cause
		if err := s.store.SetStatus(ctx, pv.Package, pv.Version, domain.StatusPending, note); err != nil {
			return err
		}
		entry, wasQueued := entryByRef[pv.Ref()]
		if !wasQueued {
			continue
		}
		if err := s.store.Enqueue(ctx, entry); err != nil {
			return err
		}
	}
	s.signal()
	return nil
}

// dependsOnFailing reports whether pkg transitively depends, over blocking
// edges at package granularity, on a package with a failed version.
func dependsOnFailing(pkg string, requires map[string][]string, failing map[string]bool) bool {
	seen := map[string]bool{pkg: true}
	queue := []string{pkg}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range requires[cur] {
			if failing[dep] {
				return true
			}
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}

// dependenciesCompleted reports whether every blocking requirement of pv is
// satisfied by a completed registered version. Checked against live store
// state at dispatch time, never cached.
func (s *Scheduler) dependenciesCompleted(pv *domain.PackageVersion, all []*domain.PackageVersion) bool {
	byPackage := make(map[string][]*domain.PackageVersion)
	for _, v := range all {
		byPackage[v.Package] = append(byPackage[v.Package], v)
	}

	for _, req := range pv.BlockingRequirements() {
		satisfied := false
		for _, candidate := range byPackage[req.Package] {
			if candidate.Status == domain.StatusCompleted && req.Constraint.Satisfies(candidate.Version) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// ensureResolvable revalidates the dependency graph after it changed. The
// result is cached until the next change.
func (s *Scheduler) ensureResolvable(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return nil
	}

	all, err := s.store.Versions(ctx)
	if err != nil {
		return err
	}
	if _, err := s.resolver.Resolve(all); err != nil {
		return err
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// restoreLatest rolls the package's working directory back to its most recent
// checkpoint. Missing checkpoints are logged, not fatal: the failure path
// already recorded the outcome.
func (s *Scheduler) restoreLatest(ctx context.Context, pv *domain.PackageVersion) {
	meta, err := s.checkpoints.Latest(pv.Package)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			s.log.Warn(fmt.Sprintf("no checkpoint to restore for %s", pv.Ref()))
			return
		}
		s.log.Error(err)
		return
	}
	if _, err := s.checkpoints.Restore(ctx, meta.ID, s.workDir(pv)); err != nil {
		s.log.Error(zerr.Wrap(err, "checkpoint restore failed"))
		return
	}
	s.log.Info(fmt.Sprintf("restored %s from checkpoint %s", pv.Ref(), meta.ID))
}

// drained reports whether no dispatchable entry remains. Blocked and failed
// versions do not keep the loop alive.
func (s *Scheduler) drained(ctx context.Context) (bool, error) {
	entries, err := s.store.Queue(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Status == domain.StatusQueued {
			return false, nil
		}
	}
	return true, nil
}

// drainWorkers settles in-flight workers after cancellation so their
// terminal state is persisted before Run returns.
func (s *Scheduler) drainWorkers(ctx context.Context) {
	for s.activeCount() > 0 {
		res := <-s.results
		s.handleResult(ctx, res)
	}
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rb := range s.running {
		rb.cancel()
	}
}

func (s *Scheduler) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

func (s *Scheduler) isRunning(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[ref]
	return ok
}

// demand resolves the version's reservation, falling back to configured
// defaults.
func (s *Scheduler) demand(pv *domain.PackageVersion) (ramMB, cpuCores int) {
	ramMB, cpuCores = pv.RAMMB, pv.CPUCores
	if ramMB == 0 {
		ramMB = s.opts.DefaultRAMMB
	}
	if cpuCores == 0 {
		cpuCores = s.opts.DefaultCPUCores
	}
	return ramMB, cpuCores
}

// workDir is the per-build working directory.
func (s *Scheduler) workDir(pv *domain.PackageVersion) string {
	return filepath.Join(s.opts.BuildRoot, pv.Package+"-"+pv.Version)
}

// signal wakes the coordinator without blocking.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
