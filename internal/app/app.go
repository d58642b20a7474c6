// Package app implements the application layer for forge.
package app

import (
	"context"
	"os"
	"path/filepath"

	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/engine/resolver"
	"go.trai.ch/forge/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// App exposes the operator-facing operations of the orchestrator. It owns no
// state of its own; everything durable lives behind the state store.
type App struct {
	cfg         *config.Config
	store       ports.StateStore
	scheduler   *scheduler.Scheduler
	checkpoints ports.CheckpointManager
	resolver    *resolver.Resolver
	log         ports.Logger
}

// New creates a new App instance.
func New(
	cfg *config.Config,
	store ports.StateStore,
	sched *scheduler.Scheduler,
	checkpoints ports.CheckpointManager,
	res *resolver.Resolver,
	log ports.Logger,
) *App {
	return &App{
		cfg:         cfg,
		store:       store,
		scheduler:   sched,
		checkpoints: checkpoints,
		resolver:    res,
		log:         log,
	}
}

// Manifest declares package versions to register.
type Manifest struct {
	Packages []ManifestPackage `yaml:"packages"`
}

// ManifestPackage is one declared package version.
type ManifestPackage struct {
	Name     string                `yaml:"name"`
	Version  string                `yaml:"version"`
	RAMMB    int                   `yaml:"ram_mb"`
	CPUCores int                   `yaml:"cpu_cores"`
	Requires []ManifestRequirement `yaml:"requires"`
}

// ManifestRequirement is one declared dependency. An empty kind means
// required; an empty constraint means any version.
type ManifestRequirement struct {
	Package    string `yaml:"package"`
	Constraint string `yaml:"constraint"`
	Kind       string `yaml:"kind"`
}

// Register loads a manifest and registers every declared version. Each new
// blocking edge is cycle-checked against the already-known graph before
// anything is persisted for that version, so a rejected declaration leaves no
// partial state behind.
func (a *App) Register(ctx context.Context, manifestPath string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return zerr.Wrap(err, "failed to read manifest")
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return zerr.Wrap(err, "failed to parse manifest")
	}
	if len(manifest.Packages) == 0 {
		return zerr.With(zerr.New("manifest declares no packages"), "path", manifestPath)
	}

	known, err := a.store.Versions(ctx)
	if err != nil {
		return err
	}

	for _, decl := range manifest.Packages {
		pv, err := declToVersion(decl)
		if err != nil {
			return err
		}
		for _, req := range pv.BlockingRequirements() {
			if err := a.resolver.CheckEdge(known, pv.Package, req.Package); err != nil {
				return zerr.With(err, "registering", pv.Ref())
			}
		}
		if err := a.store.RegisterVersion(ctx, pv); err != nil {
			return err
		}
		known = append(known, pv)
		a.log.Info("registered " + pv.Ref())
	}

	a.scheduler.MarkDirty()
	return nil
}

func declToVersion(decl ManifestPackage) (*domain.PackageVersion, error) {
	pv := &domain.PackageVersion{
		Package:  decl.Name,
		Version:  decl.Version,
		RAMMB:    decl.RAMMB,
		CPUCores: decl.CPUCores,
	}
	for _, r := range decl.Requires {
		kind := domain.KindRequired
		if r.Kind != "" {
			parsed, err := domain.ParseDependencyKind(r.Kind)
			if err != nil {
				return nil, err
			}
			kind = parsed
		}
		constraint, err := domain.ParseConstraint(r.Constraint)
		if err != nil {
			return nil, err
		}
		pv.Requirements = append(pv.Requirements, domain.BuildRequirement{
			Package:    r.Package,
			Constraint: constraint,
			Kind:       kind,
		})
	}
	if err := pv.Validate(); err != nil {
		return nil, err
	}
	return pv, nil
}

// Enqueue queues a registered version for building.
func (a *App) Enqueue(ctx context.Context, ref string, priority int) error {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return err
	}
	return a.scheduler.Enqueue(ctx, name, version, priority)
}

// Requeue returns a failed or blocked version to the queue.
func (a *App) Requeue(ctx context.Context, ref string, priority int) error {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return err
	}
	return a.scheduler.Requeue(ctx, name, version, priority)
}

// Cancel aborts a running build.
func (a *App) Cancel(ref string) error {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return err
	}
	return a.scheduler.Cancel(name, version)
}

// StatusReport is the operator view of the orchestrator's state.
type StatusReport struct {
	Versions []*domain.PackageVersion
	Queue    []*domain.BuildQueueEntry
}

// Status returns all known versions and queue entries, optionally filtered to
// one package.
func (a *App) Status(ctx context.Context, pkg string) (*StatusReport, error) {
	versions, err := a.store.Versions(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := a.store.Queue(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{}
	for _, pv := range versions {
		if pkg == "" || pv.Package == pkg {
			report.Versions = append(report.Versions, pv)
		}
	}
	for _, e := range queue {
		if pkg == "" || e.Package == pkg {
			report.Queue = append(report.Queue, e)
		}
	}
	return report, nil
}

// History returns the status audit trail of one version.
func (a *App) History(ctx context.Context, ref string) ([]domain.Transition, error) {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return nil, err
	}
	return a.store.Transitions(ctx, name, version)
}

// Run executes the dispatch loop until the queue drains or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.scheduler.Run(ctx)
}

// CheckpointList lists checkpoints, optionally for one package.
func (a *App) CheckpointList(pkg string) ([]*domain.CheckpointMeta, error) {
	return a.checkpoints.List(pkg)
}

// CheckpointCreate snapshots the version's current build directory on demand.
func (a *App) CheckpointCreate(ctx context.Context, ref string) (*domain.CheckpointMeta, error) {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return nil, err
	}
	pv, err := a.store.Version(ctx, name, version)
	if err != nil {
		return nil, err
	}

	dir := a.buildDir(name, version)
	env := map[string]string{
		"FORGE_PACKAGE": name,
		"FORGE_VERSION": version,
	}
	return a.checkpoints.Create(ctx, name, dir, env, pv)
}

// CheckpointRestore rolls the referenced version's build directory back to
// the given checkpoint.
func (a *App) CheckpointRestore(ctx context.Context, id, ref string) (*domain.CheckpointMeta, error) {
	name, version, err := domain.SplitRef(ref)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.Version(ctx, name, version); err != nil {
		return nil, err
	}
	return a.checkpoints.Restore(ctx, id, a.buildDir(name, version))
}

// CheckpointPrune applies the configured retention policy. Packages that are
// building or failed keep their newest checkpoint regardless of policy, since
// it is the rollback target.
func (a *App) CheckpointPrune(ctx context.Context) (int, error) {
	protected := map[string]bool{}
	for _, status := range []domain.Status{domain.StatusActive, domain.StatusTesting, domain.StatusFailed} {
		versions, err := a.store.VersionsByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		for _, pv := range versions {
			protected[pv.Package] = true
		}
	}

	policy := domain.RetentionPolicy{
		MaxAge:        a.cfg.Retention.MaxAge.Std(),
		MaxPerPackage: a.cfg.Retention.MaxPerPackage,
	}
	return a.checkpoints.Prune(ctx, policy, protected)
}

func (a *App) buildDir(name, version string) string {
	return filepath.Join(a.cfg.BuildRoot, name+"-"+version)
}
