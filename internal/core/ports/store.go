package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// StateStore is the transactional persistence layer. It is the single source
// of truth for durable state; in-memory structures are caches rebuilt from it
// on startup.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type StateStore interface {
	// RegisterPackage creates the package row if it does not exist yet.
	RegisterPackage(ctx context.Context, name string) error

	// RegisterVersion persists a validated package version together with its
	// dependency edges. Packages referenced by requirements are created
	// implicitly. The version starts out pending.
	RegisterVersion(ctx context.Context, pv *domain.PackageVersion) error

	// Version loads a single package version, or
	// domain.ErrPackageNotRegistered if it does not exist.
	Version(ctx context.Context, name, version string) (*domain.PackageVersion, error)

	// Versions loads every registered package version.
	Versions(ctx context.Context) ([]*domain.PackageVersion, error)

	// VersionsByStatus loads every version currently in the given status.
	VersionsByStatus(ctx context.Context, status domain.Status) ([]*domain.PackageVersion, error)

	// SetStatus transitions a version to a new status, appending an audit
	// row and updating any queue entry in the same transaction. Transitions
	// not allowed by the lifecycle return domain.ErrInvalidTransition.
	SetStatus(ctx context.Context, name, version string, to domain.Status, note string) error

	// Enqueue persists a queue entry for a pending version.
	Enqueue(ctx context.Context, e *domain.BuildQueueEntry) error

	// Queue returns all queue entries ordered by priority (highest first),
	// then enqueue time.
	Queue(ctx context.Context) ([]*domain.BuildQueueEntry, error)

	// RecordBuild appends the durable outcome of one build attempt.
	RecordBuild(ctx context.Context, r *domain.BuildRecord) error

	// Transitions returns the status audit history of a version, oldest first.
	Transitions(ctx context.Context, name, version string) ([]domain.Transition, error)

	// Close releases the underlying database handle.
	Close() error
}
