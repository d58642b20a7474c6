package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// CheckpointManager creates, verifies and restores integrity-checked
// snapshots of a package's build directory, environment and state record.
//
//go:generate go run go.uber.org/mock/mockgen -source=checkpoint.go -destination=mocks/mock_checkpoint.go -package=mocks
type CheckpointManager interface {
	// Create archives buildDir together with the captured environment and
	// state record. The snapshot becomes visible atomically: a partially
	// written checkpoint is never observable by Verify.
	Create(ctx context.Context, pkg, buildDir string, env map[string]string, state *domain.PackageVersion) (*domain.CheckpointMeta, error)

	// Verify re-derives the archive checksum and compares it with the
	// recorded one. Format-version mismatches also fail verification.
	Verify(id string) error

	// Restore replaces targetDir with the checkpoint contents after Verify
	// passes. A safety checkpoint of the current target is taken first so a
	// bad restore can itself be undone. The returned metadata carries the
	// captured environment and state record for the caller to replay.
	Restore(ctx context.Context, id, targetDir string) (*domain.CheckpointMeta, error)

	// Latest returns the most recent checkpoint for the package, or
	// domain.ErrCheckpointNotFound if none exists.
	Latest(pkg string) (*domain.CheckpointMeta, error)

	// List returns all checkpoints for the package, newest first. An empty
	// pkg lists every package.
	List(pkg string) ([]*domain.CheckpointMeta, error)

	// Prune removes checkpoints per policy, never removing the most recent
	// checkpoint of any package in the protected set. It returns the number
	// of checkpoints removed.
	Prune(ctx context.Context, policy domain.RetentionPolicy, protected map[string]bool) (int, error)
}
