package domain

import "time"

// CheckpointFormatVersion tags the on-disk snapshot layout. Verify treats a
// mismatch the same as a checksum failure so snapshots written by a different
// binary fail deterministically instead of restoring garbage.
const CheckpointFormatVersion = 1

// CheckpointMeta describes one immutable snapshot of a package's build state.
// The metadata is written atomically together with the archive; a checkpoint
// is either complete or absent.
type CheckpointMeta struct {
	FormatVersion int               `json:"format_version"`
	ID            string            `json:"id"`
	Package       string            `json:"package"`
	CreatedAt     time.Time         `json:"created_at"`
	Checksum      string            `json:"checksum"`
	Archive       string            `json:"archive"`
	Environment   map[string]string `json:"environment,omitempty"`
	State         *PackageVersion   `json:"state,omitempty"`
}

// RetentionPolicy controls checkpoint pruning. The most recent checkpoint of
// an active or failed package is always retained regardless of policy.
type RetentionPolicy struct {
	// MaxAge removes checkpoints older than the given duration. Zero disables
	// age-based pruning.
	MaxAge time.Duration
	// MaxPerPackage caps how many checkpoints are kept per package. Zero
	// disables count-based pruning.
	MaxPerPackage int
}
