package domain

import "go.trai.ch/zerr"

var (
	// ErrCycleDetected is returned when a dependency edge would close a cycle
	// in the required/build-time dependency graph.
	ErrCycleDetected = zerr.New("dependency cycle detected")

	// ErrUnsatisfiedDependency is returned when a blocking requirement matches
	// no registered version of the required package.
	ErrUnsatisfiedDependency = zerr.New("unsatisfied dependency")

	// ErrInvalidConstraint is returned when a version constraint does not parse.
	ErrInvalidConstraint = zerr.New("invalid version constraint")

	// ErrPackageNotRegistered is returned when an operation names a package
	// version that was never registered.
	ErrPackageNotRegistered = zerr.New("package not registered")

	// ErrAlreadyQueued is returned when enqueueing a version that is already
	// queued or actively building.
	ErrAlreadyQueued = zerr.New("package already queued or active")

	// ErrResourcesExhausted is returned when a version's resource demand
	// exceeds the configured ceilings and could never be admitted. Demands
	// that merely have to wait for running builds are deferred, not failed.
	ErrResourcesExhausted = zerr.New("resource budget exhausted")

	// ErrCheckpointIntegrity is returned when a checkpoint fails checksum or
	// format-version verification.
	ErrCheckpointIntegrity = zerr.New("checkpoint integrity verification failed")

	// ErrCheckpointNotFound is returned when no checkpoint exists for the
	// requested identifier or package.
	ErrCheckpointNotFound = zerr.New("checkpoint not found")

	// ErrBuildFailed is returned when the build executor reports a failure.
	ErrBuildFailed = zerr.New("build execution failed")

	// ErrNotRequeueable is returned when requeue is requested for a version
	// that is not failed or blocked.
	ErrNotRequeueable = zerr.New("only failed or blocked versions can be requeued")

	// ErrInvalidTransition is returned when a status change is not allowed by
	// the lifecycle state machine.
	ErrInvalidTransition = zerr.New("invalid status transition")

	// ErrUnknownStatus is returned when a stored status value is not a known
	// lifecycle state.
	ErrUnknownStatus = zerr.New("unknown status")

	// ErrUnknownDependencyKind is returned when a stored dependency kind is
	// not recognized.
	ErrUnknownDependencyKind = zerr.New("unknown dependency kind")
)
