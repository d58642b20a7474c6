// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// BuildJob describes one build handed off to the executor.
type BuildJob struct {
	Package string
	Version string

	// WorkingDir is the package's build directory. The executor runs every
	// phase inside it.
	WorkingDir string

	// Environment holds extra variables merged over the process environment.
	Environment map[string]string

	// SkipTests drops the optional test phase.
	SkipTests bool

	// OnPhase, when non-nil, is invoked as each build phase starts.
	OnPhase func(domain.BuildPhase)
}

// BuildExecutor runs the per-package recipe. It is an opaque, possibly slow,
// possibly resource-hungry subprocess as far as the scheduler is concerned.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type BuildExecutor interface {
	// Execute runs the full recipe for the job in its working directory.
	// It returns the tail of the combined build log and an error on failure.
	Execute(ctx context.Context, job *BuildJob) (string, error)
}
