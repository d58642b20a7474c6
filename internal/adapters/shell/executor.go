// Package shell provides the subprocess build executor adapter.
package shell

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// tailLimit bounds how much build output is kept for the build record.
const tailLimit = 4096

// Executor implements ports.BuildExecutor by shelling out to the configured
// recipe runner once per build phase:
//
//	recipe... <phase> <package> <version>
//
// The runner is treated as an opaque subprocess; forge only cares about its
// exit code.
type Executor struct {
	recipe []string
	logger ports.Logger
}

var _ ports.BuildExecutor = (*Executor)(nil)

// NewExecutor creates an executor invoking the given recipe command.
func NewExecutor(recipe []string, logger ports.Logger) *Executor {
	return &Executor{
		recipe: recipe,
		logger: logger,
	}
}

// Execute runs every build phase in order, stopping at the first failure.
// The optional test phase is skipped when the job requests it.
func (e *Executor) Execute(ctx context.Context, job *ports.BuildJob) (string, error) {
	if len(e.recipe) == 0 {
		return "", zerr.New("no recipe command configured")
	}

	tail := &tailBuffer{max: tailLimit}
	for _, phase := range domain.BuildPhases {
		if phase == domain.PhaseTest && job.SkipTests {
			continue
		}
		if job.OnPhase != nil {
			job.OnPhase(phase)
		}
		if err := e.runPhase(ctx, job, phase, tail); err != nil {
			return tail.String(), err
		}
	}
	return tail.String(), nil
}

func (e *Executor) runPhase(ctx context.Context, job *ports.BuildJob, phase domain.BuildPhase, tail io.Writer) error {
	args := append(append([]string{}, e.recipe[1:]...), phase.String(), job.Package, job.Version)
	cmd := exec.CommandContext(ctx, e.recipe[0], args...) //nolint:gosec // recipe command comes from operator config
	cmd.Dir = job.WorkingDir
	cmd.Env = mergeEnvironment(os.Environ(), job.Environment)

	out := io.MultiWriter(&logWriter{logger: e.logger, level: "info"}, tail)
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(&logWriter{logger: e.logger, level: "error"}, tail)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		werr := zerr.With(domain.ErrBuildFailed, "package", domain.Ref(job.Package, job.Version))
		werr = zerr.With(werr, "phase", phase.String())
		return zerr.With(werr, "exit_code", exitCode)
	}
	return nil
}

// mergeEnvironment overlays job-specific variables on the process
// environment.
func mergeEnvironment(sysEnv []string, jobEnv map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv)+len(jobEnv))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range jobEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// logWriter forwards subprocess output lines to the logger.
type logWriter struct {
	logger ports.Logger
	level  string
}

func (w *logWriter) Write(p []byte) (int, error) {
	lines := strings.Split(strings.TrimSuffix(string(p), "\n"), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		if w.level == "error" {
			w.logger.Warn(line)
		} else {
			w.logger.Info(line)
		}
	}
	return len(p), nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
