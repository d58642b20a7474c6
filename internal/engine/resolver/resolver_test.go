package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/resolver"
)

func pv(name, version string, reqs ...domain.BuildRequirement) *domain.PackageVersion {
	return &domain.PackageVersion{Package: name, Version: version, Requirements: reqs}
}

func req(pkg, constraint string, kind domain.DependencyKind) domain.BuildRequirement {
	return domain.BuildRequirement{
		Package:    pkg,
		Constraint: domain.MustConstraint(constraint),
		Kind:       kind,
	}
}

func refs(level resolver.Level) []string {
	out := make([]string, 0, len(level.Versions))
	for _, v := range level.Versions {
		out = append(out, v.Ref())
	}
	return out
}

func TestResolve_LevelPartitioning(t *testing.T) {
	r := resolver.New(0)

	// core has no dependencies; libssl and libcrypto both build on core and
	// may run concurrently; app needs both.
	versions := []*domain.PackageVersion{
		pv("core", "1.0.0"),
		pv("libssl", "3.0.0", req("core", ">=1.0.0", domain.KindRequired)),
		pv("libcrypto", "3.0.0", req("core", ">=1.0.0", domain.KindBuildTime)),
		pv("app", "2.0.0",
			req("libssl", ">=3.0.0", domain.KindRequired),
			req("libcrypto", ">=3.0.0", domain.KindRequired),
		),
	}

	levels, err := r.Resolve(versions)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	assert.Equal(t, []string{"core@1.0.0"}, refs(levels[0]))
	assert.Equal(t, []string{"libcrypto@3.0.0", "libssl@3.0.0"}, refs(levels[1]))
	assert.Equal(t, []string{"app@2.0.0"}, refs(levels[2]))
}

func TestResolve_NonBlockingKindsDoNotOrder(t *testing.T) {
	r := resolver.New(0)

	// Optional and dev-only edges never gate builds.
	versions := []*domain.PackageVersion{
		pv("docs", "1.0.0", req("app", "*", domain.KindDevOnly)),
		pv("app", "1.0.0", req("theme", "*", domain.KindOptional)),
	}

	levels, err := r.Resolve(versions)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Len(t, levels[0].Versions, 2)
}

func TestResolve_CycleRejectedWithPath(t *testing.T) {
	r := resolver.New(0)

	versions := []*domain.PackageVersion{
		pv("a", "1.0.0", req("b", ">=1.0.0", domain.KindRequired)),
		pv("b", "1.0.0", req("c", ">=1.0.0", domain.KindRequired)),
		pv("c", "1.0.0", req("a", ">=1.0.0", domain.KindRequired)),
	}

	_, err := r.Resolve(versions)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestResolve_UnsatisfiedBlockingRequirement(t *testing.T) {
	r := resolver.New(0)

	// binutils 2.39 is registered, but gcc demands >=2.40.
	versions := []*domain.PackageVersion{
		pv("binutils", "2.39.0"),
		pv("gcc", "13.2.0", req("binutils", ">=2.40", domain.KindRequired)),
	}

	_, err := r.Resolve(versions)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsatisfiedDependency)
}

func TestResolve_PicksHighestSatisfyingVersion(t *testing.T) {
	r := resolver.New(0)

	versions := []*domain.PackageVersion{
		pv("zlib", "1.2.13"),
		pv("zlib", "1.3.0"),
		pv("png", "1.6.40", req("zlib", ">=1.2.0, <2.0.0", domain.KindRequired)),
	}

	levels, err := r.Resolve(versions)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	// Both zlib versions sit at level 0; png orders after the highest match.
	assert.Equal(t, []string{"zlib@1.2.13", "zlib@1.3.0"}, refs(levels[0]))
	assert.Equal(t, []string{"png@1.6.40"}, refs(levels[1]))
}

func TestCheckEdge_RejectsClosingACycle(t *testing.T) {
	r := resolver.New(0)

	versions := []*domain.PackageVersion{
		pv("a", "1.0.0"),
		pv("b", "1.0.0", req("a", ">=1.0.0", domain.KindRequired)),
		pv("c", "1.0.0", req("b", ">=1.0.0", domain.KindRequired)),
	}

	// a -> c would close a -> c -> b -> a.
	err := r.CheckEdge(versions, "a", "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)

	// d -> c introduces no cycle.
	assert.NoError(t, r.CheckEdge(versions, "d", "c"))
}

func TestCheckEdge_DepthBoundRejectsConservatively(t *testing.T) {
	r := resolver.New(2)

	versions := []*domain.PackageVersion{
		pv("p1", "1.0.0", req("p2", "*", domain.KindRequired)),
		pv("p2", "1.0.0", req("p3", "*", domain.KindRequired)),
		pv("p3", "1.0.0", req("p4", "*", domain.KindRequired)),
		pv("p4", "1.0.0"),
	}

	// The walk from p1 exceeds the bound before proving acyclicity, so the
	// edge is refused rather than trusted.
	err := r.CheckEdge(versions, "p5", "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestCheckEdge_IgnoresNonBlockingEdges(t *testing.T) {
	r := resolver.New(0)

	versions := []*domain.PackageVersion{
		pv("a", "1.0.0"),
		pv("b", "1.0.0", req("a", "*", domain.KindOptional)),
	}

	// b's optional edge on a does not participate in cycle detection.
	assert.NoError(t, r.CheckEdge(versions, "a", "b"))
}
