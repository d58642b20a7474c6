// Package resolver turns declared dependency edges into a cycle-free,
// level-partitioned build order.
package resolver

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// DefaultMaxDepth bounds the transitive walk performed before a new edge is
// accepted. Exceeding the bound is treated as a conservative cycle detection,
// never as a silent pass.
const DefaultMaxDepth = 50

// Resolver computes build levels over the blocking dependency graph.
type Resolver struct {
	maxDepth int
}

// New creates a Resolver. A non-positive maxDepth selects DefaultMaxDepth.
func New(maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{maxDepth: maxDepth}
}

// Level groups package versions that have no dependency relationship with one
// another and may therefore build concurrently.
type Level struct {
	Index    int
	Versions []*domain.PackageVersion
}

// Resolve partitions the registered versions into an ordered sequence of
// levels: a version's level is 1 + the maximum level of its blocking
// dependencies, or 0 when it has none. Absent optional dependencies are
// skipped; a blocking requirement with no registered satisfying version is a
// hard error before any build starts.
func (r *Resolver) Resolve(versions []*domain.PackageVersion) ([]Level, error) {
	byPackage := make(map[string][]*domain.PackageVersion)
	for _, pv := range versions {
		byPackage[pv.Package] = append(byPackage[pv.Package], pv)
	}

	nodes := make(map[string]*domain.PackageVersion, len(versions))
	deps := make(map[string][]string, len(versions))
	dependents := make(map[string][]string)

	for _, pv := range versions {
		nodes[pv.Ref()] = pv
	}

	for _, pv := range versions {
		for _, req := range pv.Requirements {
			best := highestSatisfying(byPackage[req.Package], req.Constraint)
			if best == nil {
				if !req.Kind.Blocking() {
					continue
				}
				werr := zerr.With(domain.ErrUnsatisfiedDependency, "package", pv.Ref())
				werr = zerr.With(werr, "requires", req.Package)
				return nil, zerr.With(werr, "constraint", req.Constraint.String())
			}
			if !req.Kind.Blocking() {
				continue
			}
			deps[pv.Ref()] = append(deps[pv.Ref()], best.Ref())
			dependents[best.Ref()] = append(dependents[best.Ref()], pv.Ref())
		}
	}

	// Longest-path layering over a ready queue: a node is leveled once all
	// its dependencies are leveled, giving O(V+E).
	inDegree := make(map[string]int, len(nodes))
	level := make(map[string]int, len(nodes))
	var ready []string
	for ref := range nodes {
		inDegree[ref] = len(deps[ref])
		if inDegree[ref] == 0 {
			ready = append(ready, ref)
		}
	}
	slices.Sort(ready)

	processed := 0
	for len(ready) > 0 {
		ref := ready[0]
		ready = ready[1:]
		processed++

		for _, dep := range dependents[ref] {
			if next := level[ref] + 1; next > level[dep] {
				level[dep] = next
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if processed < len(nodes) {
		return nil, r.cycleAmongUnleveled(nodes, deps, inDegree)
	}

	maxLevel := 0
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([]Level, maxLevel+1)
	for i := range levels {
		levels[i].Index = i
	}
	for ref, l := range level {
		levels[l].Versions = append(levels[l].Versions, nodes[ref])
	}
	for i := range levels {
		slices.SortFunc(levels[i].Versions, func(a, b *domain.PackageVersion) int {
			return strings.Compare(a.Ref(), b.Ref())
		})
	}

	return levels, nil
}

// cycleAmongUnleveled extracts one concrete cycle path from the nodes the
// ready queue never reached.
func (r *Resolver) cycleAmongUnleveled(nodes map[string]*domain.PackageVersion, deps map[string][]string, inDegree map[string]int) error {
	visited := make(map[string]int) // 0: unvisited, 1: visiting, 2: done
	var path []string

	var visit func(ref string) error
	visit = func(ref string) error {
		visited[ref] = 1
		path = append(path, ref)
		for _, dep := range deps[ref] {
			switch visited[dep] {
			case 1:
				return cycleError(path, dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visited[ref] = 2
		path = path[:len(path)-1]
		return nil
	}

	refs := make([]string, 0, len(nodes))
	for ref := range nodes {
		if inDegree[ref] > 0 {
			refs = append(refs, ref)
		}
	}
	slices.Sort(refs)

	for _, ref := range refs {
		if visited[ref] == 0 {
			if err := visit(ref); err != nil {
				return err
			}
		}
	}

	// Unreachable for graphs the ready queue could not drain, kept as a
	// conservative fallback.
	return domain.ErrCycleDetected
}

// CheckEdge walks the required package's existing transitive blocking closure
// and rejects the candidate edge dependent -> required when the dependent
// already appears in that closure. The walk is depth-bounded; exceeding the
// bound rejects the edge conservatively.
func (r *Resolver) CheckEdge(versions []*domain.PackageVersion, dependent, required string) error {
	adj := make(map[string][]string)
	for _, pv := range versions {
		for _, req := range pv.Requirements {
			if req.Kind.Blocking() {
				adj[pv.Package] = append(adj[pv.Package], req.Package)
			}
		}
	}

	visited := make(map[string]bool)
	var walk func(pkg string, depth int, path []string) error
	walk = func(pkg string, depth int, path []string) error {
		if depth > r.maxDepth {
			werr := zerr.With(domain.ErrCycleDetected, "package", dependent)
			return zerr.With(werr, "reason", "dependency walk exceeded depth bound")
		}
		if pkg == dependent {
			cycle := dependent + " -> " + strings.Join(path, " -> ")
			return zerr.With(domain.ErrCycleDetected, "cycle", cycle)
		}
		if visited[pkg] {
			return nil
		}
		visited[pkg] = true
		for _, next := range adj[pkg] {
			if err := walk(next, depth+1, append(path, next)); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(required, 1, []string{required})
}

// cycleError builds an error carrying the full cycle path, starting and
// ending at the repeated node.
func cycleError(path []string, repeat string) error {
	start := 0
	for i, node := range path {
		if node == repeat {
			start = i
			break
		}
	}
	cycle := strings.Join(path[start:], " -> ") + " -> " + repeat
	return zerr.With(domain.ErrCycleDetected, "cycle", cycle)
}

// highestSatisfying picks the greatest registered version that satisfies the
// constraint, or nil when none does.
func highestSatisfying(candidates []*domain.PackageVersion, c domain.Constraint) *domain.PackageVersion {
	var best *domain.PackageVersion
	var bestVer *semver.Version
	for _, pv := range candidates {
		if !c.Satisfies(pv.Version) {
			continue
		}
		v, err := semver.NewVersion(pv.Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(bestVer) {
			best = pv
			bestVer = v
		}
	}
	return best
}
