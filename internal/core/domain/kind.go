package domain

import "go.trai.ch/zerr"

// DependencyKind classifies a declared build requirement.
type DependencyKind string

const (
	// KindRequired must be completed before the dependent may build.
	KindRequired DependencyKind = "required"
	// KindOptional is used when present but its absence never blocks a build.
	KindOptional DependencyKind = "optional"
	// KindBuildTime must be completed before the dependent may build, but is
	// not needed at runtime.
	KindBuildTime DependencyKind = "build-time"
	// KindDevOnly is only relevant for development builds; absence never blocks.
	KindDevOnly DependencyKind = "dev-only"
)

// Valid reports whether k is a known dependency kind.
func (k DependencyKind) Valid() bool {
	switch k {
	case KindRequired, KindOptional, KindBuildTime, KindDevOnly:
		return true
	}
	return false
}

// Blocking reports whether an unmet requirement of this kind blocks dispatch.
// Only blocking kinds participate in cycle detection and level assignment.
func (k DependencyKind) Blocking() bool {
	return k == KindRequired || k == KindBuildTime
}

// String returns the kind as stored in the persistence layer.
func (k DependencyKind) String() string { return string(k) }

// ParseDependencyKind converts a stored string into a DependencyKind.
func ParseDependencyKind(raw string) (DependencyKind, error) {
	k := DependencyKind(raw)
	if !k.Valid() {
		return "", zerr.With(ErrUnknownDependencyKind, "kind", raw)
	}
	return k, nil
}
