package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Package is a named unit of the distribution. A package is created the first
// time any declaration references it and is never deleted, only superseded by
// newer versions.
type Package struct {
	Name string `json:"name"`
}

// BuildRequirement is one declared dependency of a package version.
type BuildRequirement struct {
	Package    string         `json:"package"`
	Constraint Constraint     `json:"constraint"`
	Kind       DependencyKind `json:"kind"`
}

// PackageVersion is a single buildable version of a package together with its
// declared requirements and resource demand.
type PackageVersion struct {
	Package      string             `json:"package"`
	Version      string             `json:"version"`
	Status       Status             `json:"status"`
	Requirements []BuildRequirement `json:"requirements,omitempty"`

	// RAMMB and CPUCores are the reservation this build claims at dispatch.
	// Zero means "use the configured default".
	RAMMB    int `json:"ram_mb,omitempty"`
	CPUCores int `json:"cpu_cores,omitempty"`
}

// Ref returns the canonical "name@version" reference for the version.
func (pv *PackageVersion) Ref() string {
	return Ref(pv.Package, pv.Version)
}

// Validate checks the declaration before it reaches the persistence layer.
// Constraints are already parsed by construction; this guards identity,
// version syntax and dependency kinds.
func (pv *PackageVersion) Validate() error {
	if pv.Package == "" {
		return zerr.New("package name is empty")
	}
	if _, err := semver.NewVersion(pv.Version); err != nil {
		werr := zerr.With(zerr.New("invalid package version"), "package", pv.Package)
		return zerr.With(werr, "version", pv.Version)
	}
	for _, req := range pv.Requirements {
		if req.Package == "" {
			return zerr.With(zerr.New("requirement names no package"), "package", pv.Package)
		}
		if req.Package == pv.Package && req.Kind.Blocking() {
			return zerr.With(ErrCycleDetected, "cycle", pv.Package+" -> "+pv.Package)
		}
		if !req.Kind.Valid() {
			return zerr.With(ErrUnknownDependencyKind, "kind", req.Kind.String())
		}
		if req.Constraint.IsZero() {
			return zerr.With(ErrInvalidConstraint, "package", req.Package)
		}
	}
	if pv.RAMMB < 0 || pv.CPUCores < 0 {
		return zerr.With(zerr.New("negative resource demand"), "package", pv.Package)
	}
	return nil
}

// BlockingRequirements returns the requirements that gate dispatch.
func (pv *PackageVersion) BlockingRequirements() []BuildRequirement {
	var out []BuildRequirement
	for _, req := range pv.Requirements {
		if req.Kind.Blocking() {
			out = append(out, req)
		}
	}
	return out
}

// Ref builds the canonical "name@version" reference.
func Ref(name, version string) string {
	return name + "@" + version
}

// SplitRef parses a "name@version" reference.
func SplitRef(ref string) (name, version string, err error) {
	name, version, ok := strings.Cut(ref, "@")
	if !ok || name == "" || version == "" {
		return "", "", zerr.With(zerr.New("reference must have the form name@version"), "ref", ref)
	}
	return name, version, nil
}
