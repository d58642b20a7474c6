package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Constraint is a parsed version constraint. Constraints are validated at
// registration time so dispatch never sees an unparsable range.
type Constraint struct {
	raw string
	c   *semver.Constraints
}

// ParseConstraint parses a constraint expression such as ">=1.2.0, <2.0.0".
// An empty expression means "any version".
func ParseConstraint(raw string) (Constraint, error) {
	expr := strings.TrimSpace(raw)
	if expr == "" {
		expr = "*"
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		werr := zerr.With(ErrInvalidConstraint, "constraint", raw)
		return Constraint{}, zerr.With(werr, "cause", err.Error())
	}
	return Constraint{raw: expr, c: c}, nil
}

// MustConstraint is a test helper that panics on parse failure.
func MustConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Satisfies reports whether the given version falls inside the range.
// Versions that do not parse never satisfy any constraint.
func (c Constraint) Satisfies(version string) bool {
	if c.c == nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.c.Check(v)
}

// String returns the canonical constraint expression.
func (c Constraint) String() string { return c.raw }

// IsZero reports whether the constraint was never parsed.
func (c Constraint) IsZero() bool { return c.c == nil }

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
