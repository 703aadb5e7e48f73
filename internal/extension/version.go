package extension

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersionConstraint parses a host API range such as ">=0.22.0" or "<0.1".
func ParseVersionConstraint(constraint string) (*semver.Constraints, error) {
	if strings.TrimSpace(constraint) == "" {
		return nil, errors.New("empty version constraint")
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("parsing constraint %q: %w", constraint, err)
	}
	return c, nil
}

// SatisfiesConstraint reports whether version satisfies constraint.
func SatisfiesConstraint(version string, constraint *semver.Constraints) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parsing version %q: %w", version, err)
	}
	return constraint.Check(v), nil
}

// CompareVersions returns -1, 0 or 1 as v1 is older, equal or newer than v2.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", v1, err)
	}
	b, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", v2, err)
	}
	return a.Compare(b), nil
}

// IsValidVersion reports whether version parses as a semantic version.
func IsValidVersion(version string) bool {
	if version == "" {
		return false
	}
	_, err := semver.NewVersion(version)
	return err == nil
}

// apiCompatible checks apiVersion against a declared engines.hostApi range.
// An empty range is compatible with anything.
func apiCompatible(apiVersion, hostRange string) (bool, error) {
	if strings.TrimSpace(hostRange) == "" {
		return true, nil
	}
	c, err := ParseVersionConstraint(hostRange)
	if err != nil {
		return false, err
	}
	return SatisfiesConstraint(apiVersion, c)
}
