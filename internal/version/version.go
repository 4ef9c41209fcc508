// Package version holds the build version of send2crm and the semantic
// version helpers used to compare snippet release tags.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// StripV removes a single leading "v" or "V" and surrounding whitespace, so that
// the tag "v1.21.0" and the stored setting "1.21.0" name the same version.
func StripV(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 0 && (v[0] == 'v' || v[0] == 'V') {
		return v[1:]
	}
	return v
}

// FormatVersion returns a display-friendly version string. For normal versions
// it ensures a "v" prefix (e.g. "0.3.0" → "v0.3.0"). Special values like
// "dev" and empty strings are returned as-is.
func FormatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// Tag builds the repository tag for version v using prefix, e.g. Tag("v", "1.2.0") = "v1.2.0".
func Tag(prefix, v string) string {
	return prefix + StripV(v)
}

// Valid reports whether v (with or without a leading "v") is a semantic version
// of the form major[.minor[.patch]][-prerelease][+build].
func Valid(v string) bool {
	return semver.IsValid(canonicalInput(v))
}

// Compare returns -1, 0 or +1 as a is lower than, equal to or higher than b
// by semantic-version precedence. Either side may carry a leading "v".
func Compare(a, b string) (int, error) {
	ca, cb := canonicalInput(a), canonicalInput(b)
	if !semver.IsValid(ca) {
		return 0, fmt.Errorf("version: %q is not a semantic version", a)
	}
	if !semver.IsValid(cb) {
		return 0, fmt.Errorf("version: %q is not a semantic version", b)
	}
	return semver.Compare(ca, cb), nil
}

// AtLeast reports whether v >= minimum. An empty minimum accepts every valid version.
func AtLeast(v, minimum string) (bool, error) {
	if strings.TrimSpace(minimum) == "" {
		if !Valid(v) {
			return false, fmt.Errorf("version: %q is not a semantic version", v)
		}
		return true, nil
	}
	cmp, err := Compare(v, minimum)
	if err != nil {
		return false, err
	}
	return cmp >= 0, nil
}

func canonicalInput(v string) string {
	return "v" + StripV(v)
}
