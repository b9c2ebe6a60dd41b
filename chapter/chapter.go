// Package chapter implements the canonical chapter identifier: sanitizing
// raw extracted strings, ordering them, and rejecting implausible values.
package chapter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is matched by every error returned from Sanitize.
var ErrMalformed = errors.New("malformed chapter identifier")

// MalformedError reports the raw input that could not be sanitized.
type MalformedError struct {
	Raw    string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("chapter: %q: %s", e.Raw, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// Identifier is the comparable (major, minor) form of a chapter number.
// Minor is the integer value of the fractional digits, so "10.5" is (10, 5).
type Identifier struct {
	Major int
	Minor int
}

// Invalid is the sentinel for a missing or unparsable identifier.
// It compares below every valid identifier.
var Invalid = Identifier{Major: -1, Minor: -1}

// Plausibility limits for the integer part of a candidate.
const (
	maxIntegerDigits = 4
	maxMajor         = 1000
)

// Compare orders two identifiers lexicographically on (Major, Minor).
func (id Identifier) Compare(other Identifier) int {
	switch {
	case id.Major < other.Major:
		return -1
	case id.Major > other.Major:
		return 1
	case id.Minor < other.Minor:
		return -1
	case id.Minor > other.Minor:
		return 1
	}
	return 0
}

func (id Identifier) String() string {
	if id == Invalid {
		return "?"
	}
	if id.Minor == 0 {
		return strconv.Itoa(id.Major)
	}
	return fmt.Sprintf("%d.%d", id.Major, id.Minor)
}

// Sanitize normalizes a raw chapter string. Both "." and "," act as the
// fractional separator and the result always uses ".". Leading zeros of
// the integer part and trailing zeros of the fraction are removed, and an
// empty fraction drops the separator: "007.10" -> "7.1", "12.0" -> "12".
func Sanitize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &MalformedError{Raw: raw, Reason: "empty"}
	}

	intPart, fracPart, hasFrac := splitFraction(s)
	if !isDigits(intPart) {
		return "", &MalformedError{Raw: raw, Reason: "integer part is not numeric"}
	}
	if hasFrac && fracPart != "" && !isDigits(fracPart) {
		return "", &MalformedError{Raw: raw, Reason: "fractional part is not numeric"}
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// Parse converts a chapter string into its Identifier. Anything that is not
// a valid number maps to Invalid.
func Parse(s string) Identifier {
	s = strings.TrimSpace(s)
	if s == "" {
		return Invalid
	}
	intPart, fracPart, hasFrac := splitFraction(s)
	if !isDigits(intPart) {
		return Invalid
	}
	major, err := strconv.Atoi(intPart)
	if err != nil {
		return Invalid
	}
	if !hasFrac || fracPart == "" {
		return Identifier{Major: major}
	}
	if !isDigits(fracPart) {
		return Invalid
	}
	minor, err := strconv.Atoi(fracPart)
	if err != nil {
		return Invalid
	}
	return Identifier{Major: major, Minor: minor}
}

// Compare orders two chapter strings by their parsed identifiers.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// IsPlausible rejects candidates whose integer part is longer than four
// digits or greater than 1000. Post IDs and pagination counters that leak
// into chapter links are the usual source of such values.
func IsPlausible(candidate string) bool {
	intPart, _, _ := splitFraction(strings.TrimSpace(candidate))
	if !isDigits(intPart) || len(intPart) > maxIntegerDigits {
		return false
	}
	n, err := strconv.Atoi(intPart)
	if err != nil {
		return false
	}
	return n <= maxMajor
}

// Max returns the greatest candidate by Compare. The second result is false
// for an empty slice.
func Max(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if Compare(c, best) > 0 {
			best = c
		}
	}
	return best, true
}

func splitFraction(s string) (intPart, fracPart string, ok bool) {
	if i := strings.IndexAny(s, ".,"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
