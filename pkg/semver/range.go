// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"regexp"
	"strconv"
	"strings"
)

type (
	// Range is a version range: a union of comparator sets, each of which is
	// an intersection of comparators. "^1.2.0 || >=3.0.0 <4.0.0" has two sets.
	Range struct {
		sets     [][]comparator
		Original string
	}

	// comparator is a desugared bound such as ">=1.2.0". An empty op matches
	// every version.
	comparator struct {
		op      string
		version Version
	}

	// partial is a version whose minor or patch may be a wildcard.
	partial struct {
		major, minor, patch int
		minorSet, patchSet  bool
		prerelease          string
	}
)

// comparatorRegex matches a single comparator, allowing x-range wildcards.
var comparatorRegex = regexp.MustCompile(`^(~|\^|>=|<=|>|<|=)?v?(\d+|[xX*])(?:\.(\d+|[xX*]))?(?:\.(\d+|[xX*]))?(?:-([0-9A-Za-z\-\.]+))?(?:\+[0-9A-Za-z\-\.]+)?$`)

// ParseRange parses a range expression. Supported forms: exact versions,
// the operators =, ^, ~, >, >=, <, <=, x-ranges (1.x, 1.2.*, *), hyphen
// ranges (1.0.0 - 2.0.0), space-separated intersections and || unions.
// An empty string is equivalent to "*".
func ParseRange(s string) (*Range, error) {
	rng := &Range{Original: s}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		rng.sets = [][]comparator{{}}
		return rng, nil
	}

	for _, set := range strings.Split(trimmed, "||") {
		set = strings.TrimSpace(set)
		if set == "" {
			return nil, &InvalidRangeError{Value: s, Reason: "empty alternative"}
		}

		comps, err := parseSet(set)
		if err != nil {
			return nil, &InvalidRangeError{Value: s, Reason: err.Error()}
		}
		rng.sets = append(rng.sets, comps)
	}

	return rng, nil
}

// IsValidRange reports whether s parses as a non-empty range expression.
func IsValidRange(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := ParseRange(s)
	return err == nil
}

// String returns the range as originally written.
func (r *Range) String() string { return r.Original }

// Satisfies reports whether v falls within the range.
func (r *Range) Satisfies(v *Version) bool {
	for _, set := range r.sets {
		if setMatches(set, v) {
			return true
		}
	}
	return false
}

// MaxSatisfying returns the highest of versions that satisfies the range.
func (r *Range) MaxSatisfying(versions []string) (string, bool) {
	var best *Version
	for _, vs := range versions {
		v, err := ParseVersion(vs)
		if err != nil {
			continue
		}
		if !r.Satisfies(v) {
			continue
		}
		if best == nil || v.Compare(best) > 0 {
			best = v
		}
	}
	if best == nil {
		return "", false
	}
	return best.Original, true
}

// setMatches requires every comparator to match. A prerelease version only
// matches when some comparator of the set names a prerelease of the same
// major.minor.patch, so "^1.0.0" never selects "2.0.0-beta.1".
func setMatches(set []comparator, v *Version) bool {
	for _, c := range set {
		if !c.matches(v) {
			return false
		}
	}
	if v.Prerelease == "" {
		return true
	}
	for _, c := range set {
		cv := c.version
		if c.op != "" && cv.Prerelease != "" &&
			cv.Major == v.Major && cv.Minor == v.Minor && cv.Patch == v.Patch {
			return true
		}
	}
	return false
}

func (c comparator) matches(v *Version) bool {
	cmp := v.Compare(&c.version)
	switch c.op {
	case "":
		return true
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

func parseSet(set string) ([]comparator, error) {
	if lo, hi, ok := strings.Cut(set, " - "); ok {
		return parseHyphen(strings.TrimSpace(lo), strings.TrimSpace(hi))
	}

	var comps []comparator
	for _, field := range strings.Fields(set) {
		c, err := parseComparator(field)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c...)
	}
	return comps, nil
}

func parseHyphen(lo, hi string) ([]comparator, error) {
	low, err := parsePartial(lo)
	if err != nil {
		return nil, err
	}
	high, err := parsePartial(hi)
	if err != nil {
		return nil, err
	}

	comps := []comparator{{op: ">=", version: low.floor()}}
	if high.major < 0 {
		return comps, nil
	}
	if high.exact() {
		return append(comps, comparator{op: "<=", version: high.floor()}), nil
	}
	return append(comps, comparator{op: "<", version: high.nextUnset()}), nil
}

// parseComparator desugars one token into zero, one or two bounds.
func parseComparator(token string) ([]comparator, error) {
	m := comparatorRegex.FindStringSubmatch(token)
	if m == nil {
		return nil, &InvalidRangeError{Value: token, Reason: "invalid comparator"}
	}
	op := m[1]
	p, err := partialFromMatch(m[2], m[3], m[4], m[5])
	if err != nil {
		return nil, err
	}

	if p.major < 0 {
		// "*", "x", ">=*": everything. "<*" and ">*" match nothing.
		if op == "<" || op == ">" {
			return []comparator{{op: "<", version: Version{}}}, nil
		}
		return []comparator{{}}, nil
	}

	low := p.floor()
	switch op {
	case "", "=":
		if p.exact() {
			return []comparator{{op: "=", version: low}}, nil
		}
		return []comparator{{op: ">=", version: low}, {op: "<", version: p.nextUnset()}}, nil
	case "^":
		return []comparator{{op: ">=", version: low}, {op: "<", version: p.caretCeiling()}}, nil
	case "~":
		upper := Version{Major: p.major + 1}
		if p.minorSet {
			upper = Version{Major: p.major, Minor: p.minor + 1}
		}
		return []comparator{{op: ">=", version: low}, {op: "<", version: upper}}, nil
	case ">":
		if p.exact() {
			return []comparator{{op: ">", version: low}}, nil
		}
		return []comparator{{op: ">=", version: p.nextUnset()}}, nil
	case ">=":
		return []comparator{{op: ">=", version: low}}, nil
	case "<":
		return []comparator{{op: "<", version: low}}, nil
	case "<=":
		if p.exact() {
			return []comparator{{op: "<=", version: low}}, nil
		}
		return []comparator{{op: "<", version: p.nextUnset()}}, nil
	}
	return nil, &InvalidRangeError{Value: token, Reason: "unknown operator"}
}

func parsePartial(s string) (partial, error) {
	m := comparatorRegex.FindStringSubmatch(s)
	if m == nil || m[1] != "" {
		return partial{}, &InvalidRangeError{Value: s, Reason: "invalid hyphen bound"}
	}
	return partialFromMatch(m[2], m[3], m[4], m[5])
}

func partialFromMatch(major, minor, patch, pre string) (partial, error) {
	p := partial{major: -1, prerelease: pre}
	if isWildcard(major) {
		return p, nil
	}

	var err error
	if p.major, err = strconv.Atoi(major); err != nil {
		return p, err
	}
	if minor != "" && !isWildcard(minor) {
		if p.minor, err = strconv.Atoi(minor); err != nil {
			return p, err
		}
		p.minorSet = true
	}
	if p.minorSet && patch != "" && !isWildcard(patch) {
		if p.patch, err = strconv.Atoi(patch); err != nil {
			return p, err
		}
		p.patchSet = true
	}
	return p, nil
}

func isWildcard(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

func (p partial) exact() bool { return p.minorSet && p.patchSet }

func (p partial) floor() Version {
	return Version{Major: p.major, Minor: p.minor, Patch: p.patch, Prerelease: p.prerelease}
}

// nextUnset returns the first version past the wildcard part: 1 => 2.0.0, 1.2 => 1.3.0.
func (p partial) nextUnset() Version {
	if !p.minorSet {
		return Version{Major: p.major + 1}
	}
	return Version{Major: p.major, Minor: p.minor + 1}
}

// caretCeiling keeps the left-most non-zero component fixed:
// ^1.2.3 < 2.0.0, ^0.2.3 < 0.3.0, ^0.0.3 < 0.0.4.
func (p partial) caretCeiling() Version {
	switch {
	case p.major != 0 || !p.minorSet:
		return Version{Major: p.major + 1}
	case p.minor != 0 || !p.patchSet:
		return Version{Minor: p.minor + 1}
	default:
		return Version{Patch: p.patch + 1}
	}
}
