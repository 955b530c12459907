package main

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// BumpKind classifies the size of a version change.
type BumpKind string

const (
	BumpMajor    BumpKind = "major"
	BumpMinor    BumpKind = "minor"
	BumpPatch    BumpKind = "patch"
	BumpUpToDate BumpKind = "up-to-date"
)

// CompareTags orders two tag strings. Non-semver strings always compare as
// lower than any semver string; between two non-semver strings the ordering
// is lexicographic.
func CompareTags(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		if a == b {
			return 0
		}
		if a < b {
			return -1
		}
		return 1
	}
}

// FindLatest returns the largest semver tag among tags, or "" if none parse
// as semver.
func FindLatest(tags []string) string {
	var versions semver.Collection
	byRaw := map[*semver.Version]string{}
	for _, t := range tags {
		v, err := semver.NewVersion(t)
		if err != nil {
			continue
		}
		versions = append(versions, v)
		byRaw[v] = t
	}
	if len(versions) == 0 {
		return ""
	}
	sort.Sort(versions)
	return byRaw[versions[len(versions)-1]]
}

// ClassifyBump compares current against latest and classifies the size of
// the change. Non-semver inputs always classify as BumpMajor relative to a
// semver latest, since CompareTags treats them as lower than any release.
func ClassifyBump(current, latest string) BumpKind {
	cv, errC := semver.NewVersion(current)
	lv, errL := semver.NewVersion(latest)
	if errC != nil || errL != nil {
		if current == latest {
			return BumpUpToDate
		}
		return BumpMajor
	}
	if cv.Equal(lv) {
		return BumpUpToDate
	}
	switch {
	case cv.Major() != lv.Major():
		return BumpMajor
	case cv.Minor() != lv.Minor():
		return BumpMinor
	default:
		return BumpPatch
	}
}
