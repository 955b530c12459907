package main

import "testing"

func TestCompareTags_Semver(t *testing.T) {
	if CompareTags("v1.2.3", "v1.2.4") >= 0 {
		t.Error("expected v1.2.3 < v1.2.4")
	}
	if CompareTags("v2.0.0", "v1.9.9") <= 0 {
		t.Error("expected v2.0.0 > v1.9.9")
	}
	if CompareTags("v1.0.0", "v1.0.0") != 0 {
		t.Error("expected equal versions to compare equal")
	}
}

func TestCompareTags_PrereleaseLowerThanRelease(t *testing.T) {
	if CompareTags("v1.0.0-rc.1", "v1.0.0") >= 0 {
		t.Error("expected prerelease to compare lower than release")
	}
}

func TestCompareTags_NonSemverLowerThanSemver(t *testing.T) {
	if CompareTags("unstable", "v0.0.1") >= 0 {
		t.Error("expected non-semver string to compare lower than any semver tag")
	}
}

func TestFindLatest(t *testing.T) {
	tags := []string{"v1.0.0", "v2.1.0", "v1.9.9", "not-a-version"}
	if got := FindLatest(tags); got != "v2.1.0" {
		t.Errorf("expected v2.1.0, got %q", got)
	}
}

func TestFindLatest_NoneParse(t *testing.T) {
	if got := FindLatest([]string{"foo", "bar"}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestClassifyBump(t *testing.T) {
	cases := []struct {
		current, latest string
		want             BumpKind
	}{
		{"v1.0.0", "v2.0.0", BumpMajor},
		{"v1.0.0", "v1.1.0", BumpMinor},
		{"v1.0.0", "v1.0.1", BumpPatch},
		{"v1.0.0", "v1.0.0", BumpUpToDate},
	}
	for _, c := range cases {
		if got := ClassifyBump(c.current, c.latest); got != c.want {
			t.Errorf("ClassifyBump(%q, %q) = %q, want %q", c.current, c.latest, got, c.want)
		}
	}
}
