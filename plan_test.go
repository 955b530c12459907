package main

import (
	"os"
	"strings"
	"testing"
)

func newTestManifest(deps map[string]string) *Manifest {
	m := &Manifest{Dependencies: map[string]*Dependency{}}
	for name, ref := range deps {
		m.Dependencies[name] = &Dependency{Name: name, Ref: ref, shortForm: true}
	}
	return m
}

func TestBuildPlan_FetchWhenNoLock(t *testing.T) {
	m := newTestManifest(map[string]string{"acme/core": "v1.2.3"})
	plan := BuildPlan(m, nil, NewPackageCache(t.TempDir()))

	if len(plan) != 1 || plan[0].Action != ActionFetch {
		t.Fatalf("expected single fetch action, got %+v", plan)
	}
}

func TestBuildPlan_FetchWhenRefChanged(t *testing.T) {
	m := newTestManifest(map[string]string{"acme/core": "v1.3.0"})
	lock := NewLock()
	lock.Dependencies["acme/core"] = &LockedDependency{Ref: "v1.2.3", Commit: strings.Repeat("a", 40)}

	plan := BuildPlan(m, lock, NewPackageCache(t.TempDir()))
	if plan[0].Action != ActionFetch {
		t.Errorf("expected fetch when ref changed, got %q", plan[0].Action)
	}
}

func TestBuildPlan_ReuseWhenCached(t *testing.T) {
	m := newTestManifest(map[string]string{"acme/core": "v1.2.3"})
	commit := strings.Repeat("a", 40)
	lock := NewLock()
	lock.Dependencies["acme/core"] = &LockedDependency{Ref: "v1.2.3", Commit: commit}

	workspace := t.TempDir()
	cache := NewPackageCache(workspace)
	seedCacheDir(t, cache, "acme", "core", commit)

	plan := BuildPlan(m, lock, cache)
	if plan[0].Action != ActionReuse {
		t.Errorf("expected reuse, got %q", plan[0].Action)
	}
}

func TestBuildPlan_ResolveWhenCacheDirPresentButUnverifiable(t *testing.T) {
	m := newTestManifest(map[string]string{"acme/core": "v1.2.3"})
	commit := strings.Repeat("a", 40)
	lock := NewLock()
	lock.Dependencies["acme/core"] = &LockedDependency{Ref: "v1.2.3", Commit: commit}

	workspace := t.TempDir()
	cache := NewPackageCache(workspace)
	// Directory exists but carries no metadata/archive sidecars (e.g. a
	// crashed extraction): cache.Has alone would wrongly say "present".
	if err := os.MkdirAll(cache.packageDir("acme", "core", commit), 0755); err != nil {
		t.Fatalf("seeding bare cache dir: %v", err)
	}

	plan := BuildPlan(m, lock, cache)
	if plan[0].Action != ActionResolve {
		t.Errorf("expected resolve for an unverifiable cache dir, got %q", plan[0].Action)
	}
}

func TestBuildPlan_ResolveWhenCacheMissing(t *testing.T) {
	m := newTestManifest(map[string]string{"acme/core": "v1.2.3"})
	lock := NewLock()
	lock.Dependencies["acme/core"] = &LockedDependency{Ref: "v1.2.3", Commit: strings.Repeat("a", 40)}

	plan := BuildPlan(m, lock, NewPackageCache(t.TempDir()))
	if plan[0].Action != ActionResolve {
		t.Errorf("expected resolve, got %q", plan[0].Action)
	}
}

func TestCheckFrozenLock_FailsOnDrift(t *testing.T) {
	items := []PlanItem{{Desired: DesiredPackage{Name: "acme/core"}, Action: ActionFetch}}
	err := checkFrozenLock(items, true)
	if _, ok := err.(*ManifestDriftError); !ok {
		t.Fatalf("expected *ManifestDriftError, got %T: %v", err, err)
	}
}

func TestCheckFrozenLock_PassesWhenAllReuse(t *testing.T) {
	items := []PlanItem{{Desired: DesiredPackage{Name: "acme/core"}, Action: ActionReuse}}
	if err := checkFrozenLock(items, true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckFrozenLock_OffByDefault(t *testing.T) {
	items := []PlanItem{{Desired: DesiredPackage{Name: "acme/core"}, Action: ActionFetch}}
	if err := checkFrozenLock(items, false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// seedCacheDir plants a cache entry that verifies cleanly: the directory,
// its archive sidecar, and matching metadata.
func seedCacheDir(t *testing.T, cache *PackageCache, owner, repo, commit string) {
	t.Helper()
	dir := cache.packageDir(owner, repo, commit)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("seeding cache dir: %v", err)
	}
	data := []byte("seeded tarball bytes for " + owner + "/" + repo)
	if err := cache.PutArchive(owner, repo, commit, data); err != nil {
		t.Fatalf("seeding archive sidecar: %v", err)
	}
	meta := CacheMetadata{Integrity: ComputeIntegrity(data), Resolved: "https://example.com/tarball", CommitSha: commit}
	if err := cache.PutMetadata(owner, repo, commit, meta); err != nil {
		t.Fatalf("seeding metadata sidecar: %v", err)
	}
}
