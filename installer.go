package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
)

// defaultParallelism bounds the install worker pool, matching the
// teacher's "a handful of fixed workers over a channel" shape generalized
// to scale with available CPUs (spec.md §5: default 8).
func defaultParallelism() int {
	n := runtime.NumCPU() * 2
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

// InstallOptions configures a single install call.
type InstallOptions struct {
	Frozen      bool
	Parallelism int
}

// Installer is the orchestrator exposing install/add/remove/update/upgrade/
// outdated/cache-clear. One Installer is constructed per operation against
// a single workspace.
type Installer struct {
	WorkspaceRoot string
	Cache         *PackageCache
	Credentials   *CredentialProvider
	Bus           *ProgressBus
	HostConfig    HostClientConfig

	// hostClientFor is overridable by tests to avoid real network calls.
	hostClientFor func(host string) (HostClient, error)
}

// NewInstaller builds an Installer with the default Host Client factory.
func NewInstaller(workspaceRoot string) *Installer {
	creds := NewCredentialProvider()
	inst := &Installer{
		WorkspaceRoot: workspaceRoot,
		Cache:         NewPackageCache(workspaceRoot),
		Credentials:   creds,
		Bus:           NewProgressBus(nil),
		HostConfig:    DefaultHostClientConfig(),
	}
	inst.hostClientFor = func(host string) (HostClient, error) {
		return NewHostClient(host, inst.HostConfig, inst.Credentials)
	}
	return inst
}

// taskResult is what one worker produces for one plan item.
type taskResult struct {
	name   string
	locked *LockedDependency
	err    error
}

// Install reconciles the lock against the manifest (spec.md §4.H).
func (inst *Installer) Install(ctx context.Context, opts InstallOptions) (*Lock, error) {
	wl := NewWorkspaceLock(inst.WorkspaceRoot)
	if err := wl.Acquire("install"); err != nil {
		return nil, err
	}
	defer wl.Release()

	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	existingLock, err := LoadLock(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	plan := BuildPlan(manifest, existingLock, inst.Cache)

	if err := checkFrozenLock(plan, opts.Frozen); err != nil {
		return nil, err
	}

	names := make([]string, len(plan))
	for i, item := range plan {
		names[i] = item.Desired.Name
	}
	inst.Bus.Start(names)

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism()
	}

	results := inst.runPlan(ctx, plan, parallelism)

	newLock := NewLock()
	var failed bool
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			failed = true
			if firstErr == nil {
				firstErr = r.err
			}
			inst.Bus.PackageError(r.name, r.err)
			continue
		}
		newLock.Dependencies[r.name] = r.locked
	}

	if failed {
		return nil, fmt.Errorf("install failed for one or more packages: %w", firstErr)
	}

	if err := newLock.Save(inst.WorkspaceRoot); err != nil {
		return nil, fmt.Errorf("writing lock: %w", err)
	}

	return newLock, nil
}

// runPlan dispatches plan items across a bounded worker pool. Order inside
// the pool is unspecified; results preserve the plan's original indices so
// callers can sort deterministically afterward.
func (inst *Installer) runPlan(ctx context.Context, plan []PlanItem, parallelism int) []taskResult {
	results := make([]taskResult, len(plan))
	items := make(chan int, len(plan))
	for i := range plan {
		items <- i
	}
	close(items)

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range items {
				results[i] = inst.executePlanItem(ctx, plan[i])
			}
		}()
	}
	wg.Wait()

	return results
}

// executePlanItem performs the resolve/download/verify/extract sequence
// for a single package, never touching shared lock/manifest state.
func (inst *Installer) executePlanItem(ctx context.Context, item PlanItem) taskResult {
	name := item.Desired.Name
	owner, repo := splitOwnerRepo(item.Desired.Source)
	refType := ClassifyRef(item.Desired.Ref)

	if item.Action == ActionReuse {
		if _, err := inst.Cache.Verify(owner, repo, item.ExistingLock.Commit, name); err == nil {
			inst.Bus.PackageComplete(name, true)
			return taskResult{name: name, locked: item.ExistingLock}
		}
		// The plan went stale between BuildPlan and now (cache evicted or
		// corrupted underneath us): fall through and refetch as if this
		// were a resolve.
	}

	client, err := inst.hostClientFor(item.Desired.Host)
	if err != nil {
		return taskResult{name: name, err: err}
	}

	inst.Bus.PackageStart(name, StatusResolving)
	commit, err := client.ResolveRefToCommit(ctx, owner, repo, item.Desired.Ref)
	if err != nil {
		return taskResult{name: name, err: err}
	}

	if meta, err := inst.Cache.Verify(owner, repo, commit, name); err == nil {
		inst.Bus.PackageComplete(name, true)
		return taskResult{name: name, locked: &LockedDependency{
			Ref: item.Desired.Ref, RefType: string(refType),
			Resolved: meta.Resolved, Commit: commit, Integrity: meta.Integrity,
		}}
	}

	inst.Bus.PackageStart(name, StatusDownloading)
	fetched, err := client.FetchTarball(ctx, owner, repo, item.Desired.Ref, name, inst.Bus)
	if err != nil {
		return taskResult{name: name, err: err}
	}
	if fetched.Commit != "" {
		commit = fetched.Commit
	}

	integrity := ComputeIntegrity(fetched.Bytes)

	// A fetch against the same ref as the existing lock entry (cache miss
	// or corruption, not a version bump) already has an expected digest; a
	// mismatch here means the host served different content for a ref
	// that's supposed to be immutable, and is fatal for this package.
	if item.ExistingLock != nil && item.ExistingLock.Ref == item.Desired.Ref {
		if err := VerifyIntegrity(name, item.ExistingLock.Integrity, fetched.Bytes); err != nil {
			return taskResult{name: name, err: err}
		}
	}

	tmpFile, err := writeTempTarball(fetched.Bytes)
	if err != nil {
		return taskResult{name: name, err: &CacheIOError{Path: tmpFile, Err: err}}
	}
	defer os.Remove(tmpFile)

	inst.Bus.PackageStart(name, StatusExtracting)
	if _, err := inst.Cache.Put(owner, repo, commit, tmpFile); err != nil {
		return taskResult{name: name, err: err}
	}

	meta := CacheMetadata{Integrity: integrity, Resolved: fetched.ResolvedURL, CommitSha: commit}
	if err := inst.Cache.PutMetadata(owner, repo, commit, meta); err != nil {
		return taskResult{name: name, err: err}
	}
	if err := inst.Cache.PutArchive(owner, repo, commit, fetched.Bytes); err != nil {
		return taskResult{name: name, err: err}
	}

	inst.Bus.PackageComplete(name, false)
	return taskResult{name: name, locked: &LockedDependency{
		Ref: item.Desired.Ref, RefType: string(refType),
		Resolved: fetched.ResolvedURL, Commit: commit, Integrity: integrity,
	}}
}

func writeTempTarball(data []byte) (string, error) {
	f, err := os.CreateTemp("", "dlang-tarball-*")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Add parses specifier, refuses if already in the manifest, appends it
// short-form, then runs Install.
func (inst *Installer) Add(ctx context.Context, specifier string) (*LockedDependency, error) {
	spec, err := ParseSpecifier(specifier)
	if err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	if err := manifest.AddDependency(spec.Name(), spec.Ref); err != nil {
		return nil, err
	}

	if err := manifest.Save(inst.WorkspaceRoot); err != nil {
		return nil, err
	}

	lock, err := inst.Install(ctx, InstallOptions{})
	if err != nil {
		return nil, err
	}
	return lock.Dependencies[spec.Name()], nil
}

// Remove strips an optional "@ref" suffix, removes name from manifest and
// lock, and deletes its cache directory. Idempotent.
func (inst *Installer) Remove(name string) error {
	wl := NewWorkspaceLock(inst.WorkspaceRoot)
	if err := wl.Acquire("remove"); err != nil {
		return err
	}
	defer wl.Release()

	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return err
	}

	bareName := stripRefSuffix(name)
	owner, repo := splitOwnerRepo(bareName)

	manifest.RemoveDependency(name)
	if err := manifest.Save(inst.WorkspaceRoot); err != nil {
		return err
	}

	lock, err := LoadLock(inst.WorkspaceRoot)
	if err != nil {
		return err
	}
	if lock != nil {
		delete(lock.Dependencies, bareName)
		if err := lock.Save(inst.WorkspaceRoot); err != nil {
			return err
		}
	}

	return inst.Cache.Remove(owner, repo)
}

func stripRefSuffix(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			return name[:i]
		}
	}
	return name
}

// Update refreshes every branch-ref entry in the lock to its current
// commit; tag and commit entries are untouched. Never touches the
// manifest.
func (inst *Installer) Update(ctx context.Context) (*Lock, error) {
	wl := NewWorkspaceLock(inst.WorkspaceRoot)
	if err := wl.Acquire("update"); err != nil {
		return nil, err
	}
	defer wl.Release()

	lock, err := LoadLock(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, fmt.Errorf("no lock file present; run install first")
	}

	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	var branchNames []string
	for name, locked := range lock.Dependencies {
		if locked.RefType == string(RefTypeBranch) {
			branchNames = append(branchNames, name)
		}
	}
	if len(branchNames) == 0 {
		return nil, fmt.Errorf("lock has no branch dependencies to update")
	}
	sort.Strings(branchNames)

	for _, name := range branchNames {
		locked := lock.Dependencies[name]
		dep := manifest.Dependencies[name]
		if dep == nil {
			continue
		}
		owner, repo := splitOwnerRepo(dep.EffectiveSource())

		client, err := inst.hostClientFor(dep.EffectiveHost())
		if err != nil {
			return nil, err
		}
		commit, err := client.ResolveRefToCommit(ctx, owner, repo, locked.Ref)
		if err != nil {
			return nil, err
		}
		if commit == locked.Commit {
			continue
		}

		fetched, err := client.FetchTarball(ctx, owner, repo, locked.Ref, name, inst.Bus)
		if err != nil {
			return nil, err
		}
		integrity := ComputeIntegrity(fetched.Bytes)
		tmp, err := writeTempTarball(fetched.Bytes)
		if err != nil {
			return nil, &CacheIOError{Path: tmp, Err: err}
		}
		if _, err := inst.Cache.Put(owner, repo, commit, tmp); err != nil {
			os.Remove(tmp)
			return nil, err
		}
		os.Remove(tmp)
		if err := inst.Cache.PutMetadata(owner, repo, commit, CacheMetadata{
			Integrity: integrity, Resolved: fetched.ResolvedURL, CommitSha: commit,
		}); err != nil {
			return nil, err
		}
		if err := inst.Cache.PutArchive(owner, repo, commit, fetched.Bytes); err != nil {
			return nil, err
		}

		lock.Dependencies[name] = &LockedDependency{
			Ref: locked.Ref, RefType: locked.RefType,
			Resolved: fetched.ResolvedURL, Commit: commit, Integrity: integrity,
		}
	}

	if err := lock.Save(inst.WorkspaceRoot); err != nil {
		return nil, err
	}
	return lock, nil
}

// OutdatedEntry reports one tag-ref dependency's available upgrade.
type OutdatedEntry struct {
	Name    string
	Current string
	Latest  string
	Bump    BumpKind
}

// Outdated lists available tag upgrades without writing anything.
func (inst *Installer) Outdated(ctx context.Context) ([]OutdatedEntry, error) {
	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	var names []string
	for name := range manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []OutdatedEntry
	for _, name := range names {
		dep := manifest.Dependencies[name]
		if ClassifyRef(dep.Ref) != RefTypeTag {
			continue
		}
		owner, repo := splitOwnerRepo(dep.EffectiveSource())

		client, err := inst.hostClientFor(dep.EffectiveHost())
		if err != nil {
			return nil, err
		}
		tags, err := client.ListTags(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		latest := FindLatest(tags)
		if latest == "" {
			continue
		}
		entries = append(entries, OutdatedEntry{
			Name: name, Current: dep.Ref, Latest: latest,
			Bump: ClassifyBump(dep.Ref, latest),
		})
	}
	return entries, nil
}

// Upgrade with no package name does nothing and returns a nil lock; the
// report-only list form is Outdated. With a package name, it resolves the
// latest tag (or uses an explicit version), rewrites the manifest entry,
// then runs Install.
func (inst *Installer) Upgrade(ctx context.Context, pkg, version string) (*Lock, error) {
	if pkg == "" {
		return nil, nil // callers should use Outdated for the list form
	}

	manifest, err := LoadManifest(inst.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	dep, ok := manifest.Dependencies[pkg]
	if !ok {
		return nil, fmt.Errorf("package %q not found in manifest", pkg)
	}

	newRef := version
	if newRef == "" {
		owner, repo := splitOwnerRepo(dep.EffectiveSource())
		client, err := inst.hostClientFor(dep.EffectiveHost())
		if err != nil {
			return nil, err
		}
		tags, err := client.ListTags(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		newRef = FindLatest(tags)
		if newRef == "" {
			return nil, fmt.Errorf("no semver tags found for %q", pkg)
		}
	}

	dep.Ref = newRef
	if err := manifest.Save(inst.WorkspaceRoot); err != nil {
		return nil, err
	}

	return inst.Install(ctx, InstallOptions{})
}

// CacheClear wipes the local package cache entirely.
func (inst *Installer) CacheClear() error {
	return inst.Cache.Clear()
}
