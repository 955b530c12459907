package main

// PlanAction is the per-package decision the Installer makes before
// dispatching work (spec.md §4.H).
type PlanAction string

const (
	ActionReuse   PlanAction = "reuse"
	ActionResolve PlanAction = "resolve"
	ActionFetch   PlanAction = "fetch"
)

// DesiredPackage is what the manifest says a dependency should look like,
// independent of any prior lock state.
type DesiredPackage struct {
	Name   string
	Source string
	Ref    string
	Host   string
}

// PlanItem is one package's resolved action for the current install.
type PlanItem struct {
	Desired      DesiredPackage
	Action       PlanAction
	ExistingLock *LockedDependency
}

// BuildPlan computes the per-package action for every manifest dependency,
// cross-referencing the existing lock and cache. Does not perform any
// network I/O; cache.Verify reads local sidecar files only, never the
// network.
func BuildPlan(manifest *Manifest, lock *Lock, cache *PackageCache) []PlanItem {
	items := make([]PlanItem, 0, len(manifest.Dependencies))

	for name, dep := range manifest.Dependencies {
		desired := DesiredPackage{
			Name:   name,
			Source: dep.EffectiveSource(),
			Ref:    dep.Ref,
			Host:   dep.EffectiveHost(),
		}

		var existing *LockedDependency
		if lock != nil {
			existing = lock.Dependencies[name]
		}

		item := PlanItem{Desired: desired, ExistingLock: existing}

		switch {
		case existing == nil || existing.Ref != desired.Ref:
			item.Action = ActionFetch
		default:
			owner, repo := splitOwnerRepo(desired.Source)
			if _, err := cache.Verify(owner, repo, existing.Commit, name); err == nil {
				item.Action = ActionReuse
			} else {
				// Missing or corrupt/tampered cache entry: either way it
				// can't be trusted as-is, so re-resolve.
				item.Action = ActionResolve
			}
		}

		items = append(items, item)
	}

	return items
}

func splitOwnerRepo(source string) (string, string) {
	for i := 0; i < len(source); i++ {
		if source[i] == '/' {
			return source[:i], source[i+1:]
		}
	}
	return source, ""
}

// checkFrozenLock returns a ManifestDriftError for the first non-reuse item
// when frozen is true, per Open Question (a).
func checkFrozenLock(items []PlanItem, frozen bool) error {
	if !frozen {
		return nil
	}
	for _, item := range items {
		if item.Action != ActionReuse {
			return &ManifestDriftError{Package: item.Desired.Name, Action: string(item.Action)}
		}
	}
	return nil
}
