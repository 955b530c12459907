package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifest_ShortAndLongForm(t *testing.T) {
	data := []byte(`
model:
  name: demo
dependencies:
  acme/core: v1.2.3
  widgets:
    source: acme/widgets
    ref: main
    entry: lib.dlang
`)
	m, err := ParseManifest(data, "model.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Model.Entry != defaultEntry {
		t.Errorf("expected default entry %q, got %q", defaultEntry, m.Model.Entry)
	}

	core, ok := m.Dependencies["acme/core"]
	if !ok {
		t.Fatal("missing acme/core dependency")
	}
	if core.Ref != "v1.2.3" || core.EffectiveSource() != "acme/core" {
		t.Errorf("unexpected short-form dependency: %+v", core)
	}

	widgets, ok := m.Dependencies["widgets"]
	if !ok {
		t.Fatal("missing widgets dependency")
	}
	if widgets.Source != "acme/widgets" || widgets.Ref != "main" || widgets.Entry != "lib.dlang" {
		t.Errorf("unexpected long-form dependency: %+v", widgets)
	}
	if widgets.EffectiveHost() != "github" {
		t.Errorf("expected default host github, got %q", widgets.EffectiveHost())
	}
}

func TestParseManifest_MissingName(t *testing.T) {
	_, err := ParseManifest([]byte("model:\n  version: 1\ndependencies: {}\n"), "model.yaml")
	if err == nil {
		t.Fatal("expected ManifestInvalidError")
	}
	if _, ok := err.(*ManifestInvalidError); !ok {
		t.Fatalf("expected *ManifestInvalidError, got %T", err)
	}
}

func TestLoadManifest_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadManifest(dir)
	if _, ok := err.(*ManifestNotFoundError); !ok {
		t.Fatalf("expected *ManifestNotFoundError, got %T: %v", err, err)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	data := []byte(`
model:
  name: demo
  entry: index.dlang
dependencies:
  acme/core: v1.2.3
  widgets:
    source: acme/widgets
    ref: main
`)
	m, err := ParseManifest(data, "model.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	out, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	m2, err := ParseManifest(out, "model.yaml")
	if err != nil {
		t.Fatalf("re-parse failed: %v\n--- output ---\n%s", err, out)
	}

	if len(m2.Dependencies) != len(m.Dependencies) {
		t.Fatalf("dependency count changed: %d vs %d", len(m.Dependencies), len(m2.Dependencies))
	}
	for name, dep := range m.Dependencies {
		dep2, ok := m2.Dependencies[name]
		if !ok {
			t.Fatalf("dependency %q missing after round-trip", name)
		}
		if dep.Ref != dep2.Ref || dep.EffectiveSource() != dep2.EffectiveSource() {
			t.Errorf("dependency %q changed: %+v vs %+v", name, dep, dep2)
		}
	}
}

func TestManifest_EmptyDependenciesRendersAsBareKey(t *testing.T) {
	m := &Manifest{
		Model:        ModelInfo{Name: "demo", Entry: defaultEntry},
		Dependencies: map[string]*Dependency{},
	}
	out, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "dependencies: null") || strings.Contains(text, "dependencies: {}") {
		t.Errorf("expected bare 'dependencies:' key, got:\n%s", text)
	}
	if !strings.Contains(text, "dependencies:") {
		t.Errorf("expected a dependencies key, got:\n%s", text)
	}
}

func TestManifest_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Model:        ModelInfo{Name: "demo", Entry: defaultEntry},
		Dependencies: map[string]*Dependency{"acme/core": {Name: "acme/core", Ref: "v1.0.0", shortForm: true}},
	}
	if err := m.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if !fileExists(filepath.Join(dir, ManifestFileName)) {
		t.Fatal("manifest file not written")
	}

	loaded, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Dependencies["acme/core"].Ref != "v1.0.0" {
		t.Errorf("unexpected loaded dependency: %+v", loaded.Dependencies["acme/core"])
	}
}

func TestManifest_AddDependency_AlreadyExists(t *testing.T) {
	m := &Manifest{Dependencies: map[string]*Dependency{"acme/core": {Name: "acme/core", Ref: "v1.0.0"}}}
	err := m.AddDependency("acme/core", "v1.2.4")
	if _, ok := err.(*AlreadyExistsError); !ok {
		t.Fatalf("expected *AlreadyExistsError, got %T: %v", err, err)
	}
}

func TestManifest_RemoveDependency_StripsRefSuffix(t *testing.T) {
	m := &Manifest{Dependencies: map[string]*Dependency{"acme/core": {Name: "acme/core", Ref: "v1.0.0"}}}
	m.RemoveDependency("acme/core@v1.0.0")
	if _, ok := m.Dependencies["acme/core"]; ok {
		t.Error("expected dependency to be removed")
	}
}

func TestManifest_RemoveDependency_Idempotent(t *testing.T) {
	m := &Manifest{Dependencies: map[string]*Dependency{}}
	m.RemoveDependency("acme/core")
	m.RemoveDependency("acme/core")
	if len(m.Dependencies) != 0 {
		t.Error("expected no dependencies")
	}
}

func TestManifest_PreservesUnknownDependencyKeys(t *testing.T) {
	data := []byte(`
model:
  name: demo
dependencies:
  widgets:
    source: acme/widgets
    ref: main
    future: kept
`)
	m, err := ParseManifest(data, "model.yaml")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(out), "future: kept") {
		t.Errorf("expected unknown key 'future' preserved, got:\n%s", out)
	}
}
