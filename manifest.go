package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the workspace manifest's canonical file name.
const ManifestFileName = "model.yaml"

// defaultEntry is used when model.entry is omitted.
const defaultEntry = "index.dlang"

// Dependency is the normalized internal shape of a manifest dependency,
// whether it was declared short-form (a bare ref string) or long-form (a
// mapping). Source and Entry are nullable; when the record does not declare
// a source, Source stays empty and EffectiveSource falls back to the map key.
type Dependency struct {
	Name   string `yaml:"-"`
	Source string `yaml:"source,omitempty"`
	Ref    string `yaml:"ref"`
	Entry  string `yaml:"entry,omitempty"`
	Host   string `yaml:"host,omitempty"`

	shortForm bool
}

// EffectiveSource returns Source, defaulting to Name when unset.
func (d *Dependency) EffectiveSource() string {
	if d.Source != "" {
		return d.Source
	}
	return d.Name
}

// EffectiveHost returns Host, defaulting to "github".
func (d *Dependency) EffectiveHost() string {
	if d.Host != "" {
		return d.Host
	}
	return "github"
}

// ModelInfo is the workspace identity block.
type ModelInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Entry   string `yaml:"entry,omitempty"`
}

// Manifest is the in-memory, normalized form of model.yaml.
type Manifest struct {
	Model        ModelInfo              `yaml:"model"`
	Dependencies map[string]*Dependency `yaml:"dependencies"`
	Paths        map[string]string      `yaml:"paths,omitempty"`

	// rawDependencies preserves unrecognized keys nested under each
	// dependency record so rewrites do not lose forward-compat fields.
	rawDependencies map[string]map[string]any
}

// rawManifest mirrors Manifest's on-disk shape before normalization: each
// dependency value is either a scalar (short form) or a mapping (long form).
type rawManifest struct {
	Model        ModelInfo      `yaml:"model"`
	Dependencies yaml.Node      `yaml:"dependencies"`
	Paths        map[string]string `yaml:"paths,omitempty"`
}

// LoadManifest reads and normalizes model.yaml from workspaceRoot.
func LoadManifest(workspaceRoot string) (*Manifest, error) {
	path := filepath.Join(workspaceRoot, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ManifestNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, path)
}

// ParseManifest normalizes raw YAML bytes into a Manifest. path is used only
// for error messages.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var raw rawManifest
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ManifestInvalidError{Path: path, Reason: err.Error()}
	}
	if strings.TrimSpace(raw.Model.Name) == "" {
		return nil, &ManifestInvalidError{Path: path, Reason: "missing model.name"}
	}
	if raw.Model.Entry == "" {
		raw.Model.Entry = defaultEntry
	}

	m := &Manifest{
		Model:           raw.Model,
		Dependencies:    map[string]*Dependency{},
		Paths:           raw.Paths,
		rawDependencies: map[string]map[string]any{},
	}

	if raw.Dependencies.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(raw.Dependencies.Content); i += 2 {
			keyNode := raw.Dependencies.Content[i]
			valNode := raw.Dependencies.Content[i+1]
			name := keyNode.Value

			dep, extra, err := decodeDependencyNode(name, valNode)
			if err != nil {
				return nil, &ManifestInvalidError{Path: path, Reason: fmt.Sprintf("dependency %q: %v", name, err)}
			}
			m.Dependencies[name] = dep
			if len(extra) > 0 {
				m.rawDependencies[name] = extra
			}
		}
	}

	return m, nil
}

func decodeDependencyNode(name string, node *yaml.Node) (*Dependency, map[string]any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var ref string
		if err := node.Decode(&ref); err != nil {
			return nil, nil, err
		}
		return &Dependency{Name: name, Ref: ref, shortForm: true}, nil, nil
	case yaml.MappingNode:
		var full map[string]any
		if err := node.Decode(&full); err != nil {
			return nil, nil, err
		}
		dep := &Dependency{Name: name}
		if v, ok := full["source"].(string); ok {
			dep.Source = v
			delete(full, "source")
		}
		if v, ok := full["ref"].(string); ok {
			dep.Ref = v
			delete(full, "ref")
		}
		if v, ok := full["entry"].(string); ok {
			dep.Entry = v
			delete(full, "entry")
		}
		if v, ok := full["host"].(string); ok {
			dep.Host = v
			delete(full, "host")
		}
		return dep, full, nil
	default:
		return nil, nil, fmt.Errorf("expected scalar or mapping, got %v", node.Kind)
	}
}

// Save serializes the manifest back to model.yaml at workspaceRoot, 2-space
// indent, preserving unrecognized per-dependency keys and rendering an empty
// dependencies mapping as a bare key rather than null.
func (m *Manifest) Save(workspaceRoot string) error {
	path := filepath.Join(workspaceRoot, ManifestFileName)
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data)
}

// Marshal renders the manifest to YAML bytes.
func (m *Manifest) Marshal() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	modelNode := &yaml.Node{}
	if err := modelNode.Encode(m.Model); err != nil {
		return nil, fmt.Errorf("encoding model: %w", err)
	}
	root.Content = append(root.Content, scalarNode("model"), modelNode)

	depsNode := &yaml.Node{Kind: yaml.MappingNode}
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dep := m.Dependencies[name]
		valNode, err := encodeDependencyNode(dep, m.rawDependencies[name])
		if err != nil {
			return nil, err
		}
		depsNode.Content = append(depsNode.Content, scalarNode(name), valNode)
	}
	if len(depsNode.Content) == 0 {
		// yaml.v3 emits an empty mapping in flow style ("{}"); an empty
		// null scalar renders as a bare "dependencies:" key instead.
		depsNode = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	}
	root.Content = append(root.Content, scalarNode("dependencies"), depsNode)

	if len(m.Paths) > 0 {
		pathsNode := &yaml.Node{}
		if err := pathsNode.Encode(m.Paths); err != nil {
			return nil, fmt.Errorf("encoding paths: %w", err)
		}
		root.Content = append(root.Content, scalarNode("paths"), pathsNode)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	enc.Close()

	return []byte(sb.String()), nil
}

func encodeDependencyNode(dep *Dependency, extra map[string]any) (*yaml.Node, error) {
	if dep.shortForm && dep.Source == "" && dep.Entry == "" && dep.Host == "" && len(extra) == 0 {
		return scalarNode(dep.Ref), nil
	}

	merged := map[string]any{}
	for k, v := range extra {
		merged[k] = v
	}
	if dep.Source != "" {
		merged["source"] = dep.Source
	}
	merged["ref"] = dep.Ref
	if dep.Entry != "" {
		merged["entry"] = dep.Entry
	}
	if dep.Host != "" {
		merged["host"] = dep.Host
	}

	node := &yaml.Node{}
	if err := node.Encode(merged); err != nil {
		return nil, err
	}
	return node, nil
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// AddDependency appends a short-form dependency for name if it does not
// already exist. Returns AlreadyExistsError otherwise.
func (m *Manifest) AddDependency(name, ref string) error {
	if _, ok := m.Dependencies[name]; ok {
		return &AlreadyExistsError{Name: name}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]*Dependency{}
	}
	m.Dependencies[name] = &Dependency{Name: name, Ref: ref, shortForm: true}
	return nil
}

// RemoveDependency strips an optional "@ref" suffix from name and removes
// the matching entry. No error if absent (idempotent).
func (m *Manifest) RemoveDependency(name string) {
	name = strings.SplitN(name, "@", 2)[0]
	delete(m.Dependencies, name)
	delete(m.rawDependencies, name)
}
