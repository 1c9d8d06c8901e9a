package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/cartonpkg/go-carton/version"
)

// Filename is the manifest file name looked up in a package directory.
const Filename = "carton.toml"

// rawManifest mirrors the TOML layout of a manifest file.
type rawManifest struct {
	Package struct {
		Name         string `toml:"name"`
		Version      string `toml:"version"`
		Links        string `toml:"links"`
		MinToolchain string `toml:"min-toolchain"`
		Resolver     string `toml:"resolver"`
	} `toml:"package"`

	Dependencies      map[string]any `toml:"dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`

	Target map[string]struct {
		Dependencies      map[string]any `toml:"dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
	} `toml:"target"`

	Features map[string][]string `toml:"features"`

	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
}

// Parse parses a single manifest from TOML content.
// Requirement strings are validated eagerly: a malformed requirement fails
// with a *version.ParseError, never silently.
func Parse(data []byte) (*Manifest, error) {
	m, _, err := parse(data)
	return m, err
}

func parse(data []byte) (*Manifest, []string, error) {
	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}

	if raw.Package.Name == "" {
		return nil, nil, fmt.Errorf("manifest is missing package.name")
	}
	v, err := version.Parse(raw.Package.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("package %s: %w", raw.Package.Name, err)
	}

	m := &Manifest{
		Name:     raw.Package.Name,
		Version:  v,
		Links:    raw.Package.Links,
		Policy:   PolicyV1,
		Features: raw.Features,
	}
	if m.Features == nil {
		m.Features = map[string][]string{}
	}

	if raw.Package.MinToolchain != "" {
		mt, err := version.Parse(raw.Package.MinToolchain)
		if err != nil {
			return nil, nil, fmt.Errorf("package %s: min-toolchain: %w", m.Name, err)
		}
		m.MinToolchain = mt
	}

	switch raw.Package.Resolver {
	case "", "1":
	case "2":
		m.Policy = PolicyV2
	default:
		return nil, nil, fmt.Errorf("package %s: unknown resolver policy %q", m.Name, raw.Package.Resolver)
	}

	if err := m.appendDeps(raw.Dependencies, KindNormal, nil); err != nil {
		return nil, nil, err
	}
	if err := m.appendDeps(raw.BuildDependencies, KindBuild, nil); err != nil {
		return nil, nil, err
	}
	if err := m.appendDeps(raw.DevDependencies, KindDev, nil); err != nil {
		return nil, nil, err
	}

	// Deterministic order for target tables.
	targets := make([]string, 0, len(raw.Target))
	for t := range raw.Target {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	for _, t := range targets {
		platform, err := ParsePlatform(t)
		if err != nil {
			return nil, nil, fmt.Errorf("package %s: %w", m.Name, err)
		}
		tables := raw.Target[t]
		if err := m.appendDeps(tables.Dependencies, KindNormal, platform); err != nil {
			return nil, nil, err
		}
		if err := m.appendDeps(tables.BuildDependencies, KindBuild, platform); err != nil {
			return nil, nil, err
		}
		if err := m.appendDeps(tables.DevDependencies, KindDev, platform); err != nil {
			return nil, nil, err
		}
	}

	var members []string
	if raw.Workspace != nil {
		members = raw.Workspace.Members
	}
	return m, members, nil
}

// appendDeps converts one dependency table, in sorted key order so that
// repeated loads produce identical edge ordering.
func (m *Manifest) appendDeps(table map[string]any, kind DepKind, platform *Platform) error {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		dep, err := parseDependency(key, table[key], kind, platform)
		if err != nil {
			return fmt.Errorf("package %s: dependency %s: %w", m.Name, key, err)
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	return nil
}

// parseDependency interprets one dependency entry, which is either a bare
// requirement string or a table with detailed fields. The table key is the
// reference name; a "package" field renames the underlying index package.
func parseDependency(key string, value any, kind DepKind, platform *Platform) (Dependency, error) {
	dep := Dependency{
		Name:            key,
		Kind:            kind,
		Platform:        platform,
		DefaultFeatures: true,
	}

	switch v := value.(type) {
	case string:
		req, err := version.ParseRequirement(v)
		if err != nil {
			return Dependency{}, err
		}
		dep.Req = req
		return dep, nil

	case map[string]any:
		reqStr, ok := v["version"].(string)
		if !ok {
			return Dependency{}, fmt.Errorf("missing version requirement")
		}
		req, err := version.ParseRequirement(reqStr)
		if err != nil {
			return Dependency{}, err
		}
		dep.Req = req

		if pkg, ok := v["package"].(string); ok && pkg != "" {
			dep.Name = pkg
			dep.Rename = key
		}
		if optional, ok := v["optional"].(bool); ok {
			dep.Optional = optional
		}
		if df, ok := v["default-features"].(bool); ok {
			dep.DefaultFeatures = df
		}
		if reg, ok := v["registry"].(string); ok {
			dep.Registry = reg
		}
		if rawFeatures, ok := v["features"].([]any); ok {
			for _, f := range rawFeatures {
				name, ok := f.(string)
				if !ok {
					return Dependency{}, fmt.Errorf("feature list entries must be strings, got %T", f)
				}
				dep.Features = append(dep.Features, name)
			}
		}
		return dep, nil

	default:
		return Dependency{}, fmt.Errorf("dependency must be a requirement string or a table, got %T", value)
	}
}

// LoadFile parses the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadWorkspace loads the workspace rooted at dir: the root manifest plus
// every member listed in its [workspace] table. The root is always a member.
func LoadWorkspace(dir string) (*Workspace, error) {
	rootPath := filepath.Join(dir, Filename)
	data, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	root, memberDirs, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rootPath, err)
	}

	ws := &Workspace{Root: root, Members: []*Manifest{root}}
	for _, rel := range memberDirs {
		member, err := LoadFile(filepath.Join(dir, rel, Filename))
		if err != nil {
			return nil, err
		}
		ws.Members = append(ws.Members, member)
	}
	return ws, nil
}
