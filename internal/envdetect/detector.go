// Package envdetect scans a cloned repository for a Python dependency
// manifest and normalises it into an EnvironmentInfo.
package envdetect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arandu-labs/arandu/internal/errs"
)

// EnvType labels which packaging ecosystem a repository uses.
type EnvType string

const (
	EnvTypePip    EnvType = "pip"
	EnvTypeConda  EnvType = "conda"
	EnvTypePoetry EnvType = "poetry"
	EnvTypePipenv EnvType = "pipenv"
)

// Dependency is one normalised (name, version-spec-or-empty) pair. The
// version keeps its operator when the manifest carried one ("==1.2", ">=2").
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// EnvironmentInfo is the detection result fed to the image builder.
type EnvironmentInfo struct {
	Type          EnvType      `json:"type"`
	Dependencies  []Dependency `json:"dependencies"`
	DetectedFiles []string     `json:"detected_files"`
	BaseImage     string       `json:"base_image"`
}

// manifest preference order; the first match wins.
var manifestOrder = []struct {
	file string
	typ  EnvType
}{
	{"requirements.txt", EnvTypePip},
	{"environment.yml", EnvTypeConda},
	{"pyproject.toml", EnvTypePoetry},
	{"Pipfile", EnvTypePipenv},
}

// operators ordered longest-first so "==" matches before "=" never would.
var versionOperators = []string{"==", ">=", "<=", "!=", "~=", ">", "<"}

// Detect scans repoPath for the first supported manifest. Returns
// NoEnvironmentDetectedError when none is found.
func Detect(repoPath, baseImage string) (*EnvironmentInfo, error) {
	for _, m := range manifestOrder {
		path := filepath.Join(repoPath, m.file)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var deps []Dependency
		switch m.typ {
		case EnvTypePip:
			deps = parseRequirements(string(data))
		case EnvTypeConda:
			deps, err = parseEnvironmentYML(data)
		case EnvTypePoetry:
			deps = parsePyproject(string(data))
		case EnvTypePipenv:
			deps = parsePipfile(string(data))
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", m.file, err)
		}

		return &EnvironmentInfo{
			Type:          m.typ,
			Dependencies:  deps,
			DetectedFiles: []string{m.file},
			BaseImage:     baseImage,
		}, nil
	}
	return nil, &errs.NoEnvironmentDetectedError{RepoPath: repoPath}
}

// parseRequirements handles the line-oriented pip format.
func parseRequirements(content string) []Dependency {
	var deps []Dependency
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		// Strip inline comments.
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		deps = append(deps, splitSpec(line))
	}
	return deps
}

// splitSpec splits "name>=1.2" keeping the operator in the version.
func splitSpec(entry string) Dependency {
	for i := 0; i < len(entry); i++ {
		for _, op := range versionOperators {
			if strings.HasPrefix(entry[i:], op) {
				return Dependency{
					Name:    strings.TrimSpace(entry[:i]),
					Version: strings.TrimSpace(entry[i:]),
				}
			}
		}
	}
	return Dependency{Name: entry}
}

type condaEnvironment struct {
	Dependencies []any `yaml:"dependencies"`
}

// parseEnvironmentYML flattens conda string entries and nested pip blocks.
func parseEnvironmentYML(data []byte) ([]Dependency, error) {
	var env condaEnvironment
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var deps []Dependency
	for _, entry := range env.Dependencies {
		switch v := entry.(type) {
		case string:
			// conda pins use a single "=".
			name, version, found := strings.Cut(v, "=")
			if found {
				deps = append(deps, Dependency{Name: strings.TrimSpace(name), Version: "==" + strings.Trim(version, "=")})
			} else {
				deps = append(deps, splitSpec(v))
			}
		case map[string]any:
			pipList, ok := v["pip"].([]any)
			if !ok {
				continue
			}
			for _, p := range pipList {
				if s, ok := p.(string); ok {
					deps = append(deps, splitSpec(s))
				}
			}
		}
	}
	return deps, nil
}

// parsePyproject prefers [tool.poetry.dependencies], falling back to the
// PEP 621 [project] dependencies array. The file format only needs two fixed
// tables here, so a line-oriented scan suffices.
func parsePyproject(content string) []Dependency {
	if deps := tomlTableEntries(content, "tool.poetry.dependencies"); len(deps) > 0 {
		var out []Dependency
		for _, d := range deps {
			if strings.EqualFold(d.Name, "python") {
				continue
			}
			out = append(out, d)
		}
		return out
	}

	var deps []Dependency
	for _, entry := range tomlArrayValue(content, "project", "dependencies") {
		deps = append(deps, splitSpec(entry))
	}
	return deps
}

// parsePipfile reads the [packages] table.
func parsePipfile(content string) []Dependency {
	return tomlTableEntries(content, "packages")
}

// tomlTableEntries returns key = "value" pairs inside the named table.
// Values of "*" mean unpinned; caret/tilde poetry specs are kept verbatim
// unless they already carry a pip operator.
func tomlTableEntries(content, table string) []Dependency {
	var deps []Dependency
	inTable := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") {
			inTable = strings.Trim(line, "[]") == table
			continue
		}
		if !inTable || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		name := strings.Trim(strings.TrimSpace(key), `"`)
		spec := strings.Trim(strings.TrimSpace(value), `"`)
		if spec == "*" || strings.HasPrefix(spec, "{") {
			spec = ""
		}
		deps = append(deps, Dependency{Name: name, Version: spec})
	}
	return deps
}

// tomlArrayValue extracts the string elements of key = [ ... ] inside the
// named table, tolerating multi-line arrays.
func tomlArrayValue(content, table, key string) []string {
	inTable := false
	inArray := false
	var items []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && !inArray {
			inTable = strings.Trim(trimmed, "[]") == table
			continue
		}
		if !inTable {
			continue
		}
		if !inArray {
			k, v, found := strings.Cut(trimmed, "=")
			if !found || strings.TrimSpace(k) != key {
				continue
			}
			rest := strings.TrimSpace(v)
			if !strings.HasPrefix(rest, "[") {
				continue
			}
			rest = strings.TrimPrefix(rest, "[")
			if end := strings.Index(rest, "]"); end >= 0 {
				items = append(items, splitQuoted(rest[:end])...)
				return items
			}
			items = append(items, splitQuoted(rest)...)
			inArray = true
			continue
		}
		if end := strings.Index(trimmed, "]"); end >= 0 {
			items = append(items, splitQuoted(trimmed[:end])...)
			return items
		}
		items = append(items, splitQuoted(trimmed)...)
	}
	return items
}

func splitQuoted(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FormatForPip renders one dependency as a pip install argument. A spec that
// already carries a pip operator is concatenated directly; poetry caret and
// tilde specs are translated to their closest pip form ("^2.0" -> ">=2.0",
// "~2.0" -> "~=2.0") since pip rejects them verbatim; a bare version gets
// "==" inserted; an empty spec installs the latest.
func FormatForPip(dep Dependency) string {
	if dep.Version == "" {
		return dep.Name
	}
	for _, op := range versionOperators {
		if strings.HasPrefix(dep.Version, op) {
			return dep.Name + dep.Version
		}
	}
	if v, ok := strings.CutPrefix(dep.Version, "^"); ok {
		return dep.Name + ">=" + v
	}
	if v, ok := strings.CutPrefix(dep.Version, "~"); ok {
		return dep.Name + "~=" + v
	}
	return dep.Name + "==" + dep.Version
}
