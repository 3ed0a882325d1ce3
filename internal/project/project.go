// Package project loads host configurations and scenarios from a project
// directory. Files may be YAML or JSON; JSON may carry comments and trailing
// commas. Everything is validated at load time so malformed input fails
// before any request is issued.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/types"
)

// Directory layout inside a project.
const (
	ConfigDirName   = "config"
	ScenarioDirName = "scenario"
	ResultDirName   = "result"
	HostsFileName   = "hosts.json"
)

// DefaultHost is the host key used when a scenario names none.
const DefaultHost = "default"

// Manager resolves hosts and scenarios under one project directory.
type Manager struct {
	root string
}

// NewManager opens a project rooted at dir.
func NewManager(dir string) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project %s: not a directory", dir)
	}
	return &Manager{root: dir}, nil
}

// Root returns the project directory.
func (m *Manager) Root() string {
	return m.root
}

// ResultsDir returns the directory reports are written to, creating it on
// first use.
func (m *Manager) ResultsDir() (string, error) {
	dir := filepath.Join(m.root, ResultDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results dir: %w", err)
	}
	return dir, nil
}

// LoadHosts reads and validates the host map from config/hosts.json (or
// hosts.yaml/hosts.yml as a fallback).
func (m *Manager) LoadHosts() (map[string]*types.HostConfig, error) {
	path, err := m.findHostsFile()
	if err != nil {
		return nil, err
	}

	var hosts map[string]*types.HostConfig
	if err := unmarshalFile(path, &hosts); err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, types.NewConfigError("%s: no hosts defined", path)
	}

	for name, host := range hosts {
		if host == nil {
			return nil, types.NewConfigError("%s: host %q is empty", path, name)
		}
		if err := host.Validate(); err != nil {
			return nil, fmt.Errorf("host %q: %w", name, err)
		}
	}
	return hosts, nil
}

// ResolveHost picks the scenario's host from the map, falling back to
// "default".
func ResolveHost(hosts map[string]*types.HostConfig, sc *types.Scenario) (*types.HostConfig, error) {
	name := sc.Host
	if name == "" {
		name = DefaultHost
	}
	host, ok := hosts[name]
	if !ok {
		return nil, types.NewConfigError("scenario %q: host %q is not defined", sc.Name, name)
	}
	return host, nil
}

// ListScenarios returns the scenario names (file stems) in the project.
func (m *Manager) ListScenarios() ([]string, error) {
	dir := filepath.Join(m.root, ScenarioDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".json", ".yaml", ".yml":
			names = append(names, strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadScenario reads and validates one scenario by name.
func (m *Manager) LoadScenario(name string) (*types.Scenario, error) {
	dir := filepath.Join(m.root, ScenarioDirName)
	path, err := findScenarioFile(dir, name)
	if err != nil {
		return nil, err
	}

	var sc types.Scenario
	if err := unmarshalFile(path, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (m *Manager) findHostsFile() (string, error) {
	dir := filepath.Join(m.root, ConfigDirName)
	for _, name := range []string{HostsFileName, "hosts.yaml", "hosts.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", types.NewConfigError("no hosts file found under %s", dir)
}

func findScenarioFile(dir, name string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", types.NewConfigError("scenario %q not found under %s", name, dir)
}

// unmarshalFile decodes YAML or JSON(C) based on the file extension. YAML
// maps are decoded into JSON-shaped map[string]any values so the rest of the
// system sees one dynamic representation.
func unmarshalFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(jsonc.ToJSON(data), out); err != nil {
			return types.NewConfigError("%s: %v", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, out); err != nil {
			return types.NewConfigError("%s: %v", path, err)
		}
	}
	return nil
}
