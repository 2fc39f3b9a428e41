package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultBaseDir = ".advisor"

// Paths holds resolved filesystem locations for advisor state.
type Paths struct {
	Base     string // ~/.advisor
	Config   string // ~/.advisor/config.yaml
	DotEnv   string // ~/.advisor/.env
	Data     string // ~/.advisor/data
	Database string // ~/.advisor/data/advisor.db
	Logs     string // ~/.advisor/logs
}

// ResolvePaths computes all standard paths from the home directory.
// ADVISOR_HOME overrides the base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ADVISOR_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		DotEnv:   filepath.Join(base, ".env"),
		Data:     data,
		Database: filepath.Join(data, "advisor.db"),
		Logs:     filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Sections are the top-level keys a config path may start with.
var Sections = []string{"gateway", "agent", "conversation", "background", "store", "logging"}

// ParseConfigPath splits a dot-separated config path such as
// "agent.instanceUrl" into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	if slices.Contains(parts, "") {
		return nil, &ConfigError{Message: "config path contains empty segment"}
	}
	if !slices.Contains(Sections, parts[0]) {
		return nil, &ConfigError{Message: "unknown config section: " + parts[0]}
	}
	return parts, nil
}

// walk descends root along path, returning the map holding the final key.
// With create set, missing or non-map intermediates are replaced by maps.
func walk(root map[string]any, path []string, create bool) (map[string]any, bool) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	return current, true
}

// GetValueAtPath looks up a nested value.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return root, true
	}
	parent, ok := walk(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath sets a value, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := walk(root, path, true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value. Returns true if something was removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := walk(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}
