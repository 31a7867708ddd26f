// Package registry keeps the JSON list of trained model artifacts and
// which one is served.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const formatVersion = "1.0.0"

var ErrNoActiveModel = errors.New("registry has no active model")

func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrNew returns an empty registry when path does not exist yet.
func LoadOrNew(path string) (*ModelRegistry, error) {
	reg, err := LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ModelRegistry{Version: formatVersion, Models: []Model{}}, nil
	}
	return reg, err
}

// Save writes the registry through a temp file and rename.
func (r *ModelRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (r *ModelRegistry) Find(version string) (*Model, bool) {
	for i := range r.Models {
		if r.Models[i].Version == version {
			return &r.Models[i], true
		}
	}
	return nil, false
}

func (r *ModelRegistry) Active() (*Model, bool) {
	for i := range r.Models {
		if r.Models[i].Status == StatusActive {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// Register appends a new entry. An active entry demotes the current one.
func (r *ModelRegistry) Register(m Model) error {
	if m.Version == "" || m.Path == "" {
		return fmt.Errorf("model version and path are required")
	}
	if _, exists := r.Find(m.Version); exists {
		return fmt.Errorf("model version %s already registered", m.Version)
	}
	if m.Status == "" {
		m.Status = StatusCandidate
	}
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if m.Status == StatusActive {
		r.retireActive()
	}
	r.Models = append(r.Models, m)
	return nil
}

// Promote makes version the served model and retires the previous one.
func (r *ModelRegistry) Promote(version string) error {
	m, ok := r.Find(version)
	if !ok {
		return fmt.Errorf("model version %s not found", version)
	}
	if m.Status == StatusActive {
		return nil
	}
	r.retireActive()
	m.Status = StatusActive
	return nil
}

func (r *ModelRegistry) retireActive() {
	for i := range r.Models {
		if r.Models[i].Status == StatusActive {
			r.Models[i].Status = StatusRetired
		}
	}
}

// Validate checks required fields, unique versions and the single active
// entry rule.
func (r *ModelRegistry) Validate() error {
	versions := make(map[string]bool)
	active := 0
	for _, m := range r.Models {
		if m.Version == "" {
			return fmt.Errorf("model missing required field: version")
		}
		if versions[m.Version] {
			return fmt.Errorf("duplicate model version: %s", m.Version)
		}
		versions[m.Version] = true

		if m.Path == "" {
			return fmt.Errorf("model %s missing required field: path", m.Version)
		}
		switch m.Status {
		case StatusActive:
			active++
		case StatusCandidate, StatusRetired:
		default:
			return fmt.Errorf("model %s has unknown status %q", m.Version, m.Status)
		}
	}
	if active > 1 {
		return fmt.Errorf("registry has %d active models", active)
	}
	return nil
}

// ResolveActivePath returns the artifact path of the active entry in the
// registry at path.
func ResolveActivePath(path string) (string, error) {
	reg, err := LoadRegistry(path)
	if err != nil {
		return "", err
	}
	m, ok := reg.Active()
	if !ok {
		return "", ErrNoActiveModel
	}
	return m.Path, nil
}
