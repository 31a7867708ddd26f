package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndPromote(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "registry.json")

	reg, err := LoadOrNew(path)
	require.NoError(t, err)
	assert.Empty(t, reg.Models)

	require.NoError(t, reg.Register(Model{Version: "v1", Path: "models/v1.json", Accuracy: 0.81, Status: StatusActive}))
	require.NoError(t, reg.Register(Model{Version: "v2", Path: "models/v2.json", Accuracy: 0.84}))
	assert.Error(t, reg.Register(Model{Version: "v2", Path: "models/other.json"}))
	assert.Error(t, reg.Register(Model{Version: "v3"}))

	active, ok := reg.Active()
	require.True(t, ok)
	assert.Equal(t, "v1", active.Version)

	v2, _ := reg.Find("v2")
	assert.Equal(t, StatusCandidate, v2.Status)
	assert.NotEmpty(t, v2.CreatedAt)

	require.NoError(t, reg.Promote("v2"))
	assert.Error(t, reg.Promote("missing"))
	require.NoError(t, reg.Validate())
	require.NoError(t, reg.Save(path))

	resolved, err := ResolveActivePath(path)
	require.NoError(t, err)
	assert.Equal(t, "models/v2.json", resolved)

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	v1, _ := loaded.Find("v1")
	assert.Equal(t, StatusRetired, v1.Status)
	assert.NotEmpty(t, loaded.LastUpdated)
}

func TestRegistry_RegisterActiveDemotesCurrent(t *testing.T) {
	reg := &ModelRegistry{}
	require.NoError(t, reg.Register(Model{Version: "v1", Path: "a", Status: StatusActive}))
	require.NoError(t, reg.Register(Model{Version: "v2", Path: "b", Status: StatusActive}))

	active, ok := reg.Active()
	require.True(t, ok)
	assert.Equal(t, "v2", active.Version)
	assert.NoError(t, reg.Validate())
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		models  []Model
		wantErr string
	}{
		{
			name:   "empty registry",
			models: nil,
		},
		{
			name:    "missing version",
			models:  []Model{{Path: "a", Status: StatusCandidate}},
			wantErr: "version",
		},
		{
			name:    "duplicate version",
			models:  []Model{{Version: "v1", Path: "a", Status: StatusCandidate}, {Version: "v1", Path: "b", Status: StatusRetired}},
			wantErr: "duplicate",
		},
		{
			name:    "missing path",
			models:  []Model{{Version: "v1", Status: StatusCandidate}},
			wantErr: "path",
		},
		{
			name:    "unknown status",
			models:  []Model{{Version: "v1", Path: "a", Status: "shadow"}},
			wantErr: "unknown status",
		},
		{
			name:    "two active",
			models:  []Model{{Version: "v1", Path: "a", Status: StatusActive}, {Version: "v2", Path: "b", Status: StatusActive}},
			wantErr: "2 active",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&ModelRegistry{Models: tt.models}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveActivePath_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ResolveActivePath(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "registry.json")
	require.NoError(t, (&ModelRegistry{Models: []Model{{Version: "v1", Path: "a", Status: StatusCandidate}}}).Save(path))
	_, err = ResolveActivePath(path)
	assert.ErrorIs(t, err, ErrNoActiveModel)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = ResolveActivePath(path)
	assert.Error(t, err)
}
