package stage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Equal(t, 3, c.Total())

	tests := []struct {
		ordinal int
		name    string
		secret  string
		filter  bool
	}{
		{1, "Tutorial", "APPLE", false},
		{2, "Junior Guard", "BANANA", false},
		{3, "Output Filter", "CHERRY", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := c.Get(tt.ordinal)
			require.True(t, ok)
			assert.Equal(t, tt.name, s.Name)
			assert.Equal(t, tt.secret, s.Secret)
			assert.Equal(t, tt.filter, s.OutputFilter)
			assert.Contains(t, s.AdversaryInstruction, tt.secret)
			assert.NotEmpty(t, s.Description)
			assert.NotEmpty(t, s.WeaknessHint)
		})
	}
}

func TestGetOutOfRange(t *testing.T) {
	c := Default()
	for _, ordinal := range []int{-1, 0, 4, 100} {
		_, ok := c.Get(ordinal)
		assert.False(t, ok, "ordinal %d", ordinal)
	}
}

func TestNewSortsAndValidates(t *testing.T) {
	c, err := New([]Stage{
		{Ordinal: 2, Name: "b", Secret: "B", AdversaryInstruction: "guard B"},
		{Ordinal: 1, Name: "a", Secret: "A", AdversaryInstruction: "guard A"},
	})
	require.NoError(t, err)
	first, _ := c.Get(1)
	assert.Equal(t, "a", first.Name)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantMsg string
	}{
		{
			name:    "empty",
			stages:  nil,
			wantMsg: "no stages defined",
		},
		{
			name: "gap in ordinals",
			stages: []Stage{
				{Ordinal: 1, Secret: "A", AdversaryInstruction: "x"},
				{Ordinal: 3, Secret: "C", AdversaryInstruction: "x"},
			},
			wantMsg: "expected 2",
		},
		{
			name: "duplicate ordinal",
			stages: []Stage{
				{Ordinal: 1, Secret: "A", AdversaryInstruction: "x"},
				{Ordinal: 1, Secret: "B", AdversaryInstruction: "x"},
			},
			wantMsg: "expected 2",
		},
		{
			name:    "missing secret",
			stages:  []Stage{{Ordinal: 1, AdversaryInstruction: "x"}},
			wantMsg: "secret is required",
		},
		{
			name:    "missing instruction",
			stages:  []Stage{{Ordinal: 1, Secret: "A"}},
			wantMsg: "adversary_instruction is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.stages)
			require.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadIgnoresOtherKeys(t *testing.T) {
	doc := `
rewards:
  - id: something
stages:
  - ordinal: 1
    name: Only
    secret: KIWI
    adversary_instruction: guard KIWI
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Total())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stages: []\n"), 0o600))
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Secret = "CHANGED"
	s, _ := c.Get(1)
	assert.Equal(t, "APPLE", s.Secret)
}
