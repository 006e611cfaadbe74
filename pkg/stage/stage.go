// Package stage holds the ordered, immutable list of stages a session plays
// through.
package stage

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/stages.yaml
var defaultStages []byte

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid stage catalog")

// Stage is one level of the game: an enemy guarding a secret.
type Stage struct {
	Ordinal              int    `yaml:"ordinal" json:"ordinal"`
	Name                 string `yaml:"name" json:"name"`
	Secret               string `yaml:"secret" json:"-"`
	AdversaryInstruction string `yaml:"adversary_instruction" json:"-"`
	OutputFilter         bool   `yaml:"output_filter" json:"output_filter"`
	Description          string `yaml:"description,omitempty" json:"description,omitempty"` // enemy personality
	WeaknessHint         string `yaml:"weakness_hint,omitempty" json:"weakness_hint,omitempty"`
}

// Catalog is a validated, ordered set of stages. It is never mutated after
// construction and is safe for concurrent reads.
type Catalog struct {
	stages []Stage
}

type catalogFile struct {
	Stages []Stage `yaml:"stages"`
}

// New builds a catalog from stages, sorted by ordinal, and validates it.
func New(stages []Stage) (*Catalog, error) {
	c := &Catalog{stages: slices.Clone(stages)}
	slices.SortStableFunc(c.stages, func(a, b Stage) int { return a.Ordinal - b.Ordinal })
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the built-in three stage catalog.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultStages))
	if err != nil {
		panic(fmt.Sprintf("embedded stage catalog: %v", err))
	}
	return c
}

// Load reads a YAML document with a top-level "stages" list. Other top-level
// keys are ignored so stages and rewards can share one file.
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode stages: %w", err)
	}
	return New(f.Stages)
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage catalog %s: %w", path, err)
	}
	c, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks that ordinals are unique and contiguous from 1 and that
// every stage has a secret and an adversary instruction.
func (c *Catalog) Validate() error {
	var problems []string
	if len(c.stages) == 0 {
		problems = append(problems, "no stages defined")
	}
	for i, s := range c.stages {
		if s.Ordinal != i+1 {
			problems = append(problems, fmt.Sprintf("stage %q: ordinal %d, expected %d", s.Name, s.Ordinal, i+1))
		}
		if strings.TrimSpace(s.Secret) == "" {
			problems = append(problems, fmt.Sprintf("stage %d: secret is required", s.Ordinal))
		}
		if strings.TrimSpace(s.AdversaryInstruction) == "" {
			problems = append(problems, fmt.Sprintf("stage %d: adversary_instruction is required", s.Ordinal))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w:\n%s", ErrInvalidCatalog, strings.Join(problems, "\n"))
	}
	return nil
}

// Get returns the stage with the given ordinal. ok is false outside
// [1, Total()].
func (c *Catalog) Get(ordinal int) (Stage, bool) {
	if ordinal < 1 || ordinal > len(c.stages) {
		return Stage{}, false
	}
	return c.stages[ordinal-1], true
}

// Total returns the number of stages.
func (c *Catalog) Total() int {
	return len(c.stages)
}

// All returns a copy of the stages in ordinal order.
func (c *Catalog) All() []Stage {
	return slices.Clone(c.stages)
}
