// Package reward defines the upgrades offered after a stage clear and the
// rules for which of them a session may be offered.
package reward

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/jwebster45206/hackslash/pkg/state"
	"gopkg.in/yaml.v3"
)

//go:embed data/rewards.yaml
var defaultRewards []byte

// OfferSize is the number of rewards offered after a stage clear.
const OfferSize = 3

// ErrInvalidCatalog is returned when a reward catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid reward catalog")

// Rarity is cosmetic; it does not affect sampling.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Color returns the display color for the rarity. Unknown rarities render
// as common.
func (r Rarity) Color() string {
	switch r {
	case RarityRare:
		return "#2196f3"
	case RarityEpic:
		return "#9c27b0"
	case RarityLegendary:
		return "#ff9800"
	default:
		return "#9e9e9e"
	}
}

// Effect is a partial capability update. Nil fields are left alone.
type Effect struct {
	GenerationTier   *string `yaml:"generation_tier,omitempty" json:"generation_tier,omitempty"`
	InstructionLimit *int    `yaml:"instruction_limit,omitempty" json:"instruction_limit,omitempty"`
	TurnBudget       *int    `yaml:"turn_budget,omitempty" json:"turn_budget,omitempty"`
}

// Empty reports whether the effect changes nothing.
func (e Effect) Empty() bool {
	return e.GenerationTier == nil && e.InstructionLimit == nil && e.TurnBudget == nil
}

// Apply overwrites the fields the effect names and returns the result.
// StageOrdinal is never touched.
func (e Effect) Apply(c state.Capability) state.Capability {
	if e.GenerationTier != nil {
		c.GenerationTier = *e.GenerationTier
	}
	if e.InstructionLimit != nil {
		c.InstructionLimit = *e.InstructionLimit
	}
	if e.TurnBudget != nil {
		c.TurnBudget = *e.TurnBudget
	}
	return c
}

// Reward is an immutable upgrade definition.
type Reward struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Rarity      Rarity `yaml:"rarity" json:"rarity"`
	Effect      Effect `yaml:"effect" json:"effect"`
}

// Eligible reports whether every gated field r sets is a strict upgrade over
// c. A tier must rank above the current tier, and an instruction limit or
// turn budget must exceed the current value.
func (r Reward) Eligible(c state.Capability, ladder state.TierLadder) bool {
	e := r.Effect
	if e.GenerationTier != nil && !ladder.Higher(*e.GenerationTier, c.GenerationTier) {
		return false
	}
	if e.InstructionLimit != nil && *e.InstructionLimit <= c.InstructionLimit {
		return false
	}
	if e.TurnBudget != nil && *e.TurnBudget <= c.TurnBudget {
		return false
	}
	return true
}

// Catalog is an immutable, validated list of rewards.
type Catalog struct {
	rewards []Reward
}

type catalogFile struct {
	Rewards []Reward `yaml:"rewards"`
}

// New validates rewards against ladder and returns a catalog.
func New(rewards []Reward, ladder state.TierLadder) (*Catalog, error) {
	c := &Catalog{rewards: slices.Clone(rewards)}
	if err := c.Validate(ladder); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the built-in nine reward catalog.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultRewards), state.DefaultLadder())
	if err != nil {
		panic(fmt.Sprintf("embedded reward catalog: %v", err))
	}
	return c
}

// Load reads a YAML document with a top-level "rewards" list.
func Load(r io.Reader, ladder state.TierLadder) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rewards: %w", err)
	}
	return New(f.Rewards, ladder)
}

// LoadFile reads a reward catalog from path.
func LoadFile(path string, ladder state.TierLadder) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reward catalog %s: %w", path, err)
	}
	c, err := Load(bytes.NewReader(data), ladder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks IDs are present and unique, every effect changes
// something and tier targets are on the ladder.
func (c *Catalog) Validate(ladder state.TierLadder) error {
	var problems []string
	seen := make(map[string]bool, len(c.rewards))
	for i, r := range c.rewards {
		if r.ID == "" {
			problems = append(problems, fmt.Sprintf("reward %d: id is required", i))
		} else if seen[r.ID] {
			problems = append(problems, fmt.Sprintf("reward %q: duplicate id", r.ID))
		}
		seen[r.ID] = true
		if r.Effect.Empty() {
			problems = append(problems, fmt.Sprintf("reward %q: effect is empty", r.ID))
		}
		if t := r.Effect.GenerationTier; t != nil && !ladder.Contains(*t) {
			problems = append(problems, fmt.Sprintf("reward %q: tier %q is not on the ladder", r.ID, *t))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w:\n%s", ErrInvalidCatalog, strings.Join(problems, "\n"))
	}
	return nil
}

// All returns a copy of the rewards in catalog order.
func (c *Catalog) All() []Reward {
	return slices.Clone(c.rewards)
}

// Len returns the number of rewards.
func (c *Catalog) Len() int {
	return len(c.rewards)
}

// Eligible returns the rewards eligible for c, in catalog order.
func (c *Catalog) Eligible(cp state.Capability, ladder state.TierLadder) []Reward {
	var out []Reward
	for _, r := range c.rewards {
		if r.Eligible(cp, ladder) {
			out = append(out, r)
		}
	}
	return out
}

// Offer samples up to n distinct eligible rewards uniformly without
// replacement. When n or fewer are eligible, all of them are returned in
// catalog order; the offer is never padded.
func (c *Catalog) Offer(rng *rand.Rand, cp state.Capability, ladder state.TierLadder, n int) []Reward {
	eligible := c.Eligible(cp, ladder)
	if len(eligible) <= n {
		return eligible
	}
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	return eligible[:n:n]
}
