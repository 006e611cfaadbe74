package state

import (
	"slices"
	"strings"
)

// Default capability values for a fresh session.
const (
	DefaultGenerationTier   = "gpt-3.5-turbo"
	DefaultInstructionLimit = 50
	DefaultTurnBudget       = 3
	FirstStage              = 1
)

// Capability is the part of a session that rewards upgrade. Apart from
// StageOrdinal, which advances with every cleared stage, fields only ever
// increase during a session.
type Capability struct {
	GenerationTier   string `json:"generation_tier" yaml:"generation_tier"`
	InstructionLimit int    `json:"instruction_limit" yaml:"instruction_limit"`
	TurnBudget       int    `json:"turn_budget" yaml:"turn_budget"`
	StageOrdinal     int    `json:"stage_ordinal" yaml:"stage_ordinal"`
}

// DefaultCapability returns the starting capability of a new session.
func DefaultCapability() Capability {
	return Capability{
		GenerationTier:   DefaultGenerationTier,
		InstructionLimit: DefaultInstructionLimit,
		TurnBudget:       DefaultTurnBudget,
		StageOrdinal:     FirstStage,
	}
}

// TierLadder is the ordered list of generation tiers, weakest first.
type TierLadder []string

// DefaultLadder returns the built-in tier order.
func DefaultLadder() TierLadder {
	return TierLadder{"gpt-3.5-turbo", "gpt-4", "gpt-4o", "gpt-5"}
}

// ParseLadder parses a comma separated tier list. Blank entries are dropped.
func ParseLadder(s string) TierLadder {
	var l TierLadder
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			l = append(l, part)
		}
	}
	return l
}

// Rank returns the position of tier on the ladder, or -1 if it is not on it.
func (l TierLadder) Rank(tier string) int {
	return slices.Index(l, tier)
}

// Contains reports whether tier is on the ladder.
func (l TierLadder) Contains(tier string) bool {
	return l.Rank(tier) >= 0
}

// Max returns the highest tier, or "" for an empty ladder.
func (l TierLadder) Max() string {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}

// Higher reports whether candidate ranks strictly above current. A candidate
// that is not on the ladder is never higher.
func (l TierLadder) Higher(candidate, current string) bool {
	c := l.Rank(candidate)
	if c < 0 {
		return false
	}
	return c > l.Rank(current)
}
