package reward

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/jwebster45206/hackslash/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func ids(rs []Reward) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, 9, c.Len())
	assert.Equal(t, []string{
		"model_gpt4", "model_gpt4o", "model_gpt5",
		"prompt_100", "prompt_200", "prompt_300",
		"turns_5", "turns_7", "turns_10",
	}, ids(c.All()))
}

func TestRarityColor(t *testing.T) {
	assert.Equal(t, "#9e9e9e", RarityCommon.Color())
	assert.Equal(t, "#2196f3", RarityRare.Color())
	assert.Equal(t, "#9c27b0", RarityEpic.Color())
	assert.Equal(t, "#ff9800", RarityLegendary.Color())
	assert.Equal(t, "#9e9e9e", Rarity("mythic").Color())
}

func TestEligible(t *testing.T) {
	ladder := state.DefaultLadder()
	base := state.DefaultCapability()

	tests := []struct {
		name   string
		reward Reward
		cap    state.Capability
		want   bool
	}{
		{"higher tier", Reward{Effect: Effect{GenerationTier: ptr("gpt-4")}}, base, true},
		{"same tier", Reward{Effect: Effect{GenerationTier: ptr("gpt-3.5-turbo")}}, base, false},
		{
			name:   "lower tier",
			reward: Reward{Effect: Effect{GenerationTier: ptr("gpt-4")}},
			cap:    state.Capability{GenerationTier: "gpt-4o", InstructionLimit: 50, TurnBudget: 3},
			want:   false,
		},
		{"bigger limit", Reward{Effect: Effect{InstructionLimit: ptr(100)}}, base, true},
		{"equal limit", Reward{Effect: Effect{InstructionLimit: ptr(50)}}, base, false},
		{"bigger budget", Reward{Effect: Effect{TurnBudget: ptr(5)}}, base, true},
		{"equal budget", Reward{Effect: Effect{TurnBudget: ptr(3)}}, base, false},
		{
			name:   "combined effect needs every gate",
			reward: Reward{Effect: Effect{InstructionLimit: ptr(100), TurnBudget: ptr(3)}},
			cap:    base,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reward.Eligible(tt.cap, ladder))
		})
	}
}

func TestMaxTierNeverOffered(t *testing.T) {
	c := Default()
	ladder := state.DefaultLadder()
	cp := state.Capability{GenerationTier: "gpt-5", InstructionLimit: 50, TurnBudget: 3, StageOrdinal: 2}

	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		for _, r := range c.Offer(rng, cp, ladder, OfferSize) {
			assert.False(t, strings.HasPrefix(r.ID, "model_"), "offered %s at max tier", r.ID)
		}
	}
}

func TestOfferDistinctAndCapped(t *testing.T) {
	c := Default()
	ladder := state.DefaultLadder()
	rng := rand.New(rand.NewPCG(7, 7))

	for range 200 {
		offer := c.Offer(rng, state.DefaultCapability(), ladder, OfferSize)
		require.Len(t, offer, OfferSize)
		seen := map[string]bool{}
		for _, r := range offer {
			assert.False(t, seen[r.ID], "duplicate %s", r.ID)
			seen[r.ID] = true
		}
	}
}

func TestOfferCoversAllEligible(t *testing.T) {
	c := Default()
	ladder := state.DefaultLadder()
	rng := rand.New(rand.NewPCG(3, 4))

	counts := map[string]int{}
	for range 2000 {
		for _, r := range c.Offer(rng, state.DefaultCapability(), ladder, OfferSize) {
			counts[r.ID]++
		}
	}
	// Every one of the nine rewards is eligible at the start and should turn up.
	assert.Len(t, counts, 9)
	for id, n := range counts {
		assert.Greater(t, n, 400, id)
	}
}

func TestOfferFewerThanThree(t *testing.T) {
	c := Default()
	ladder := state.DefaultLadder()
	rng := rand.New(rand.NewPCG(1, 1))

	cp := state.Capability{GenerationTier: "gpt-5", InstructionLimit: 200, TurnBudget: 10}
	assert.Equal(t, []string{"prompt_300"}, ids(c.Offer(rng, cp, ladder, OfferSize)))

	cp.InstructionLimit = 300
	assert.Empty(t, c.Offer(rng, cp, ladder, OfferSize))

	cp = state.Capability{GenerationTier: "gpt-4o", InstructionLimit: 200, TurnBudget: 10}
	assert.Equal(t, []string{"model_gpt5", "prompt_300"}, ids(c.Offer(rng, cp, ladder, OfferSize)))
}

func TestEffectApply(t *testing.T) {
	cp := state.DefaultCapability()
	cp.StageOrdinal = 2

	got := Effect{GenerationTier: ptr("gpt-4o")}.Apply(cp)
	assert.Equal(t, state.Capability{GenerationTier: "gpt-4o", InstructionLimit: 50, TurnBudget: 3, StageOrdinal: 2}, got)

	got = Effect{InstructionLimit: ptr(200), TurnBudget: ptr(7)}.Apply(cp)
	assert.Equal(t, state.Capability{GenerationTier: "gpt-3.5-turbo", InstructionLimit: 200, TurnBudget: 7, StageOrdinal: 2}, got)
}

func TestValidate(t *testing.T) {
	ladder := state.DefaultLadder()
	tests := []struct {
		name    string
		rewards []Reward
		wantMsg string
	}{
		{"missing id", []Reward{{Effect: Effect{TurnBudget: ptr(4)}}}, "id is required"},
		{
			name: "duplicate id",
			rewards: []Reward{
				{ID: "a", Effect: Effect{TurnBudget: ptr(4)}},
				{ID: "a", Effect: Effect{TurnBudget: ptr(5)}},
			},
			wantMsg: "duplicate id",
		},
		{"empty effect", []Reward{{ID: "a"}}, "effect is empty"},
		{"unknown tier", []Reward{{ID: "a", Effect: Effect{GenerationTier: ptr("gpt-9")}}}, "not on the ladder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rewards, ladder)
			require.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadIgnoresStages(t *testing.T) {
	doc := `
stages:
  - ordinal: 1
rewards:
  - id: turns_4
    name: Small
    rarity: common
    effect:
      turn_budget: 4
`
	c, err := Load(strings.NewReader(doc), state.DefaultLadder())
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, 4, *c.All()[0].Effect.TurnBudget)
}
