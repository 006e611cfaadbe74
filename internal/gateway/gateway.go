// Package gateway turns conversation state into text generation calls for
// the two agents and the hint giver. Ally calls fall back through a fixed,
// finite list of tiers; enemy and advice calls never fall back.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/jwebster45206/hackslash/internal/config"
	"github.com/jwebster45206/hackslash/internal/services"
	"github.com/jwebster45206/hackslash/pkg/chat"
	"github.com/jwebster45206/hackslash/pkg/prompts"
	"github.com/jwebster45206/hackslash/pkg/state"
)

var (
	// ErrAllTiersFailed wraps the last cause once every ally tier has failed.
	ErrAllTiersFailed = errors.New("all generation tiers failed")

	// ErrEmptyResponse means a provider returned no text.
	ErrEmptyResponse = errors.New("empty response")
)

const (
	DefaultEnemyTier    = "gpt-3.5-turbo"
	DefaultMaxTokens    = 256
	DefaultAdviceTokens = 100
	DefaultTimeout      = 90 * time.Second
)

// DefaultFallbackTiers are tried in order after the requested ally tier.
func DefaultFallbackTiers() []string {
	return []string{"gpt-4o", "gpt-3.5-turbo"}
}

// Gateway issues generation requests on behalf of the engine.
type Gateway struct {
	llm          services.LLMService
	enemyTier    string
	fallback     []string
	maxTokens    int
	adviceTokens int
	timeout      time.Duration
	logger       *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithEnemyTier sets the fixed tier used for enemy replies.
func WithEnemyTier(tier string) Option {
	return func(g *Gateway) { g.enemyTier = tier }
}

// WithFallbackTiers sets the tiers tried after the requested ally tier.
func WithFallbackTiers(tiers ...string) Option {
	return func(g *Gateway) { g.fallback = tiers }
}

// WithMaxTokens sets the reply limit for ally and enemy speech.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) { g.maxTokens = n }
}

// WithAdviceTokens sets the reply limit for hints.
func WithAdviceTokens(n int) Option {
	return func(g *Gateway) { g.adviceTokens = n }
}

// WithTimeout bounds each generation call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// New creates a gateway over llm.
func New(llm services.LLMService, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		llm:          llm,
		enemyTier:    DefaultEnemyTier,
		fallback:     DefaultFallbackTiers(),
		maxTokens:    DefaultMaxTokens,
		adviceTokens: DefaultAdviceTokens,
		timeout:      DefaultTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromConfig creates a gateway with the limits and tiers from cfg.
func FromConfig(llm services.LLMService, cfg *config.Config, logger *slog.Logger) *Gateway {
	return New(llm, logger,
		WithEnemyTier(cfg.EnemyModel),
		WithFallbackTiers(cfg.FallbackTiers...),
		WithMaxTokens(cfg.MaxCompletionTokens),
		WithAdviceTokens(cfg.AdviceMaxTokens),
		WithTimeout(cfg.RequestTimeout),
	)
}

// EnemyTier returns the fixed enemy tier.
func (g *Gateway) EnemyTier() string {
	return g.enemyTier
}

// attempts returns the requested tier followed by the fallback tiers, each
// at most once.
func (g *Gateway) attempts(tier string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(g.fallback)+1)
	for _, t := range append([]string{tier}, g.fallback...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// relay forwards one provider stream to yield. started reports whether any
// fragment reached the consumer; more is false once the consumer stopped.
func (g *Gateway) relay(ctx context.Context, tier string, messages []chat.ChatMessage, yield func(string, error) bool) (started, more bool, err error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	for fragment, err := range g.llm.ChatStream(callCtx, tier, messages, services.GenerateOptions{MaxTokens: g.maxTokens}) {
		if err != nil {
			return started, true, err
		}
		if fragment == "" {
			continue
		}
		started = true
		if !yield(fragment, nil) {
			return true, false, nil
		}
	}
	if !started {
		return false, true, ErrEmptyResponse
	}
	return true, true, nil
}

// GenerateAllySpeech streams the ally's next message. A tier that errors or
// stays silent before its first fragment is replaced by the next fallback
// tier. Once text has been yielded it cannot be retracted, so a later
// failure is surfaced instead. When every tier fails the final error wraps
// ErrAllTiersFailed.
func (g *Gateway) GenerateAllySpeech(ctx context.Context, tier, instruction string, transcript state.Transcript) iter.Seq2[string, error] {
	messages := prompts.NewAlly().WithInstruction(instruction).WithTranscript(transcript).Build()

	return func(yield func(string, error) bool) {
		var lastErr error
		for _, t := range g.attempts(tier) {
			started, more, err := g.relay(ctx, t, messages, yield)
			if !more || err == nil {
				return
			}
			if started {
				yield("", fmt.Errorf("ally stream on %s: %w", t, err))
				return
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield("", ctxErr)
				return
			}
			lastErr = err
			g.logger.Warn("Ally generation failed, trying next tier", "tier", t, "error", err)
		}
		yield("", fmt.Errorf("%w: %w", ErrAllTiersFailed, lastErr))
	}
}

// GenerateEnemySpeech streams the enemy's reply to addressed on the fixed
// enemy tier. An empty reply is a valid, silent reply.
func (g *Gateway) GenerateEnemySpeech(ctx context.Context, adversaryInstruction string, transcript state.Transcript, addressed string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		messages, err := prompts.NewEnemy().
			WithInstruction(adversaryInstruction).
			WithTranscript(transcript).
			WithAddressed(addressed).
			Build()
		if err != nil {
			yield("", fmt.Errorf("build enemy prompt: %w", err))
			return
		}

		_, _, err = g.relay(ctx, g.enemyTier, messages, yield)
		if err != nil && !errors.Is(err, ErrEmptyResponse) {
			yield("", fmt.Errorf("enemy generation on %s: %w", g.enemyTier, err))
		}
	}
}

// GenerateAdvice asks tier for a short hint in reply to prompt.
func (g *Gateway) GenerateAdvice(ctx context.Context, tier, prompt string) (string, error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	out, err := g.llm.Chat(callCtx, tier, []chat.ChatMessage{chat.User(prompt)}, services.GenerateOptions{MaxTokens: g.adviceTokens})
	if err != nil {
		return "", fmt.Errorf("advice generation on %s: %w", tier, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("advice generation on %s: %w", tier, ErrEmptyResponse)
	}
	return out, nil
}
