package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/hackslash/internal/engine"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "hackslash-events:"
	publishTimeout = 2 * time.Second
)

// Message is the published form of an engine event. The raw enemy reply is
// never included.
type Message struct {
	ID         string            `json:"id"`
	Type       engine.EventType  `json:"type"`
	SessionID  string            `json:"session_id"`
	Stage      int               `json:"stage,omitempty"`
	Turn       int               `json:"turn,omitempty"`
	Text       string            `json:"text,omitempty"`
	Suppressed bool              `json:"suppressed,omitempty"`
	Status     engine.TurnStatus `json:"status,omitempty"`
	Rewards    []string          `json:"rewards,omitempty"`
	Error      string            `json:"error,omitempty"`
	At         time.Time         `json:"at"`
}

// NewMessage converts an engine event.
func NewMessage(sessionID string, ev engine.Event) Message {
	m := Message{
		ID:         uuid.NewString(),
		Type:       ev.Type,
		SessionID:  sessionID,
		Stage:      ev.Stage,
		Turn:       ev.Turn,
		Text:       ev.Text,
		Suppressed: ev.Suppressed,
		Status:     ev.Status,
		At:         time.Now().UTC(),
	}
	for _, r := range ev.Rewards {
		m.Rewards = append(m.Rewards, r.ID)
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	return m
}

// Channel returns the pub/sub channel for a session.
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

// Connect parses redisURL and verifies the server is reachable.
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis for event broadcast", "addr", opt.Addr)
	return rdb, nil
}

// Broadcaster publishes engine events to Redis Pub/Sub so other processes
// can follow a session live. It implements engine.Observer.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ engine.Observer = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Observe publishes ev. Failures are logged and never reach the game; a
// cancelled turn context does not stop the publish.
func (b *Broadcaster) Observe(ctx context.Context, sessionID string, ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	// don't fail the turn on publish error
	_ = b.Publish(ctx, NewMessage(sessionID, ev))
}

// Publish sends msg to its session channel.
func (b *Broadcaster) Publish(ctx context.Context, msg Message) error {
	channel := Channel(msg.SessionID)

	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", msg.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", msg.Type,
	)
	return nil
}

// Follow subscribes to a session channel and calls fn for every message
// until ctx is done or fn returns false. Undecodable payloads are skipped.
func Follow(ctx context.Context, redisClient *redis.Client, sessionID string, fn func(Message) bool) error {
	sub := redisClient.Subscribe(ctx, Channel(sessionID))
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			if !fn(msg) {
				return nil
			}
		}
	}
}
