// Package publish mirrors render events to Redis so other processes can
// follow the tracker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/star/isswatch/internal/iss"
	"github.com/star/isswatch/internal/render"
)

const (
	// DefaultChannel carries every render event.
	DefaultChannel = "isswatch:updates"

	latestKeyPrefix = "isswatch:latest:"
)

// Connect returns a client for addr, or nil when addr is empty.
func Connect(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Publisher is a render.Renderer that publishes each event on a Redis
// channel and keeps the latest event of each type under
// isswatch:latest:<type>.
type Publisher struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
}

// NewPublisher creates a Publisher. An empty channel selects
// DefaultChannel. A zero ttl keeps the latest keys forever.
func NewPublisher(client *redis.Client, channel string, ttl time.Duration) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel, ttl: ttl}
}

// Channel returns the channel events are published on.
func (p *Publisher) Channel() string { return p.channel }

// LatestKey returns the key holding the latest event of the given type.
func LatestKey(eventType string) string {
	return latestKeyPrefix + eventType
}

func (p *Publisher) RenderSatellite(ctx context.Context, pos iss.Position) error {
	return p.publish(ctx, render.Event{Type: render.EventISS, ISS: &pos})
}

func (p *Publisher) RenderUser(ctx context.Context, view render.UserView) error {
	return p.publish(ctx, render.Event{Type: render.EventUser, User: &view})
}

func (p *Publisher) publish(ctx context.Context, ev render.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, LatestKey(ev.Type), payload, p.ttl)
	pipe.Publish(ctx, p.channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Type, err)
	}
	return nil
}
