package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// approvedChannel is the pub/sub channel downstream execution subscribes to.
const approvedChannel = "approved_positions"

// Publisher implements domain.ApprovedPublisher over Redis pub/sub. Each
// approved position is published as one JSON message carrying the position
// and its full validation trail.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher backed by the given Client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{rdb: c.Underlying()}
}

// approvedMessage is the wire shape consumed by downstream execution.
type approvedMessage struct {
	Position    domain.SyntheticArbitrage `json:"position"`
	Trail       []domain.ValidationResult `json:"trail"`
	PublishedAt time.Time                 `json:"published_at"`
}

// PublishApproved delivers a validated position with its validation trail.
func (p *Publisher) PublishApproved(ctx context.Context, arb domain.SyntheticArbitrage, trail []domain.ValidationResult) error {
	msg := approvedMessage{
		Position:    arb,
		Trail:       trail,
		PublishedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal approved position %s: %w", arb.ID, err)
	}
	if err := p.rdb.Publish(ctx, approvedChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish approved position %s: %w", arb.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ApprovedPublisher = (*Publisher)(nil)
