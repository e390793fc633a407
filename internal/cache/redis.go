// internal/cache/redis.go

// Package cache publishes finished-game records onto a Redis queue for the
// historian service. Publishing is best-effort: the engine never blocks on
// it and lobby state never depends on delivery.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// DefaultQueueName is the Redis list the historian consumes.
const DefaultQueueName = "quizzatron_games"

// Publisher pushes GameRecords onto a Redis list.
type Publisher struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// NewPublisher connects to Redis and verifies it with a short ping.
func NewPublisher(addr, queue string, logger *logrus.Logger) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.New()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: queue, logger: logger}, nil
}

// RecordGame serializes the record and RPushes it onto the queue. Implements
// quiz.HistoryRecorder.
func (p *Publisher) RecordGame(ctx context.Context, rec quiz.GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", p.queue, err)
	}
	p.logger.Debugf("Published game record for lobby %s to %s", rec.LobbyCode, p.queue)
	return nil
}

// Queue returns the list name records are published to.
func (p *Publisher) Queue() string { return p.queue }

// Close releases the Redis connection.
func (p *Publisher) Close() error { return p.rdb.Close() }
