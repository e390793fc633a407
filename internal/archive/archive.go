// internal/archive/archive.go

// Package archive persists finished-game records to PostgreSQL. It sits at
// the far end of the history pipeline: the engine publishes to Redis, the
// historian pops from the queue and lands batches here.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizzatron/quizzatron/internal/quiz"
)

// Archive wraps a pgx pool for game-history writes.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and verifies it with a short ping.
func Connect(ctx context.Context, dsn string) (*Archive, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// EnsureSchema creates the game-history table if it does not exist.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS quiz_games (
			id           BIGSERIAL PRIMARY KEY,
			lobby_code   TEXT        NOT NULL,
			finished_at  TIMESTAMPTZ NOT NULL,
			num_players  INT         NOT NULL,
			settings     JSONB       NOT NULL,
			results      JSONB       NOT NULL,
			archived_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := a.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertGameRecords lands a batch of records in a single transaction; either
// the whole batch commits or none of it does, so a crashed historian can
// requeue without partial duplicates.
func (a *Archive) InsertGameRecords(ctx context.Context, recs []quiz.GameRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return beginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertGameTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameTx: %w", err)
			}
		}
		return nil
	})
}

func insertGameTx(ctx context.Context, tx pgx.Tx, rec quiz.GameRecord) error {
	settings, err := json.Marshal(rec.Settings)
	if err != nil {
		return err
	}
	results, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO quiz_games (lobby_code, finished_at, num_players, settings, results)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(ctx, q,
		rec.LobbyCode, time.Unix(rec.FinishedAt, 0).UTC(), len(rec.Players), settings, results,
	)
	return err
}

// Close releases the pool.
func (a *Archive) Close() { a.pool.Close() }

// beginTxFunc starts a transaction, calls f, and commits or rolls back.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
