package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"raffleHarness/internal/model"
	"raffleHarness/internal/raffle"
)

const schema = `
CREATE TABLE IF NOT EXISTS raffle_events (
	chain_id      BIGINT      NOT NULL,
	block_number  BIGINT      NOT NULL,
	block_hash    TEXT        NOT NULL,
	tx_hash       TEXT        NOT NULL,
	log_index     BIGINT      NOT NULL,
	address       TEXT        NOT NULL,
	event_name    TEXT        NOT NULL,
	player        TEXT,
	winner        TEXT,
	request_id    NUMERIC(78, 0),
	removed       BOOLEAN     NOT NULL DEFAULT false,
	block_ts      BIGINT      NOT NULL,
	ingested_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, tx_hash, log_index)
);
CREATE TABLE IF NOT EXISTS raffle_winners (
	chain_id      BIGINT NOT NULL,
	address       TEXT   NOT NULL,
	tx_hash       TEXT   NOT NULL,
	winner        TEXT   NOT NULL,
	block_number  BIGINT NOT NULL,
	block_ts      BIGINT NOT NULL,
	PRIMARY KEY (chain_id, tx_hash)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for raffle history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutEventBatch upserts event records and records settled rounds.
func (s *Store) PutEventBatch(ctx context.Context, records []model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	winners := model.Winners(records, raffle.EventWinnerPicked)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		ingestedAt, err := time.Parse(time.RFC3339Nano, r.IngestedAt)
		if err != nil {
			return fmt.Errorf("ingested_at of %s: %w", r.Key(), err)
		}
		batch.Queue(`
			INSERT INTO raffle_events (
				chain_id, block_number, block_hash, tx_hash, log_index, address, event_name,
				player, winner, request_id, removed, block_ts, ingested_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, '')::numeric, $11, $12, $13)
			ON CONFLICT (chain_id, tx_hash, log_index)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				block_hash = EXCLUDED.block_hash,
				removed = EXCLUDED.removed,
				block_ts = EXCLUDED.block_ts,
				ingested_at = EXCLUDED.ingested_at
		`,
			int64(r.ChainID),
			int64(r.BlockNumber),
			r.BlockHash,
			r.TxHash,
			int64(r.LogIndex),
			r.Address,
			r.EventName,
			r.Player,
			r.Winner,
			r.RequestID,
			r.Removed,
			int64(r.Timestamp),
			ingestedAt,
		)
	}
	for _, w := range winners {
		batch.Queue(`
			INSERT INTO raffle_winners (chain_id, address, tx_hash, winner, block_number, block_ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (chain_id, tx_hash) DO NOTHING
		`,
			int64(w.ChainID),
			w.Address,
			w.TxHash,
			w.Winner,
			int64(w.BlockNumber),
			int64(w.Timestamp),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RecentWinners returns the latest settled rounds for a raffle, newest first.
func (s *Store) RecentWinners(ctx context.Context, chainID uint64, address string, limit int) ([]model.Winner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, address, winner, block_number, tx_hash, block_ts
		FROM raffle_winners
		WHERE chain_id = $1 AND address = $2
		ORDER BY block_number DESC
		LIMIT $3
	`, int64(chainID), address, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Winner, error) {
		var (
			w                     model.Winner
			chain, block, blockTS int64
		)
		if err := row.Scan(&chain, &w.Address, &w.Winner, &block, &w.TxHash, &blockTS); err != nil {
			return w, err
		}
		w.ChainID = uint64(chain)
		w.BlockNumber = uint64(block)
		w.Timestamp = uint64(blockTS)
		return w, nil
	})
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
