package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3-frozen/defi-overview/internal/metadata"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Metadata ---

// Load reads the stored metadata tables into a snapshot. The snapshot's load
// time is that of the last Save; before any Save it returns
// metadata.ErrNoStoredMetadata.
func (s *Store) Load(ctx context.Context) (*metadata.Snapshot, error) {
	protocols, err := s.loadProtocols(ctx)
	if err != nil {
		return nil, fmt.Errorf("load protocol metadata: %w", err)
	}
	chains, err := s.loadChains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chain metadata: %w", err)
	}

	var loadedAt time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT loaded_at FROM metadata_loads ORDER BY id DESC LIMIT 1`).Scan(&loadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, metadata.ErrNoStoredMetadata
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata timestamp: %w", err)
	}
	return metadata.NewSnapshot(protocols, chains, loadedAt), nil
}

func (s *Store) loadProtocols(ctx context.Context) (map[string]metadata.ProtocolMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, display_name, flags FROM protocol_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]metadata.ProtocolMeta)
	for rows.Next() {
		var (
			id    string
			m     metadata.ProtocolMeta
			flags []byte
		)
		if err := rows.Scan(&id, &m.Name, &flags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(flags, &m.Flags); err != nil {
			return nil, fmt.Errorf("flags of %s: %w", id, err)
		}
		out[id] = m
	}
	return out, rows.Err()
}

func (s *Store) loadChains(ctx context.Context) (map[string]metadata.ChainMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT slug, meta FROM chain_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]metadata.ChainMeta)
	for rows.Next() {
		var (
			slug string
			raw  []byte
			m    metadata.ChainMeta
		)
		if err := rows.Scan(&slug, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("chain %s: %w", slug, err)
		}
		out[slug] = m
	}
	return out, rows.Err()
}

// Save replaces the stored metadata tables with snap in one transaction.
func (s *Store) Save(ctx context.Context, snap *metadata.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM protocol_metadata`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chain_metadata`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for id, m := range snap.Protocols() {
		flags, err := json.Marshal(m.Flags)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO protocol_metadata (id, display_name, flags)
			VALUES ($1, $2, $3::jsonb)`, id, m.Name, string(flags))
	}
	for slug, m := range snap.Chains() {
		meta, err := json.Marshal(m)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO chain_metadata (slug, meta)
			VALUES ($1, $2::jsonb)`, slug, string(meta))
	}
	batch.Queue(`
		INSERT INTO metadata_loads (protocols, chains, loaded_at)
		VALUES ($1, $2, $3)`, snap.ProtocolCount(), snap.ChainCount(), snap.LoadedAt())

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return tx.Commit(ctx)
}
