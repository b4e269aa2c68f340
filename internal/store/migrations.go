package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS protocol_metadata (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    flags JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chain_metadata (
    slug TEXT PRIMARY KEY,
    meta JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS metadata_loads (
    id BIGSERIAL PRIMARY KEY,
    protocols INT NOT NULL,
    chains INT NOT NULL,
    loaded_at TIMESTAMPTZ NOT NULL
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
