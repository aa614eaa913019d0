package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sim_runs (
	id          uuid PRIMARY KEY,
	topology    text NOT NULL,
	settings    jsonb NOT NULL,
	nodes       jsonb NOT NULL,
	ticks       integer NOT NULL,
	messages    integer NOT NULL,
	started_at  timestamptz NOT NULL,
	finished_at timestamptz NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sim_trust (
	run_id uuid NOT NULL REFERENCES sim_runs(id) ON DELETE CASCADE,
	holder integer NOT NULL,
	target integer NOT NULL,
	score  double precision NOT NULL,
	PRIMARY KEY (run_id, holder, target)
);

CREATE TABLE IF NOT EXISTS sim_messages (
	run_id             uuid NOT NULL REFERENCES sim_runs(id) ON DELETE CASCADE,
	seq                integer NOT NULL,
	tick               integer NOT NULL,
	sender             integer NOT NULL,
	receiver           integer NOT NULL,
	kind               text NOT NULL,
	sender_adversarial boolean NOT NULL,
	feedback           jsonb NOT NULL,
	parameters         double precision[] NOT NULL,
	aggregate          jsonb,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS sim_messages_tick_idx ON sim_messages (run_id, tick);
`

// EnsureSchema creates the simulation tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
