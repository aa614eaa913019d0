package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted header of a simulation run.
type RunRecord struct {
	ID         uuid.UUID         `json:"run_id"`
	Topology   string            `json:"topology"`
	Settings   sim.Settings      `json:"settings"`
	Nodes      []sim.NodeSummary `json:"nodes"`
	Ticks      int               `json:"ticks"`
	Messages   int               `json:"messages"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// SaveRun writes a finished run: header, final trust tables and the full message log.
func (s *Store) SaveRun(ctx context.Context, res *sim.Result) error {
	settings, err := json.Marshal(res.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	nodes, err := json.Marshal(res.Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	messages := 0
	if res.Log != nil {
		messages = res.Log.Len()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert run header
	_, err = tx.Exec(ctx, `
		INSERT INTO sim_runs (id, topology, settings, nodes, ticks, messages, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		res.RunID, res.Settings.Topology, settings, nodes, res.Ticks, messages, res.StartedAt, res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	// 2. Insert final trust tables
	batch := &pgx.Batch{}
	for _, n := range res.Nodes {
		tbl := res.FinalTrust[n.ID]
		for _, target := range tbl.Keys() {
			batch.Queue(`
				INSERT INTO sim_trust (run_id, holder, target, score)
				VALUES ($1, $2, $3, $4)`,
				res.RunID, int(n.ID), int(target), tbl[target],
			)
		}
	}

	// 3. Insert message log
	if res.Log != nil {
		for _, m := range res.Log.Entries() {
			fb, err := json.Marshal(m.Feedback)
			if err != nil {
				return fmt.Errorf("marshal feedback %d: %w", m.Seq, err)
			}
			var agg []byte
			if m.Aggregate != nil {
				if agg, err = json.Marshal(m.Aggregate); err != nil {
					return fmt.Errorf("marshal aggregate %d: %w", m.Seq, err)
				}
			}
			params := m.Parameters
			if params == nil {
				params = []float64{}
			}
			batch.Queue(`
				INSERT INTO sim_messages (run_id, seq, tick, sender, receiver, kind, sender_adversarial, feedback, parameters, aggregate)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				res.RunID, m.Seq, m.Tick, int(m.Sender), int(m.Receiver), string(m.Kind), m.SenderAdversarial, fb, params, agg,
			)
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert trust and messages: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRun fetches a run header by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, topology, settings, nodes, ticks, messages, started_at, finished_at
		FROM sim_runs
		WHERE id = $1`,
		id,
	)
	rec, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topology, settings, nodes, ticks, messages, started_at, finished_at
		FROM sim_runs
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the cascade, its trust and messages.
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sim_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var settings, nodes []byte
	err := row.Scan(&rec.ID, &rec.Topology, &settings, &nodes, &rec.Ticks, &rec.Messages, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &rec.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal(nodes, &rec.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return &rec, nil
}
