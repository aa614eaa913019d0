package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// GetTrust fetches the final trust tables of a run, keyed by holder.
func (s *Store) GetTrust(ctx context.Context, runID uuid.UUID) (map[trust.NodeID]trust.Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT holder, target, score
		FROM sim_trust
		WHERE run_id = $1
		ORDER BY holder, target`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get trust: %w", err)
	}
	defer rows.Close()

	out := make(map[trust.NodeID]trust.Table)
	for rows.Next() {
		var holder, target int
		var score float64
		if err := rows.Scan(&holder, &target, &score); err != nil {
			return nil, err
		}
		tbl, ok := out[trust.NodeID(holder)]
		if !ok {
			tbl = trust.Table{}
			out[trust.NodeID(holder)] = tbl
		}
		tbl[trust.NodeID(target)] = score
	}
	return out, rows.Err()
}
