package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// ListMessages returns a run's message log in emission order. A negative tick
// returns every tick.
func (s *Store) ListMessages(ctx context.Context, runID uuid.UUID, tick int) ([]exchange.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, tick, sender, receiver, kind, sender_adversarial, feedback, parameters, aggregate
		FROM sim_messages
		WHERE run_id = $1 AND ($2 < 0 OR tick = $2)
		ORDER BY seq`,
		runID, tick,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []exchange.Message
	for rows.Next() {
		var m exchange.Message
		var sender, receiver int
		var kind string
		var fb, agg []byte
		if err := rows.Scan(&m.Seq, &m.Tick, &sender, &receiver, &kind, &m.SenderAdversarial, &fb, &m.Parameters, &agg); err != nil {
			return nil, err
		}
		m.Sender = trust.NodeID(sender)
		m.Receiver = trust.NodeID(receiver)
		m.Kind = exchange.Kind(kind)
		if err := json.Unmarshal(fb, &m.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback %d: %w", m.Seq, err)
		}
		if len(agg) > 0 {
			if err := json.Unmarshal(agg, &m.Aggregate); err != nil {
				return nil, fmt.Errorf("decode aggregate %d: %w", m.Seq, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
