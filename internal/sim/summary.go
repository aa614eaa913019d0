package sim

import (
	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Summary condenses a result into the headline numbers of a run.
type Summary struct {
	// ReceivedTrust is the mean trust other nodes hold in each node.
	ReceivedTrust   map[trust.NodeID]float64 `json:"received_trust"`
	HonestMean      float64                  `json:"honest_mean"`
	AdversarialMean float64                  `json:"adversarial_mean"`
	Messages        int                      `json:"messages"`
	Broadcasts      int                      `json:"broadcasts"`
}

// Summary aggregates the final trust tables. Self entries are ignored.
func (r *Result) Summary() Summary {
	sums := make(map[trust.NodeID]float64)
	counts := make(map[trust.NodeID]int)
	for _, holder := range r.Nodes {
		tbl := r.FinalTrust[holder.ID]
		for _, target := range tbl.Keys() {
			if target == holder.ID {
				continue
			}
			sums[target] += tbl[target]
			counts[target]++
		}
	}

	s := Summary{ReceivedTrust: make(map[trust.NodeID]float64, len(sums))}
	honest, adversarial := trust.Table{}, trust.Table{}
	for _, n := range r.Nodes {
		if counts[n.ID] == 0 {
			continue
		}
		mean := sums[n.ID] / float64(counts[n.ID])
		s.ReceivedTrust[n.ID] = mean
		if n.Adversarial {
			adversarial[n.ID] = mean
		} else {
			honest[n.ID] = mean
		}
	}
	s.HonestMean = honest.Mean()
	s.AdversarialMean = adversarial.Mean()
	if r.Log != nil {
		s.Messages = r.Log.Len()
		s.Broadcasts = r.Log.Count(exchange.KindBroadcast)
	}
	return s
}

// Adversaries returns the ids of adversarial nodes.
func (r *Result) Adversaries() []trust.NodeID {
	var out []trust.NodeID
	for _, n := range r.Nodes {
		if n.Adversarial {
			out = append(out, n.ID)
		}
	}
	return out
}
