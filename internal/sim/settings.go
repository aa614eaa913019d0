package sim

import (
	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/feedback"
	"github.com/MikeSquared-Agency/fedtrust/internal/node"
	"github.com/MikeSquared-Agency/fedtrust/internal/noise"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Adversary selection strategies.
const (
	SelectRandom = "random"
	SelectFirst  = "first"
)

// Settings is the configuration surface of one simulation run.
type Settings struct {
	Nodes                   int           `json:"nodes" yaml:"nodes"`
	Ticks                   int           `json:"ticks" yaml:"ticks"`
	Topology                string        `json:"topology" yaml:"topology"`
	Hub                     int           `json:"hub" yaml:"hub"`
	Alpha                   float64       `json:"alpha" yaml:"alpha"`
	AdversarialFraction     float64       `json:"adversarial_fraction" yaml:"adversarial_fraction"`
	AdversarialDistribution string        `json:"adversarial_distribution" yaml:"adversarial_distribution"`
	AdversarySelection      string        `json:"adversary_selection" yaml:"adversary_selection"`
	Noise                   *noise.Config `json:"noise,omitempty" yaml:"noise,omitempty"`
	ParameterCount          int           `json:"parameter_count" yaml:"parameter_count"`
	Seed                    uint64        `json:"seed" yaml:"seed"`
}

// DefaultSettings is five nodes, ten ticks, full mesh, no adversaries.
func DefaultSettings() Settings {
	return Settings{
		Nodes:                   5,
		Ticks:                   10,
		Topology:                exchange.TagPeerToPeer,
		Hub:                     0,
		Alpha:                   trust.DefaultAlpha,
		AdversarialFraction:     0,
		AdversarialDistribution: string(feedback.DistUniform),
		AdversarySelection:      SelectRandom,
		ParameterCount:          node.DefaultParameterCount,
	}
}

// resolved holds the parsed, validated form of Settings.
type resolved struct {
	topology     exchange.Topology
	distribution feedback.Distribution
	adversaries  int
}

// Validate checks every field and resolves every tag. All failures wrap
// trust.ErrConfiguration.
func (s Settings) Validate() error {
	_, err := s.resolve()
	return err
}

func (s Settings) resolve() (resolved, error) {
	var r resolved
	if s.Nodes < 1 {
		return r, trust.Invalid("nodes", s.Nodes, "must be at least 1")
	}
	if s.Ticks < 0 {
		return r, trust.Invalid("ticks", s.Ticks, "must be non-negative")
	}
	if !trust.ValidAlpha(s.Alpha) {
		return r, trust.Invalid("alpha", s.Alpha, "must be within (0, 1]")
	}
	if !(s.AdversarialFraction >= 0 && s.AdversarialFraction <= 1) {
		return r, trust.Invalid("adversarial_fraction", s.AdversarialFraction, "must be within [0, 1]")
	}
	if s.ParameterCount < 0 {
		return r, trust.Invalid("parameter_count", s.ParameterCount, "must be non-negative")
	}
	switch s.AdversarySelection {
	case "", SelectRandom, SelectFirst:
	default:
		return r, trust.Invalid("adversary_selection", s.AdversarySelection, "must be random or first")
	}

	topo, err := exchange.ParseTopology(s.Topology, trust.NodeID(s.Hub))
	if err != nil {
		return r, err
	}
	if star, ok := topo.(exchange.Star); ok && (int(star.Hub) < 0 || int(star.Hub) >= s.Nodes) {
		return r, trust.Invalid("hub", s.Hub, "no node matches the hub id")
	}
	r.topology = topo

	r.adversaries = int(float64(s.Nodes) * s.AdversarialFraction)
	r.distribution = feedback.DistUniform
	if s.AdversarialDistribution != "" {
		dist, err := feedback.ParseDistribution(s.AdversarialDistribution)
		if err != nil {
			return r, err
		}
		r.distribution = dist
	}

	if s.Noise != nil {
		if err := s.Noise.Validate(); err != nil {
			return r, err
		}
	}
	return r, nil
}
