package feedback

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Policy produces the scalar a node reports about a peer's contribution.
type Policy interface {
	Feedback(peer trust.NodeID, src rand.Source) float64
}

// Range is a half-open uniform sampling interval [Min, Max).
type Range struct {
	Min float64
	Max float64
}

func (r Range) draw(src rand.Source) float64 {
	return distuv.Uniform{Min: r.Min, Max: r.Max, Src: src}.Rand()
}

// Honest estimates how much better predictions are with a peer's contribution
// than without it. The result can legitimately be negative.
type Honest struct {
	WithPeer    Range
	WithoutPeer Range
}

// NewHonest returns the default honest policy: accuracy with the peer in
// [0.7, 1.0), without it in [0.5, 0.9).
func NewHonest() Honest {
	return Honest{
		WithPeer:    Range{Min: 0.7, Max: 1.0},
		WithoutPeer: Range{Min: 0.5, Max: 0.9},
	}
}

func (h Honest) Feedback(_ trust.NodeID, src rand.Source) float64 {
	with := h.WithPeer.draw(src)
	without := h.WithoutPeer.draw(src)
	return with - without
}

// Distribution selects the malicious-feedback distribution of an adversarial node.
type Distribution string

const (
	DistUniform Distribution = "uniform"
	DistNormal  Distribution = "normal"
)

// ParseDistribution resolves an adversarial distribution tag.
func ParseDistribution(tag string) (Distribution, error) {
	d := Distribution(strings.ToLower(strings.TrimSpace(tag)))
	switch d {
	case DistUniform, DistNormal:
		return d, nil
	default:
		return "", trust.Invalid("adversarial_distribution", tag, "unsupported distribution")
	}
}

// UniformAdversary reports values drawn uniformly from a non-positive range.
type UniformAdversary struct {
	Range
}

func (u UniformAdversary) Feedback(_ trust.NodeID, src rand.Source) float64 {
	return u.draw(src)
}

// NormalAdversary reports values from a normal distribution with negative mean.
type NormalAdversary struct {
	Mean   float64
	StdDev float64
}

func (n NormalAdversary) Feedback(_ trust.NodeID, src rand.Source) float64 {
	return distuv.Normal{Mu: n.Mean, Sigma: n.StdDev, Src: src}.Rand()
}

// NewAdversary returns the malicious policy for dist.
func NewAdversary(dist Distribution) (Policy, error) {
	switch dist {
	case DistUniform:
		return UniformAdversary{Range{Min: -0.5, Max: 0.0}}, nil
	case DistNormal:
		return NormalAdversary{Mean: -0.2, StdDev: 0.1}, nil
	default:
		return nil, trust.Invalid("adversarial_distribution", string(dist), "unsupported distribution")
	}
}

// Constant always reports the same value. Useful for scripted scenarios.
type Constant float64

func (c Constant) Feedback(_ trust.NodeID, _ rand.Source) float64 {
	return float64(c)
}
