package noise

import (
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Config is the per-node perturbation setting. A node that carries a Config
// perturbs the channels it marks; Fraction is only consulted at setup to decide
// which nodes receive the config at all.
type Config struct {
	Kind                   Kind    `json:"noise_type" yaml:"noise_type"`
	ApplyToFeedback        bool    `json:"apply_to_feedback" yaml:"apply_to_feedback"`
	ApplyToModelParameters bool    `json:"apply_to_model_parameters" yaml:"apply_to_model_parameters"`
	Fraction               float64 `json:"noise_fraction" yaml:"noise_fraction"`
}

// Validate rejects unknown kinds and fractions outside [0, 1], NaN included.
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return trust.Invalid("noise_type", string(c.Kind), "unsupported noise type")
	}
	if !(c.Fraction >= 0 && c.Fraction <= 1) {
		return trust.Invalid("noise_fraction", c.Fraction, "must be within [0, 1]")
	}
	return nil
}

// Active reports whether the config perturbs any channel.
func (c *Config) Active() bool {
	return c != nil && (c.ApplyToFeedback || c.ApplyToModelParameters)
}
