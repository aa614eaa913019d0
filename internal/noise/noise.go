package noise

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Kind selects one member of the closed family of noise distributions.
type Kind string

const (
	Gaussian      Kind = "gaussian"
	Uniform       Kind = "uniform"
	Binomial      Kind = "binomial"
	Poisson       Kind = "poisson"
	Exponential   Kind = "exponential"
	Speckle       Kind = "speckle"
	SaltAndPepper Kind = "salt_and_pepper"
	Laplace       Kind = "laplace"
	Cauchy        Kind = "cauchy"
)

// Kinds lists every supported kind in documentation order.
var Kinds = []Kind{Gaussian, Uniform, Binomial, Poisson, Exponential, Speckle, SaltAndPepper, Laplace, Cauchy}

// Fixed parameterization of each kind.
const (
	gaussianScale    = 0.1
	uniformHalfWidth = 0.1
	binomialP        = 0.1
	binomialCenter   = 0.5
	poissonLambda    = 0.1
	poissonCenter    = 0.05
	exponentialScale = 0.1
	speckleScale     = 0.1
	impulseP         = 0.1
	laplaceScale     = 0.1
)

// ParseKind resolves a noise tag. Hyphenated spellings are accepted.
func ParseKind(tag string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "-", "_"))
	if !k.Valid() {
		return "", trust.Invalid("noise_type", tag, "unsupported noise type")
	}
	return k, nil
}

// Valid reports whether k is a member of the supported family.
func (k Kind) Valid() bool {
	switch k {
	case Gaussian, Uniform, Binomial, Poisson, Exponential, Speckle, SaltAndPepper, Laplace, Cauchy:
		return true
	default:
		return false
	}
}

// UnmarshalText lets JSON and YAML bodies use the same spellings as ParseKind.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindNames joins the supported kinds for help and error text.
func KindNames() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Multiplicative reports whether the kind scales a value instead of shifting it.
func (k Kind) Multiplicative() bool {
	return k == Speckle
}

// SampleScalar draws a single perturbation.
func (k Kind) SampleScalar(src rand.Source) float64 {
	return k.sampler(src)()
}

// Sample draws n independent perturbations.
func (k Kind) Sample(src rand.Source, n int) []float64 {
	draw := k.sampler(src)
	out := make([]float64, n)
	for i := range out {
		out[i] = draw()
	}
	return out
}

// Perturb applies one draw of noise to a scalar.
func (k Kind) Perturb(src rand.Source, value float64) float64 {
	return apply(k, value, k.SampleScalar(src))
}

// PerturbVector returns a perturbed copy of vec; vec itself is left untouched.
func (k Kind) PerturbVector(src rand.Source, vec []float64) []float64 {
	draws := k.Sample(src, len(vec))
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = apply(k, v, draws[i])
	}
	return out
}

func apply(k Kind, value, n float64) float64 {
	if k.Multiplicative() {
		return value * (1 + n)
	}
	return value + n
}

// sampler binds the kind's distribution to src. Unknown kinds panic; ParseKind
// and Config.Validate gate every entry point.
func (k Kind) sampler(src rand.Source) func() float64 {
	switch k {
	case Gaussian, Speckle:
		d := distuv.Normal{Mu: 0, Sigma: gaussianScale, Src: src}
		return d.Rand
	case Uniform:
		d := distuv.Uniform{Min: -uniformHalfWidth, Max: uniformHalfWidth, Src: src}
		return d.Rand
	case Binomial:
		d := distuv.Bernoulli{P: binomialP, Src: src}
		return func() float64 { return d.Rand() - binomialCenter }
	case Poisson:
		d := distuv.Poisson{Lambda: poissonLambda, Src: src}
		return func() float64 { return d.Rand() - poissonCenter }
	case Exponential:
		d := distuv.Exponential{Rate: 1 / exponentialScale, Src: src}
		return d.Rand
	case SaltAndPepper:
		hit := distuv.Bernoulli{P: impulseP, Src: src}
		mag := distuv.Uniform{Min: -1, Max: 1, Src: src}
		return func() float64 { return hit.Rand() * mag.Rand() }
	case Laplace:
		d := distuv.Laplace{Mu: 0, Scale: laplaceScale, Src: src}
		return d.Rand
	case Cauchy:
		// Student's t with one degree of freedom is the standard Cauchy.
		d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 1, Src: src}
		return d.Rand
	default:
		panic("noise: unsupported kind " + string(k))
	}
}
