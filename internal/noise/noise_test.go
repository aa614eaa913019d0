package noise

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

func seeded() rand.Source {
	return rand.NewPCG(1, 2)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		tag  string
		want Kind
	}{
		{"gaussian", Gaussian},
		{"Uniform", Uniform},
		{"salt-and-pepper", SaltAndPepper},
		{"salt_and_pepper", SaltAndPepper},
		{" cauchy ", Cauchy},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseKind(tt.tag)
			if err != nil {
				t.Fatalf("ParseKind(%q) returned error: %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestParseKind_Unsupported(t *testing.T) {
	for _, tag := range []string{"", "pink", "gauss"} {
		_, err := ParseKind(tag)
		if !errors.Is(err, trust.ErrConfiguration) {
			t.Errorf("ParseKind(%q) error = %v, want ErrConfiguration", tag, err)
		}
	}
}

func TestSampleLength(t *testing.T) {
	for _, k := range Kinds {
		t.Run(string(k), func(t *testing.T) {
			for _, n := range []int{0, 1, 10} {
				if got := len(k.Sample(seeded(), n)); got != n {
					t.Errorf("Sample(%d) returned %d values", n, got)
				}
				if got := len(k.PerturbVector(seeded(), make([]float64, n))); got != n {
					t.Errorf("PerturbVector(len %d) returned %d values", n, got)
				}
			}
		})
	}
}

func TestSpeckleOnZeroStaysZero(t *testing.T) {
	out := Speckle.PerturbVector(seeded(), make([]float64, 16))
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %f, want 0", i, v)
		}
	}
	if got := Speckle.Perturb(seeded(), 0); got != 0 {
		t.Errorf("scalar speckle on zero = %f, want 0", got)
	}
}

func TestPerturbVectorDoesNotMutateInput(t *testing.T) {
	in := []float64{0.1, 0.2, 0.3}
	orig := append([]float64(nil), in...)
	_ = Gaussian.PerturbVector(seeded(), in)
	if diff := cmp.Diff(orig, in); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}

func TestSampleDeterministicUnderSeed(t *testing.T) {
	for _, k := range Kinds {
		a := k.Sample(rand.NewPCG(7, 7), 8)
		b := k.Sample(rand.NewPCG(7, 7), 8)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s: same seed produced different draws:\n%s", k, diff)
		}
	}
}

func TestSampleSupport(t *testing.T) {
	const n = 2000

	t.Run("uniform", func(t *testing.T) {
		for _, v := range Uniform.Sample(seeded(), n) {
			if v < -0.1 || v > 0.1 {
				t.Fatalf("uniform draw %f outside [-0.1, 0.1]", v)
			}
		}
	})

	t.Run("binomial", func(t *testing.T) {
		for _, v := range Binomial.Sample(seeded(), n) {
			if v != -0.5 && v != 0.5 {
				t.Fatalf("binomial draw %f not in {-0.5, 0.5}", v)
			}
		}
	})

	t.Run("poisson", func(t *testing.T) {
		for _, v := range Poisson.Sample(seeded(), n) {
			count := v + 0.05
			if count < 0 || math.Abs(count-math.Round(count)) > 1e-9 {
				t.Fatalf("poisson draw %f is not an integer count shifted by 0.05", v)
			}
		}
	})

	t.Run("exponential", func(t *testing.T) {
		for _, v := range Exponential.Sample(seeded(), n) {
			if v < 0 {
				t.Fatalf("exponential draw %f is negative", v)
			}
		}
	})

	t.Run("salt and pepper", func(t *testing.T) {
		zeros := 0
		for _, v := range SaltAndPepper.Sample(seeded(), n) {
			if v < -1 || v > 1 {
				t.Fatalf("impulse draw %f outside [-1, 1]", v)
			}
			if v == 0 {
				zeros++
			}
		}
		// impulses hit with p=0.1, so the vast majority stay zero
		if zeros < n/2 {
			t.Errorf("expected sparse impulses, got %d zeros of %d", zeros, n)
		}
	})
}

func TestGaussianScale(t *testing.T) {
	const n = 20000
	var sum, sq float64
	for _, v := range Gaussian.Sample(seeded(), n) {
		sum += v
		sq += v * v
	}
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)
	if math.Abs(mean) > 0.01 {
		t.Errorf("gaussian mean = %f, want ~0", mean)
	}
	if math.Abs(std-0.1) > 0.01 {
		t.Errorf("gaussian std = %f, want ~0.1", std)
	}
}

func TestPerturbAdditive(t *testing.T) {
	src := rand.NewPCG(3, 4)
	draw := Uniform.SampleScalar(rand.NewPCG(3, 4))
	got := Uniform.Perturb(src, 2.0)
	if math.Abs(got-(2.0+draw)) > 1e-12 {
		t.Errorf("Perturb = %f, want %f", got, 2.0+draw)
	}
}

func TestPerturbMultiplicative(t *testing.T) {
	draw := Speckle.SampleScalar(rand.NewPCG(3, 4))
	got := Speckle.Perturb(rand.NewPCG(3, 4), 2.0)
	if math.Abs(got-2.0*(1+draw)) > 1e-12 {
		t.Errorf("Perturb = %f, want %f", got, 2.0*(1+draw))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Kind: Gaussian, ApplyToFeedback: true, Fraction: 0.3}, false},
		{"zero fraction", Config{Kind: Laplace}, false},
		{"unknown kind", Config{Kind: "pink", Fraction: 0.3}, true},
		{"fraction above one", Config{Kind: Gaussian, Fraction: 1.5}, true},
		{"negative fraction", Config{Kind: Gaussian, Fraction: -0.1}, true},
		{"NaN fraction", Config{Kind: Gaussian, Fraction: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && !errors.Is(err, trust.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigActive(t *testing.T) {
	var nilCfg *Config
	if nilCfg.Active() {
		t.Error("nil config must be inactive")
	}
	if (&Config{Kind: Gaussian}).Active() {
		t.Error("config with no channels must be inactive")
	}
	if !(&Config{Kind: Gaussian, ApplyToModelParameters: true}).Active() {
		t.Error("config with parameter channel must be active")
	}
}

func TestConfigDecodeNormalizesKind(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Kind
	}{
		{"hyphenated", `{"noise_type": "salt-and-pepper", "noise_fraction": 0.5}`, SaltAndPepper},
		{"capitalized", `{"noise_type": "Gaussian"}`, Gaussian},
		{"padded", `{"noise_type": " laplace "}`, Laplace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			if err := json.Unmarshal([]byte(tt.body), &cfg); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if cfg.Kind != tt.want {
				t.Errorf("kind = %q, want %q", cfg.Kind, tt.want)
			}
		})
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte("noise_type: Salt-And-Pepper\n"), &cfg); err != nil {
		t.Fatalf("yaml Unmarshal: %v", err)
	}
	if cfg.Kind != SaltAndPepper {
		t.Errorf("yaml kind = %q, want %q", cfg.Kind, SaltAndPepper)
	}

	err := json.Unmarshal([]byte(`{"noise_type": "pink"}`), &cfg)
	if !errors.Is(err, trust.ErrConfiguration) {
		t.Errorf("unknown kind: expected ErrConfiguration, got %v", err)
	}
}
