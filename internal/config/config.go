package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/fedtrust/internal/noise"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
)

type Config struct {
	Port        int    `yaml:"port"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogFile     string `yaml:"log_file"`
	APIToken    string `yaml:"api_token"`
	MaxRuns     int    `yaml:"max_runs"`
	MaxNodes    int    `yaml:"max_nodes"`
	MaxTicks    int    `yaml:"max_ticks"`
	Parallelism int    `yaml:"parallelism"`

	Simulation Simulation `yaml:"simulation"`
}

// Simulation holds the run defaults. Noise is only applied when NoiseType is set.
type Simulation struct {
	Nodes                   int     `yaml:"nodes"`
	Ticks                   int     `yaml:"ticks"`
	Topology                string  `yaml:"topology"`
	Hub                     int     `yaml:"hub"`
	Alpha                   float64 `yaml:"alpha"`
	AdversarialFraction     float64 `yaml:"adversarial_fraction"`
	AdversarialDistribution string  `yaml:"adversarial_distribution"`
	AdversarySelection      string  `yaml:"adversary_selection"`
	ParameterCount          int     `yaml:"parameter_count"`
	Seed                    uint64  `yaml:"seed"`

	NoiseType            string  `yaml:"noise_type"`
	NoiseFeedback        bool    `yaml:"apply_to_feedback"`
	NoiseModelParameters bool    `yaml:"apply_to_model_parameters"`
	NoiseFraction        float64 `yaml:"noise_fraction"`
}

func Load() Config {
	def := sim.DefaultSettings()
	return Config{
		Port:        envInt("FEDTRUST_PORT", 8760),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("LOG_FORMAT", "text"),
		LogFile:     envStr("LOG_FILE", ""),
		APIToken:    envStr("FEDTRUST_API_TOKEN", ""),
		MaxRuns:     envInt("FEDTRUST_MAX_RUNS", 64),
		MaxNodes:    envInt("FEDTRUST_MAX_NODES", 256),
		MaxTicks:    envInt("FEDTRUST_MAX_TICKS", 1000),
		Parallelism: envInt("FEDTRUST_PARALLELISM", 4),
		Simulation: Simulation{
			Nodes:                   envInt("FEDTRUST_NODES", def.Nodes),
			Ticks:                   envInt("FEDTRUST_TICKS", def.Ticks),
			Topology:                envStr("FEDTRUST_TOPOLOGY", def.Topology),
			Hub:                     envInt("FEDTRUST_HUB", def.Hub),
			Alpha:                   envFloat("FEDTRUST_ALPHA", def.Alpha),
			AdversarialFraction:     envFloat("FEDTRUST_ADVERSARIAL_FRACTION", def.AdversarialFraction),
			AdversarialDistribution: envStr("FEDTRUST_ADVERSARIAL_DISTRIBUTION", def.AdversarialDistribution),
			AdversarySelection:      envStr("FEDTRUST_ADVERSARY_SELECTION", def.AdversarySelection),
			ParameterCount:          envInt("FEDTRUST_PARAMETER_COUNT", def.ParameterCount),
			Seed:                    envUint("FEDTRUST_SEED", 0),
			NoiseType:               envStr("FEDTRUST_NOISE_TYPE", ""),
			NoiseFeedback:           envBool("FEDTRUST_NOISE_FEEDBACK", false),
			NoiseModelParameters:    envBool("FEDTRUST_NOISE_MODEL_PARAMETERS", false),
			NoiseFraction:           envFloat("FEDTRUST_NOISE_FRACTION", 0),
		},
	}
}

// LoadFile loads the environment config and overlays the YAML file at path.
// Keys missing from the file keep their environment or default value.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Settings converts the simulation section into run settings. Tags are
// validated later by sim.Build.
func (s Simulation) Settings() (sim.Settings, error) {
	out := sim.Settings{
		Nodes:                   s.Nodes,
		Ticks:                   s.Ticks,
		Topology:                s.Topology,
		Hub:                     s.Hub,
		Alpha:                   s.Alpha,
		AdversarialFraction:     s.AdversarialFraction,
		AdversarialDistribution: s.AdversarialDistribution,
		AdversarySelection:      s.AdversarySelection,
		ParameterCount:          s.ParameterCount,
		Seed:                    s.Seed,
	}
	if strings.TrimSpace(s.NoiseType) != "" {
		kind, err := noise.ParseKind(s.NoiseType)
		if err != nil {
			return out, err
		}
		out.Noise = &noise.Config{
			Kind:                   kind,
			ApplyToFeedback:        s.NoiseFeedback,
			ApplyToModelParameters: s.NoiseModelParameters,
			Fraction:               s.NoiseFraction,
		}
	}
	return out, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
