package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MikeSquared-Agency/fedtrust/internal/config"
	"github.com/MikeSquared-Agency/fedtrust/internal/noise"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
)

var (
	configPath string
	flagCfg    config.Config

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer = nopCloser{}
)

var rootCmd = &cobra.Command{
	Use:   "fedtrust",
	Short: "Trust propagation simulator for federated learning networks",
	Long: `fedtrust simulates how trust scores propagate between the nodes of a
federated learning network. Nodes exchange feedback about their peers every
tick, in a full mesh or through a central server, and fold second-hand
feedback into their own trust tables. Adversarial and noisy nodes can be mixed
in to study how quickly the network isolates them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		applyOverrides(cmd.Flags(), &loaded)
		cfg = loaded

		l, closer, err := setupLogging(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return err
		}
		logger, logCloser = l, closer
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logCloser.Close()
	},
}

func init() {
	def := sim.DefaultSettings()
	fs := rootCmd.PersistentFlags()

	fs.StringVarP(&configPath, "config", "c", "", "YAML scenario file overlaid on the environment")
	fs.StringVar(&flagCfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&flagCfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&flagCfg.LogFile, "log-file", "", "also append logs to this file")

	s := &flagCfg.Simulation
	fs.IntVarP(&s.Nodes, "nodes", "n", def.Nodes, "number of nodes")
	fs.IntVarP(&s.Ticks, "ticks", "t", def.Ticks, "number of ticks")
	fs.StringVar(&s.Topology, "topology", def.Topology, "topology: peer-to-peer or server")
	fs.IntVar(&s.Hub, "hub", def.Hub, "hub node id for the server topology")
	fs.Float64Var(&s.Alpha, "alpha", def.Alpha, "trust learning rate, within (0, 1]")
	fs.Float64Var(&s.AdversarialFraction, "adversarial-fraction", def.AdversarialFraction, "fraction of adversarial nodes")
	fs.StringVar(&s.AdversarialDistribution, "adversarial-distribution", def.AdversarialDistribution, "adversarial feedback: uniform or normal")
	fs.StringVar(&s.AdversarySelection, "adversary-selection", def.AdversarySelection, "adversary placement: random or first")
	fs.IntVar(&s.ParameterCount, "parameters", def.ParameterCount, "local model parameter count")
	fs.Uint64Var(&s.Seed, "seed", 0, "random seed")
	fs.StringVar(&s.NoiseType, "noise", "", "noise kind ("+noise.KindNames()+"), empty disables noise")
	fs.BoolVar(&s.NoiseFeedback, "noise-feedback", false, "apply noise to outgoing feedback")
	fs.BoolVar(&s.NoiseModelParameters, "noise-parameters", false, "apply noise to outgoing parameters")
	fs.Float64Var(&s.NoiseFraction, "noise-fraction", 0, "fraction of nodes that are noisy")
}

// applyOverrides copies every flag the user set explicitly onto cfg.
func applyOverrides(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	f, s := &flagCfg.Simulation, &cfg.Simulation

	set("log-level", func() { cfg.LogLevel = flagCfg.LogLevel })
	set("log-format", func() { cfg.LogFormat = flagCfg.LogFormat })
	set("log-file", func() { cfg.LogFile = flagCfg.LogFile })

	set("nodes", func() { s.Nodes = f.Nodes })
	set("ticks", func() { s.Ticks = f.Ticks })
	set("topology", func() { s.Topology = f.Topology })
	set("hub", func() { s.Hub = f.Hub })
	set("alpha", func() { s.Alpha = f.Alpha })
	set("adversarial-fraction", func() { s.AdversarialFraction = f.AdversarialFraction })
	set("adversarial-distribution", func() { s.AdversarialDistribution = f.AdversarialDistribution })
	set("adversary-selection", func() { s.AdversarySelection = f.AdversarySelection })
	set("parameters", func() { s.ParameterCount = f.ParameterCount })
	set("seed", func() { s.Seed = f.Seed })
	set("noise", func() { s.NoiseType = f.NoiseType })
	set("noise-feedback", func() { s.NoiseFeedback = f.NoiseFeedback })
	set("noise-parameters", func() { s.NoiseModelParameters = f.NoiseModelParameters })
	set("noise-fraction", func() { s.NoiseFraction = f.NoiseFraction })
}
