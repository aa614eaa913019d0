package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/fedtrust/internal/report"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

var (
	sweepRuns     int
	sweepParallel int
	sweepSave     bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the same scenario over consecutive seeds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if sweepRuns < 1 {
			return trust.Invalid("runs", sweepRuns, "must be at least 1")
		}
		base, err := cfg.Simulation.Settings()
		if err != nil {
			return err
		}
		parallel := cfg.Parallelism
		if cmd.Flags().Changed("parallel") {
			parallel = sweepParallel
		}

		logger.Info("sweep starting", "runs", sweepRuns, "parallel", parallel, "base_seed", base.Seed)
		results, err := sim.RunBatch(ctx, sim.Seeds(base, sweepRuns), parallel, sim.WithLogger(logger))
		if err != nil {
			return err
		}

		if sweepSave {
			if err := persist(ctx, results...); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			summaries := make([]sim.Summary, len(results))
			for i, res := range results {
				summaries[i] = res.Summary()
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}
		return report.NewWriter(out).Sweep(results)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntVarP(&sweepRuns, "runs", "r", 10, "number of seeds to run")
	sweepCmd.Flags().IntVarP(&sweepParallel, "parallel", "p", 4, "runs in flight at once")
	sweepCmd.Flags().BoolVar(&sweepSave, "save", false, "persist every run to DATABASE_URL")
	sweepCmd.Flags().BoolVar(&jsonOutput, "json", false, "print run summaries as JSON")
}
