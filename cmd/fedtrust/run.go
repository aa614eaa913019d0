package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/hermes"
	"github.com/MikeSquared-Agency/fedtrust/internal/report"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/store"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

var (
	showMessages bool
	messageTick  int
	jsonOutput   bool
	saveRun      bool
	publishRun   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and print the final trust tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		settings, err := cfg.Simulation.Settings()
		if err != nil {
			return err
		}

		opts := []sim.Option{sim.WithLogger(logger)}
		if publishRun {
			client, err := connectHermes(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			opts = append(opts, sim.WithListener(hermes.NewEventPublisher(client, logger, true)))
		}

		res, err := sim.Run(ctx, settings, opts...)
		if err != nil {
			return err
		}

		if saveRun {
			if err := persist(ctx, res); err != nil {
				return err
			}
		}
		return printResult(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&showMessages, "messages", "m", false, "print the message log")
	runCmd.Flags().IntVar(&messageTick, "tick", -1, "only print messages of this tick")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "persist the run to DATABASE_URL")
	runCmd.Flags().BoolVar(&publishRun, "publish", false, "publish run events to NATS_URL")
}

func selectedMessages(res *sim.Result) []exchange.Message {
	if messageTick >= 0 {
		return res.Log.ByTick(messageTick)
	}
	return res.Log.Entries()
}

type resultJSON struct {
	*sim.Result
	Summary  sim.Summary        `json:"summary"`
	Messages []exchange.Message `json:"messages,omitempty"`
}

func printResult(out io.Writer, res *sim.Result) error {
	if jsonOutput {
		doc := resultJSON{Result: res, Summary: res.Summary()}
		if showMessages {
			doc.Messages = selectedMessages(res)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	w := report.NewWriter(out)
	if err := w.Trust(res); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := w.Summary(res); err != nil {
		return err
	}
	if showMessages {
		fmt.Fprintln(out)
		return w.Messages(selectedMessages(res))
	}
	return nil
}

func connectHermes(ctx context.Context) (*hermes.Client, error) {
	if cfg.NatsURL == "" {
		return nil, trust.Invalid("nats_url", "", "NATS_URL is required to publish events")
	}
	client, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("NATS connected", "url", cfg.NatsURL)
	return client, nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, trust.Invalid("database_url", "", "DATABASE_URL is required to persist runs")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database connected")
	return db, nil
}

func persist(ctx context.Context, results ...*sim.Result) error {
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, res := range results {
		if err := db.SaveRun(ctx, res); err != nil {
			return err
		}
		logger.Info("run saved", "run_id", res.RunID)
	}
	return nil
}
