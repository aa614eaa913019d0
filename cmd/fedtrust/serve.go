package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/fedtrust/internal/api"
	"github.com/MikeSquared-Agency/fedtrust/internal/hermes"
)

var (
	servePort  int
	serveTicks bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and accept run requests over NATS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		defaults, err := cfg.Simulation.Settings()
		if err != nil {
			return err
		}
		port := cfg.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		logger.Info("fedtrust starting", "port", port)

		opts := []api.Option{
			api.WithLogger(logger),
			api.WithDefaults(defaults),
			api.WithCapacity(cfg.MaxRuns),
			api.WithLimits(cfg.MaxNodes, cfg.MaxTicks),
		}

		// Database (optional, runs stay in memory without it)
		if cfg.DatabaseURL != "" {
			db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			opts = append(opts, api.WithStore(db))
		} else {
			logger.Warn("DATABASE_URL not set, runs are kept in memory only")
		}

		// NATS/Hermes (optional)
		var client *hermes.Client
		if cfg.NatsURL != "" {
			client, err = connectHermes(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			opts = append(opts, api.WithListener(hermes.NewEventPublisher(client, logger, serveTicks)))
		}

		srv := api.NewServer(port, cfg.APIToken, opts...)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Start(gctx)
		})
		if client != nil {
			if err := client.Subscribe(hermes.SubjectRunRequest, srv.HandleRunRequest(gctx)); err != nil {
				stop()
				_ = g.Wait()
				return err
			}
			g.Go(func() error {
				<-gctx.Done()
				return client.Drain()
			})
		}

		logger.Info("fedtrust ready", "port", port, "nats", client != nil, "database", cfg.DatabaseURL != "")
		if err := g.Wait(); err != nil && !isShutdown(ctx, err) {
			return err
		}
		logger.Info("fedtrust stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 8760, "HTTP port")
	serveCmd.Flags().BoolVar(&serveTicks, "tick-events", false, "publish an event after every tick")
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
