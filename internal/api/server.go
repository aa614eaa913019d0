package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/store"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// RunStore is the persistence the server falls back to for runs that are no
// longer held in memory.
type RunStore interface {
	SaveRun(ctx context.Context, res *sim.Result) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetTrust(ctx context.Context, runID uuid.UUID) (map[trust.NodeID]trust.Table, error)
	ListMessages(ctx context.Context, runID uuid.UUID, tick int) ([]exchange.Message, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	logger   *slog.Logger
	runs     *Registry
	store    RunStore
	listener sim.Listener
	defaults sim.Settings
	maxNodes int
	maxTicks int
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithStore persists every run and serves evicted runs from the database.
func WithStore(st RunStore) Option {
	return func(s *Server) { s.store = st }
}

// WithListener attaches a lifecycle listener to every run the server executes.
func WithListener(l sim.Listener) Option {
	return func(s *Server) { s.listener = l }
}

// WithDefaults sets the settings that request bodies are overlaid on.
func WithDefaults(d sim.Settings) Option {
	return func(s *Server) { s.defaults = d }
}

func WithCapacity(n int) Option {
	return func(s *Server) { s.runs = NewRegistry(n) }
}

// WithLimits caps the node and tick counts a single run may request. Zero
// leaves that dimension unbounded.
func WithLimits(maxNodes, maxTicks int) Option {
	return func(s *Server) {
		s.maxNodes = maxNodes
		s.maxTicks = maxTicks
	}
}

func NewServer(port int, apiToken string, opts ...Option) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		logger:   slog.Default(),
		runs:     NewRegistry(64),
		defaults: sim.DefaultSettings(),
		maxNodes: 256,
		maxTicks: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/runs", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/", s.listRuns)
		r.Post("/", s.createRun)
		r.Get("/{id}", s.getRun)
		r.Get("/{id}/trust", s.getTrust)
		r.Get("/{id}/messages", s.getMessages)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Execute runs a simulation, keeps the result and persists it when a store
// is configured. Settings beyond the server limits fail with
// trust.ErrConfiguration before any tick runs.
func (s *Server) Execute(ctx context.Context, settings sim.Settings) (*sim.Result, error) {
	if err := s.checkLimits(settings); err != nil {
		return nil, err
	}
	opts := []sim.Option{sim.WithLogger(s.logger)}
	if s.listener != nil {
		opts = append(opts, sim.WithListener(s.listener))
	}
	res, err := sim.Run(ctx, settings, opts...)
	if err != nil {
		return nil, err
	}
	s.runs.Put(res)

	if s.store != nil {
		if err := s.store.SaveRun(ctx, res); err != nil {
			return res, fmt.Errorf("persist run %s: %w", res.RunID, err)
		}
	}
	return res, nil
}

func (s *Server) checkLimits(settings sim.Settings) error {
	if s.maxNodes > 0 && settings.Nodes > s.maxNodes {
		return trust.Invalid("nodes", settings.Nodes, fmt.Sprintf("exceeds the server limit of %d", s.maxNodes))
	}
	if s.maxTicks > 0 && settings.Ticks > s.maxTicks {
		return trust.Invalid("ticks", settings.Ticks, fmt.Sprintf("exceeds the server limit of %d", s.maxTicks))
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   s.runs.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
