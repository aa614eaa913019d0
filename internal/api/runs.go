package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/hermes"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/store"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

const listLimit = 100

// RunView is the JSON shape of a run. Summary and FinalTrust are only set for
// runs still held in memory.
type RunView struct {
	RunID      uuid.UUID                    `json:"run_id"`
	Settings   sim.Settings                 `json:"settings"`
	Nodes      []sim.NodeSummary            `json:"nodes"`
	Ticks      int                          `json:"ticks"`
	Messages   int                          `json:"messages"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Summary    *sim.Summary                 `json:"summary,omitempty"`
	FinalTrust map[trust.NodeID]trust.Table `json:"final_trust,omitempty"`
}

func viewFromResult(res *sim.Result, withTrust bool) RunView {
	summary := res.Summary()
	v := RunView{
		RunID:      res.RunID,
		Settings:   res.Settings,
		Nodes:      res.Nodes,
		Ticks:      res.Ticks,
		Messages:   res.Log.Len(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    &summary,
	}
	if withTrust {
		v.FinalTrust = res.FinalTrust
	}
	return v
}

func viewFromRecord(rec store.RunRecord) RunView {
	return RunView{
		RunID:      rec.ID,
		Settings:   rec.Settings,
		Nodes:      rec.Nodes,
		Ticks:      rec.Ticks,
		Messages:   rec.Messages,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

// listRuns handles GET /api/v1/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		recs, err := s.store.ListRuns(r.Context(), listLimit)
		if err != nil {
			s.logger.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		views := make([]RunView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, viewFromRecord(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": views, "count": len(views)})
		return
	}

	results := s.runs.List()
	views := make([]RunView, 0, len(results))
	for _, res := range results {
		views = append(views, viewFromResult(res, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views, "count": len(views)})
}

// createRun handles POST /api/v1/runs. The body is overlaid on the server's
// default settings; an empty body runs the defaults.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	settings, err := s.decodeSettings(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.Execute(r.Context(), settings)
	switch {
	case errors.Is(err, trust.ErrConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case res == nil && err != nil:
		s.logger.Error("run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	case err != nil:
		s.logger.Error("failed to persist run", "run_id", res.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "run completed but could not be persisted")
		return
	}

	writeJSON(w, http.StatusCreated, viewFromResult(res, true))
}

// defaultSettings copies the server defaults so a decode cannot write through
// the shared noise config.
func (s *Server) defaultSettings() sim.Settings {
	settings := s.defaults
	if settings.Noise != nil {
		nc := *settings.Noise
		settings.Noise = &nc
	}
	return settings
}

func (s *Server) decodeSettings(body io.Reader) (sim.Settings, error) {
	settings := s.defaultSettings()
	if err := json.NewDecoder(body).Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return sim.Settings{}, err
	}
	return settings, nil
}

// getRun handles GET /api/v1/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRunID(w, r)
	if !ok {
		return
	}
	if res, ok := s.runs.Get(id); ok {
		writeJSON(w, http.StatusOK, viewFromResult(res, true))
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	rec, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, viewFromRecord(*rec))
}

// getTrust handles GET /api/v1/runs/{id}/trust
func (s *Server) getTrust(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRunID(w, r)
	if !ok {
		return
	}
	if res, ok := s.runs.Get(id); ok {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "trust": res.FinalTrust})
		return
	}
	if !s.knownInStore(r.Context(), w, id) {
		return
	}

	tables, err := s.store.GetTrust(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get trust", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get trust")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "trust": tables})
}

// getMessages handles GET /api/v1/runs/{id}/messages?tick=N
func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRunID(w, r)
	if !ok {
		return
	}
	tick := -1
	if raw := r.URL.Query().Get("tick"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid tick: "+raw)
			return
		}
		tick = n
	}

	var msgs []exchange.Message
	if res, ok := s.runs.Get(id); ok {
		if tick < 0 {
			msgs = res.Log.Entries()
		} else {
			msgs = res.Log.ByTick(tick)
		}
	} else {
		if !s.knownInStore(r.Context(), w, id) {
			return
		}
		var err error
		msgs, err = s.store.ListMessages(r.Context(), id, tick)
		if err != nil {
			s.logger.Error("failed to list messages", "run_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
	}
	if msgs == nil {
		msgs = []exchange.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "messages": msgs, "count": len(msgs)})
}

// knownInStore writes the error response and returns false when the run
// cannot be served from the store.
func (s *Server) knownInStore(ctx context.Context, w http.ResponseWriter, id uuid.UUID) bool {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return false
	}
	_, err := s.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return false
	}
	if err != nil {
		s.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return false
	}
	return true
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}

// HandleRunRequest returns a NATS handler that executes runs requested on
// hermes.SubjectRunRequest and replies with the run id. Request settings are
// overlaid on the server defaults the same way POST bodies are.
func (s *Server) HandleRunRequest(ctx context.Context) func(subject string, data []byte) any {
	return func(subject string, data []byte) any {
		settings := s.defaultSettings()
		req := hermes.RunRequest{Settings: &settings}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				s.logger.Warn("invalid run request", "subject", subject, "error", err)
				return hermes.RunReply{Error: "invalid JSON: " + err.Error()}
			}
		}

		res, err := s.Execute(ctx, settings)
		if res == nil {
			s.logger.Warn("requested run failed", "subject", subject, "error", err)
			return hermes.RunReply{Error: err.Error()}
		}
		if err != nil {
			s.logger.Error("failed to persist requested run", "run_id", res.RunID, "error", err)
		}
		return hermes.RunReply{RunID: res.RunID}
	}
}
