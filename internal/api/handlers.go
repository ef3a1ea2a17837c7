package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/loader"
	"github.com/trogers1052/options-monitor/internal/models"
	"github.com/trogers1052/options-monitor/internal/pipeline"
)

// SnapshotLoader provides project snapshots
type SnapshotLoader interface {
	Projects() []models.Project
	LoadProject(ctx context.Context, name string) (*models.ProjectSnapshot, error)
	Refresh(ctx context.Context, name string) (*models.ProjectSnapshot, error)
}

// EventPublisher announces rebuilt snapshots
type EventPublisher interface {
	PublishSnapshotRefreshed(ctx context.Context, snap *models.ProjectSnapshot) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	loader   SnapshotLoader
	producer EventPublisher
	log      zerolog.Logger
	now      func() time.Time
}

// NewHandler creates a new Handler. producer may be nil.
func NewHandler(loader SnapshotLoader, producer EventPublisher, log zerolog.Logger) *Handler {
	return &Handler{
		loader:   loader,
		producer: producer,
		log:      log.With().Str("component", "api").Logger(),
		now:      time.Now,
	}
}

// ListProjects handles GET /projects. A project without data still gets a
// card, marked no_data or error.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.loader.Projects()
	now := h.now()

	cards := make([]ProjectCard, 0, len(projects))
	for _, p := range projects {
		card := ProjectCard{Project: p, Status: StatusOK}
		snap, err := h.loader.LoadProject(r.Context(), p.Name)
		switch {
		case err == nil:
			card.Summary = newSummaryResponse(snap, now)
		case errors.Is(err, pipeline.ErrNoData):
			card.Status = StatusNoData
		default:
			h.log.Error().Err(err).Str("project", p.Name).Msg("failed to load project")
			card.Status = StatusError
		}
		cards = append(cards, card)
	}

	respondJSON(w, http.StatusOK, cards)
}

// GetProject handles GET /projects/{name}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetSummary handles GET /projects/{name}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newSummaryResponse(snap, h.now()))
}

// GetPositions handles GET /projects/{name}/positions. ?history=true
// includes every quote of each position.
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	withHistory := r.URL.Query().Get("history") == "true"
	positions := make([]PositionResponse, 0, len(snap.Positions))
	for _, g := range snap.Positions {
		positions = append(positions, newPositionResponse(g, withHistory))
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetPortfolioSeries handles GET /projects/{name}/series/portfolio?range=
func (h *Handler) GetPortfolioSeries(w http.ResponseWriter, r *http.Request) {
	tr, err := pipeline.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	rows := pipeline.FilterSince(snap.RawData, tr, h.now())
	respondJSON(w, http.StatusOK, pipeline.PortfolioSeries(rows))
}

// GetOptionSeries handles GET /projects/{name}/series/{metric}?range=
func (h *Handler) GetOptionSeries(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]
	if !pipeline.IsMetric(metric) {
		respondError(w, http.StatusBadRequest, "unknown metric: "+metric)
		return
	}
	tr, err := pipeline.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	series, err := pipeline.SeriesByOption(pipeline.FilterSince(snap.RawData, tr, h.now()), metric)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, series)
}

// RefreshProject handles POST /projects/{name}/refresh
func (h *Handler) RefreshProject(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	snap, err := h.loader.Refresh(r.Context(), name)
	if err != nil {
		h.respondLoadError(w, name, err)
		return
	}

	// Publish Kafka event
	if h.producer != nil {
		if err := h.producer.PublishSnapshotRefreshed(r.Context(), snap); err != nil {
			// Log error but don't fail the request
			h.log.Error().Err(err).Str("project", name).Msg("failed to publish snapshot event")
		}
	}

	respondJSON(w, http.StatusOK, newSummaryResponse(snap, h.now()))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*models.ProjectSnapshot, bool) {
	name := mux.Vars(r)["name"]
	snap, err := h.loader.LoadProject(r.Context(), name)
	if err != nil {
		h.respondLoadError(w, name, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) respondLoadError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, loader.ErrUnknownProject):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrNoData):
		respondError(w, http.StatusNotFound, pipeline.ErrNoData.Error())
	case errors.Is(err, csvparse.ErrRowMismatch), errors.Is(err, csvparse.ErrUnparsableNumber):
		h.log.Error().Err(err).Str("project", name).Msg("malformed project data")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Str("project", name).Msg("failed to load project")
		respondError(w, http.StatusInternalServerError, "failed to load project")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}
