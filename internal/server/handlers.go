package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// RouteService answers point-to-point route queries.
type RouteService interface {
	FindPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*models.PathResult, error)
}

// IssueService answers bounding-box issue queries and cache maintenance.
type IssueService interface {
	GetIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error)
	ClearAll(ctx context.Context) error
}

// ImportService triggers graph (re)ingestion for a bounding box.
type ImportService interface {
	Import(ctx context.Context, bounds geo.Bounds) (*models.ImportResult, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	routes   RouteService
	issues   IssueService
	importer ImportService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, routes RouteService, issues IssueService, importer ImportService) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		routes:   routes,
		issues:   issues,
		importer: importer,
	}
}

// handleRoute serves GET /api/route.
func (h *APIHandlers) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	startLat, err1 := parseFloatParam(r, "start_lat")
	startLng, err2 := parseFloatParam(r, "start_lng")
	endLat, err3 := parseFloatParam(r, "end_lat")
	endLng, err4 := parseFloatParam(r, "end_lng")
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "start and end coordinates are required numeric parameters")
		return
	}

	result, err := h.routes.FindPath(r.Context(), startLat, startLng, endLat, endLng)
	if err != nil {
		h.writeDomainError(w, r, err, "route query failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleIssues serves GET /api/issues.
func (h *APIHandlers) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	bounds, err := parseBounds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bounds", "bounding box parameters are missing or not numeric")
		return
	}
	includeResolved := r.URL.Query().Get("include_resolved") == "true"

	summaries, err := h.issues.GetIssuesInBounds(r.Context(), bounds, includeResolved)
	if err != nil {
		h.writeDomainError(w, r, err, "issue query failed")
		return
	}
	if summaries == nil {
		summaries = []models.IssueSummary{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"issues": summaries,
		"count":  len(summaries),
	})
}

// handleImport serves POST /api/import.
func (h *APIHandlers) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var bounds geo.Bounds
	if err := json.NewDecoder(r.Body).Decode(&bounds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be a bounding box")
		return
	}

	result, err := h.importer.Import(r.Context(), bounds)
	if err != nil {
		h.writeDomainError(w, r, err, "graph import failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleCacheClear serves POST /api/cache/clear.
func (h *APIHandlers) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := h.issues.ClearAll(r.Context()); err != nil {
		h.logger.Error("cache clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "cache clear failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

// writeDomainError maps domain errors onto HTTP statuses with distinct
// machine-readable codes, so callers can message users differently for
// "no node nearby" versus "no route between these points".
func (h *APIHandlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidBounds):
		writeError(w, http.StatusBadRequest, "invalid_bounds", "bounding box parameters are invalid")
	case errors.Is(err, apperrors.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "node_not_found", "no road found near the requested coordinate")
	case errors.Is(err, apperrors.ErrNoPathFound):
		writeError(w, http.StatusNotFound, "no_path_found", "no route exists between these points")
	case errors.Is(err, apperrors.ErrIngestionFailed):
		h.logger.Error(logMsg, "error", err, "path", r.URL.Path)
		writeError(w, http.StatusBadGateway, "ingestion_failed", "map data import failed")
	default:
		h.logger.Error(logMsg, "error", err, "path", r.URL.Path)
		if apperrors.GetType(err) == apperrors.TypeExternal {
			writeError(w, http.StatusBadGateway, "upstream_unavailable", "external map data provider unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func parseFloatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New("missing parameter " + name)
	}
	return strconv.ParseFloat(raw, 64)
}

func parseBounds(r *http.Request) (geo.Bounds, error) {
	minLat, err1 := parseFloatParam(r, "min_lat")
	maxLat, err2 := parseFloatParam(r, "max_lat")
	minLng, err3 := parseFloatParam(r, "min_lng")
	maxLng, err4 := parseFloatParam(r, "max_lng")
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return geo.Bounds{}, err
	}
	return geo.Bounds{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}, nil
}
