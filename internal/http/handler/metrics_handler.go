package handler

import (
	"net/http"
	"strconv"

	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/service"
	"go.uber.org/zap"
)

type MetricsHandler struct {
	metricsService *service.MetricsService
	logger         *zap.Logger
}

func NewMetricsHandler(metricsService *service.MetricsService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		metricsService: metricsService,
		logger:         logger,
	}
}

// Overview returns the portfolio rollup with optional week-over-week deltas
func (h *MetricsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	filter, err := metricsFilterFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.metricsService.Overview(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to compute overview metrics", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// Platforms returns only the per-platform breakdown
func (h *MetricsHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	filter, err := metricsFilterFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.metricsService.Overview(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to compute platform metrics", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}
	respondJSON(w, http.StatusOK, overview.Platforms)
}

// ByLocation returns per-location rollups
func (h *MetricsHandler) ByLocation(w http.ResponseWriter, r *http.Request) {
	filter, err := metricsFilterFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.metricsService.ByLocation(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to compute location metrics", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

// metricsFilterFromQuery builds the metrics filter from query parameters
func metricsFilterFromQuery(r *http.Request) (domain.MetricsFilter, error) {
	var filter domain.MetricsFilter

	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		return filter, err
	}
	filter.ClientID = clientID

	locationID, err := queryUUID(r, "locationId")
	if err != nil {
		return filter, err
	}
	if raw := r.URL.Query().Get("locationId"); raw != "" {
		id := locationID
		filter.LocationID = &id
	}

	if raw := r.URL.Query().Get("platform"); raw != "" {
		platform, err := domain.ParsePlatform(raw)
		if err != nil {
			return filter, err
		}
		filter.Platform = &platform
	}

	weekStart, err := queryDate(r, "weekStart")
	if err != nil {
		return filter, err
	}
	if !weekStart.IsZero() {
		ws := domain.WeekStartOf(weekStart)
		filter.WeekStart = &ws
	}

	weekEnd, err := queryDate(r, "weekEnd")
	if err != nil {
		return filter, err
	}
	if !weekEnd.IsZero() {
		we := domain.WeekStartOf(weekEnd)
		filter.WeekEnd = &we
	}

	if raw := r.URL.Query().Get("includeUnmapped"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, err
		}
		filter.IncludeUnmapped = include
	}

	return filter, nil
}
