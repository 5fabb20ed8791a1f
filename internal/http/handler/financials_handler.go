package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/service"
	"go.uber.org/zap"
)

type FinancialsHandler struct {
	financialsService *service.FinancialsService
	logger            *zap.Logger
}

func NewFinancialsHandler(financialsService *service.FinancialsService, logger *zap.Logger) *FinancialsHandler {
	return &FinancialsHandler{
		financialsService: financialsService,
		logger:            logger,
	}
}

// weeklyFiltersFromQuery builds weekly rollup filters from query parameters
func weeklyFiltersFromQuery(r *http.Request) (*repository.WeeklyFinancialFilters, error) {
	filters := &repository.WeeklyFinancialFilters{}

	if raw := r.URL.Query().Get("locationId"); raw != "" {
		id, err := queryUUID(r, "locationId")
		if err != nil {
			return nil, err
		}
		filters.LocationID = &id
	}
	weekStart, err := queryDate(r, "weekStart")
	if err != nil {
		return nil, err
	}
	if !weekStart.IsZero() {
		filters.WeekStart = &weekStart
	}
	weekEnd, err := queryDate(r, "weekEnd")
	if err != nil {
		return nil, err
	}
	if !weekEnd.IsZero() {
		filters.WeekEnd = &weekEnd
	}
	return filters, nil
}

// List returns the cached weekly rollup rows
func (h *FinancialsHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filters, err := weeklyFiltersFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.financialsService.List(r.Context(), clientID, filters)
	if err != nil {
		if errors.Is(err, service.ErrClientRequired) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to list weekly financials", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list weekly financials")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Regenerate rebuilds the client's weekly rollup cache from raw transactions
func (h *FinancialsHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryOrFormUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.financialsService.Regenerate(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, service.ErrClientRequired) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to regenerate weekly financials", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to regenerate weekly financials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"rows": rows})
}

// Export renders the weekly rollup as CSV. view=overview collapses locations
// into week-by-week portfolio totals.
func (h *FinancialsHandler) Export(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filters, err := weeklyFiltersFromQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var data []byte
	if r.URL.Query().Get("view") == "overview" {
		data, err = h.financialsService.ExportOverviewCSV(r.Context(), clientID, filters)
	} else {
		data, err = h.financialsService.ExportWeeklyCSV(r.Context(), clientID, filters)
	}
	if err != nil {
		if errors.Is(err, service.ErrClientRequired) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to export weekly financials", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to export weekly financials")
		return
	}

	respondCSV(w, fmt.Sprintf("weekly-financials-%s.csv", clientID), data)
}
