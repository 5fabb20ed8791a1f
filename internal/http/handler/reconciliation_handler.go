package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/platemetrics/delivery-api/internal/service"
	"go.uber.org/zap"
)

type ReconciliationHandler struct {
	reconciliationService *service.ReconciliationService
	logger                *zap.Logger
}

func NewReconciliationHandler(reconciliationService *service.ReconciliationService, logger *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// IncomeStatement renders the cross-platform income statement as JSON or CSV
func (h *ReconciliationHandler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	stmt, err := h.reconciliationService.BuildIncomeStatement(r.Context(), clientID, from, to)
	if err != nil {
		if errors.Is(err, service.ErrClientRequired) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to build income statement", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build income statement")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		data, err := h.reconciliationService.WriteCSV(stmt)
		if err != nil {
			h.logger.Error("failed to render income statement csv", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to render income statement")
			return
		}
		respondCSV(w, fmt.Sprintf("income-statement-%s.csv", clientID), data)
		return
	}

	respondJSON(w, http.StatusOK, stmt)
}
