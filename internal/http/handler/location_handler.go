package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/repository"
	"github.com/platemetrics/delivery-api/internal/service"
	"go.uber.org/zap"
)

type LocationHandler struct {
	locationService *service.LocationService
	maxUploadBytes  int64
	logger          *zap.Logger
}

func NewLocationHandler(locationService *service.LocationService, maxUploadSizeMB int64, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		maxUploadBytes:  maxUploadSizeMB << 20,
		logger:          logger,
	}
}

// ImportMaster imports the authoritative master location list (CSV or XLSX)
func (h *LocationHandler) ImportMaster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	clientID, err := queryOrFormUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	summary, err := h.locationService.ImportMaster(r.Context(), clientID, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientRequired), errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to import master location list", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to import master location list")
		}
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	filters := &repository.LocationFilters{
		Tag: r.URL.Query().Get("tag"),
	}
	if raw := r.URL.Query().Get("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid verified filter")
			return
		}
		filters.Verified = &verified
	}

	locations, err := h.locationService.List(r.Context(), clientID, filters)
	if err != nil {
		h.logger.Error("failed to list locations", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list locations")
		return
	}
	respondJSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid location id")
		return
	}

	location, err := h.locationService.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Location not found")
		return
	}
	respondJSON(w, http.StatusOK, location)
}

// Merge merges the source location (URL) into the target (body)
func (h *LocationHandler) Merge(w http.ResponseWriter, r *http.Request) {
	sourceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid location id")
		return
	}

	var req domain.MergeLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	if err := h.locationService.Merge(r.Context(), sourceID, req.TargetID); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to merge locations", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to merge locations")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid location id")
		return
	}

	if err := h.locationService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrCannotDeleteBucket) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to delete location", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to delete location")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Suggestions returns advisory merge suggestions for a client's locations
func (h *LocationHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	suggestions, err := h.locationService.MergeSuggestions(r.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to compute merge suggestions", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to compute merge suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []domain.MergeSuggestion{}
	}
	respondJSON(w, http.StatusOK, suggestions)
}
