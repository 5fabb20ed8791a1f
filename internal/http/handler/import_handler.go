package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/platemetrics/delivery-api/internal/service"
	"go.uber.org/zap"
)

// ImportHandler accepts raw platform exports and corrective purges
type ImportHandler struct {
	ingestionService *service.IngestionService
	maxUploadBytes   int64
	logger           *zap.Logger
}

func NewImportHandler(ingestionService *service.IngestionService, maxUploadSizeMB int64, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		ingestionService: ingestionService,
		maxUploadBytes:   maxUploadSizeMB << 20,
		logger:           logger,
	}
}

// Upload ingests one multipart platform export. The platform comes from the
// URL, the client id and file from the form.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

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

	result, err := h.ingestionService.IngestFile(r.Context(), clientID, platform, header.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientRequired), errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to ingest export",
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
			respondWithError(w, http.StatusInternalServerError, "Failed to ingest export")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Purge deletes one platform's transactions inside a date range so a corrected
// export can be re-imported
func (h *ImportHandler) Purge(w http.ResponseWriter, r *http.Request) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

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
	if from.IsZero() || to.IsZero() {
		respondWithError(w, http.StatusBadRequest, "Both from and to are required")
		return
	}

	deleted, err := h.ingestionService.PurgeRange(r.Context(), clientID, platform, from, to)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientRequired), errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to purge transactions",
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
			respondWithError(w, http.StatusInternalServerError, "Failed to purge transactions")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
