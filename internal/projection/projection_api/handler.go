package projection_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/projection"
	"ms-lottery/internal/utils"
)

type Handler struct {
	Projections *projection.Service
	Logger      *logger.Logger
}

func NewHandler(projections *projection.Service, log *logger.Logger) *Handler {
	return &Handler{Projections: projections, Logger: log}
}

// GetProjection → GET /rounds/{roundId}/projection
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	view, err := h.Projections.GetProjection(r.Context(), roundID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, models.ErrRoundNotFound):
			status = http.StatusNotFound
		case errors.Is(err, models.ErrStoreUnavailable):
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(utils.ErrorResponse("projection failed", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}
