package draw_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lottery/internal/draw"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/utils"
)

type Handler struct {
	Engine *draw.Engine
	Logger *logger.Logger
}

func NewHandler(engine *draw.Engine, log *logger.Logger) *Handler {
	return &Handler{Engine: engine, Logger: log}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRoundNotClosed),
		errors.Is(err, models.ErrInsufficientPool):
		return http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DrawWinners → POST /rounds/{roundId}/draw
//
// Idempotent: repeating the call after a committed draw returns the same
// result.
func (h *Handler) DrawWinners(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	result, err := h.Engine.Draw(r.Context(), roundID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DrawWinners round=%s: %v", roundID, err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(utils.ErrorResponse("draw failed", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetWinners → GET /rounds/{roundId}/winners
func (h *Handler) GetWinners(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	result, err := h.Engine.Results.GetResult(r.Context(), roundID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(utils.ErrorResponse("winners lookup failed", err.Error()))
		return
	}
	if result == nil {
		http.Error(w, "No draw result for round "+roundID, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
