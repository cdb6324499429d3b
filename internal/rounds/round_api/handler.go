package round_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/rounds"
	"ms-lottery/internal/utils"
)

type Handler struct {
	RoundService *rounds.Service
	Logger       *logger.Logger
}

func NewHandler(roundService *rounds.Service, log *logger.Logger) *Handler {
	return &Handler{RoundService: roundService, Logger: log}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(utils.ErrorResponse("round operation failed", err.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// CreateRound → POST /rounds
func (h *Handler) CreateRound(w http.ResponseWriter, r *http.Request) {
	var req models.RoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid round JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	round, err := h.RoundService.ConfigureRound(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateRound: %v", err))
		h.writeError(w, err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateRound: created round %s", round.ID))
	h.writeJSON(w, http.StatusCreated, round)
}

// UpdateRound → PUT /rounds/{roundId}
func (h *Handler) UpdateRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	var req models.RoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid round JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	round, err := h.RoundService.UpdateRound(r.Context(), roundID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateRound: %v", err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, round)
}

// GetRound → GET /rounds/{roundId}
func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	round, err := h.RoundService.GetRound(r.Context(), roundID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, round)
}

// OpenRound → POST /rounds/{roundId}/open
func (h *Handler) OpenRound(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.RoundService.OpenRound, "open")
}

// CloseRound → POST /rounds/{roundId}/close
func (h *Handler) CloseRound(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.RoundService.CloseRound, "close")
}

// CancelRound → POST /rounds/{roundId}/cancel
func (h *Handler) CancelRound(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.RoundService.CancelRound, "cancel")
}

// ArchiveRound → POST /rounds/{roundId}/archive
func (h *Handler) ArchiveRound(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.RoundService.ArchiveRound, "archive")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, roundID string) error, action string) {
	roundID := chi.URLParam(r, "roundId")

	if err := op(r.Context(), roundID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("%s round %s: %v", action, roundID, err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("round "+action+" applied", map[string]string{"round_id": roundID}))
}
