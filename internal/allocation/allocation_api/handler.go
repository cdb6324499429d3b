package allocation_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-lottery/internal/allocation"
	"ms-lottery/internal/auth"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
	"ms-lottery/internal/receipts"
	"ms-lottery/internal/utils"
)

// TicketFetcher resolves a single ticket for receipt rendering.
type TicketFetcher interface {
	TicketByNumber(ctx context.Context, roundID string, number int) (*models.Ticket, error)
}

type Handler struct {
	Pool    *allocation.Pool
	Tickets TicketFetcher
	QR      *receipts.QRGenerator
	Logger  *logger.Logger
}

func NewHandler(pool *allocation.Pool, tickets TicketFetcher, qr *receipts.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{Pool: pool, Tickets: tickets, QR: qr, Logger: log}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRoundClosed),
		errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrPoolExhausted):
		return http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Purchase → POST /rounds/{roundId}/purchase
//
// Partial fulfillment is success: the response carries whatever numbers were
// actually assigned. An exhausted pool with some numbers assigned (keep
// policy) reports both the numbers and the pool_exhausted flag.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid purchase JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	assigned, err := h.Pool.Purchase(r.Context(), roundID, identity.UserID, req.Count, req.WalletAddress)
	if err != nil && !(errors.Is(err, models.ErrPoolExhausted) && len(assigned) > 0) {
		h.Logger.Error("API", fmt.Sprintf("Purchase round=%s user=%s: %v", roundID, identity.UserID, err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(utils.ErrorResponse("purchase failed", err.Error()))
		return
	}

	resp := struct {
		models.PurchaseResponse
		PoolExhausted bool `json:"pool_exhausted,omitempty"`
	}{
		PurchaseResponse: models.PurchaseResponse{
			RoundID:         roundID,
			UserID:          identity.UserID,
			AssignedNumbers: assigned,
			Requested:       req.Count,
		},
		PoolExhausted: errors.Is(err, models.ErrPoolExhausted),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Release → POST /rounds/{roundId}/release (admin correction path)
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")

	var req struct {
		Numbers []int `json:"numbers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid release JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Pool.Release(r.Context(), roundID, req.Numbers); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Release round=%s: %v", roundID, err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusFor(err))
		json.NewEncoder(w).Encode(utils.ErrorResponse("release failed", err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TicketQR → GET /rounds/{roundId}/tickets/{number}/qr
//
// Renders the caller's ticket as an encrypted QR receipt. Only the owner may
// fetch it.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundId")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		http.Error(w, "Invalid ticket number", http.StatusBadRequest)
		return
	}

	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing caller identity", http.StatusUnauthorized)
		return
	}

	ticket, err := h.Tickets.TicketByNumber(r.Context(), roundID, number)
	if err != nil {
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	}
	if ticket.OwnerID != identity.UserID {
		http.Error(w, "Not your ticket", http.StatusForbidden)
		return
	}

	png, err := h.QR.GenerateTicketQR(*ticket)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketQR round=%s number=%d: %v", roundID, number, err))
		http.Error(w, "Failed to generate QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
