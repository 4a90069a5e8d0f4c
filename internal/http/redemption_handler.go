package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/fjod/go_market/internal/redemption"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RedemptionHandler struct {
	redemptions Redemptions
	timeout     time.Duration
	log         *logger.Logger
}

type RedeemRequestDTO struct {
	Amount        decimal.Decimal      `json:"amount"`
	PayoutContact string               `json:"payout_contact"`
	Network       domain.PayoutNetwork `json:"network"`
}

type RedemptionStatusRequestDTO struct {
	Status domain.RedemptionStatus `json:"status"`
}

func (h *RedemptionHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	balance, err := h.redemptions.Balance(ctx, auth.FromContext(r.Context()))
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, balance)
}

func (h *RedemptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RedeemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := h.redemptions.Submit(ctx, auth.FromContext(r.Context()), redemption.SubmitParams{
		Amount:        req.Amount,
		PayoutContact: req.PayoutContact,
		Network:       req.Network,
	})
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusCreated, created)
}

func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	requests, err := h.redemptions.List(ctx, auth.FromContext(r.Context()))
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, requests)
}

func (h *RedemptionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	requests, err := h.redemptions.ListAll(ctx, auth.FromContext(r.Context()))
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, requests)
}

func (h *RedemptionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}
	var req RedemptionStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	updated, err := h.redemptions.SetStatus(ctx, auth.FromContext(r.Context()), id, req.Status)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, updated)
}
