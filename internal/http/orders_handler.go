package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersHandler struct {
	orders  Orders
	timeout time.Duration
	log     *logger.Logger
}

type OrderStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

type DeliveryRequestDTO struct {
	DeliveryRef string `json:"delivery_ref"`
}

func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.List(ctx, auth.FromContext(r.Context()))
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, orders)
}

func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.Get(ctx, auth.FromContext(r.Context()), id)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, order)
}

func (h *OrdersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req OrderStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.SetStatus(ctx, auth.FromContext(r.Context()), id, req.Status)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, order)
}

func (h *OrdersHandler) AttachDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req DeliveryRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.AttachDelivery(ctx, auth.FromContext(r.Context()), id, chi.URLParam(r, "product_id"), req.DeliveryRef)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, order)
}

func (h *OrdersHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
