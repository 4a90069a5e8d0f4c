package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_market/internal/checkout"
	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/fulfillment"
	"github.com/fjod/go_market/internal/logger"
)

type CheckoutHandler struct {
	sessions  Sessions
	checkouts *checkout.Registry
	notifier  Notifier
	timeout   time.Duration
	log       *logger.Logger
}

type SelectMethodRequestDTO struct {
	Method domain.PaymentMethod `json:"method"`
}

type PaymentDetailsRequestDTO struct {
	domain.PaymentDetails
	checkout.BuyerDetails
}

func (h *CheckoutHandler) machine(ctx context.Context, w http.ResponseWriter, r *http.Request) (*checkout.Machine, string, bool) {
	sess, err := resumeSession(ctx, h.sessions, w, r)
	if err != nil {
		handleError(h.log, w, err)
		return nil, "", false
	}
	return h.checkouts.For(sess.ID, sess), sess.ID, true
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(h.log, w, http.StatusOK, m.View())
}

func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SelectMethodRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	h.respond(w, m, m.SelectMethod(req.Method))
}

func (h *CheckoutHandler) EnterDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentDetailsRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.log, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	h.respond(w, m, m.EnterDetails(req.PaymentDetails, req.BuyerDetails))
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	h.respond(w, m, m.Back())
}

// Submit places the order. Side effects that failed after the order was
// stored reach the buyer as warning toasts, not as a failed request.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, sessionID, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}

	report, err := m.Submit(ctx)
	if err != nil {
		if !domain.IsValidation(err) {
			h.notifier.Error(ctx, sessionID, "We could not place your order. Please try again.")
		}
		handleError(h.log, w, err)
		return
	}

	h.notifier.Success(ctx, sessionID, fmt.Sprintf("Order %s placed", report.Order.ID))
	for _, warning := range report.Warnings {
		h.notifier.Warning(ctx, sessionID, warningMessage(warning.Step))
	}
	respondJSON(h.log, w, http.StatusCreated, m.View())
}

func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	h.respond(w, m, m.Cancel())
}

func (h *CheckoutHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, _, ok := h.machine(ctx, w, r)
	if !ok {
		return
	}
	h.respond(w, m, m.Close())
}

func (h *CheckoutHandler) respond(w http.ResponseWriter, m *checkout.Machine, err error) {
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	respondJSON(h.log, w, http.StatusOK, m.View())
}

func warningMessage(step fulfillment.Step) string {
	switch step {
	case fulfillment.StepClearCart:
		return "Your order was placed but some items are still in your cart."
	case fulfillment.StepCommission:
		return "Your order was placed. The referral reward is delayed."
	default:
		return "Your order was placed. Some follow-up steps are delayed."
	}
}
