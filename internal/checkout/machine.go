// Package checkout drives one session's checkout from payment method
// selection through instrument capture to order submission.
package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/fulfillment"
	"github.com/fjod/go_market/internal/logger"
	"github.com/shopspring/decimal"
)

// Basket is the session the checkout buys from.
type Basket interface {
	Identity() domain.Identity
	ReferrerID() *string
	Cart() []domain.CartLine
	ClearLine(ctx context.Context, productID string) error
}

type Fulfiller interface {
	Fulfill(ctx context.Context, params domain.NewOrderParams, cart fulfillment.CartClearer) (*fulfillment.Report, error)
}

// BuyerDetails are captured together with the payment instrument.
type BuyerDetails struct {
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact"`
}

// View is a read-only copy of the machine for presentation.
type View struct {
	State    State                  `json:"state"`
	Methods  []domain.PaymentMethod `json:"methods"`
	Method   domain.PaymentMethod   `json:"method,omitempty"`
	Total    decimal.Decimal        `json:"total"`
	Error    string                 `json:"error,omitempty"`
	Order    *domain.Order          `json:"order,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

type Machine struct {
	mu        sync.Mutex
	basket    Basket
	fulfiller Fulfiller
	log       *logger.Logger

	state   State
	method  domain.PaymentMethod
	details domain.PaymentDetails
	buyer   BuyerDetails
	lastErr string
	report  *fulfillment.Report
}

func NewMachine(basket Basket, fulfiller Fulfiller, log *logger.Logger) *Machine {
	return &Machine{
		basket:    basket,
		fulfiller: fulfiller,
		log:       log.With("component", "checkout"),
		state:     StateMethodSelection,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:   m.state,
		Methods: domain.PaymentMethods,
		Method:  m.method,
		Total:   domain.SumLines(m.basket.Cart()),
		Error:   m.lastErr,
	}
	if m.report != nil {
		v.Order = m.report.Order
		v.Total = m.report.Order.Total
		for _, w := range m.report.Warnings {
			v.Warnings = append(v.Warnings, w.Error())
		}
	}
	return v
}

// SelectMethod chooses a rail and advances to payment details. An empty or
// unknown method is a validation error and the state does not change.
func (m *Machine) SelectMethod(method domain.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateMethodSelection {
		return illegalTransition(m.state, "select a payment method")
	}
	if !method.IsValid() {
		return domain.NewValidationError("method", "choose a payment method")
	}
	m.method = method
	m.lastErr = ""
	m.state = StatePaymentDetails
	return nil
}

// Back returns to method selection and forgets the entered instrument.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaymentDetails {
		return illegalTransition(m.state, "go back")
	}
	m.details = domain.PaymentDetails{}
	m.lastErr = ""
	m.state = StateMethodSelection
	return nil
}

// EnterDetails validates and keeps the instrument and buyer details. Invalid
// input is rejected field by field and nothing is kept.
func (m *Machine) EnterDetails(details domain.PaymentDetails, buyer BuyerDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaymentDetails {
		return illegalTransition(m.state, "enter payment details")
	}
	if err := ValidatePaymentDetails(m.method, details); err != nil {
		return err
	}
	m.details = details
	m.buyer = BuyerDetails{
		DisplayName: strings.TrimSpace(buyer.DisplayName),
		Contact:     strings.TrimSpace(buyer.Contact),
	}
	m.lastErr = ""
	return nil
}

// Submit creates the order once. A concurrent Submit while the first is in
// flight gets ErrSubmitInProgress. On failure the machine returns to payment
// details with the error recorded so the buyer can retry.
func (m *Machine) Submit(ctx context.Context) (*fulfillment.Report, error) {
	m.mu.Lock()
	switch m.state {
	case StateSubmitting:
		m.mu.Unlock()
		return nil, ErrSubmitInProgress
	case StatePaymentDetails:
	default:
		state := m.state
		m.mu.Unlock()
		return nil, illegalTransition(state, "submit")
	}

	if err := ValidatePaymentDetails(m.method, m.details); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	lines := m.basket.Cart()
	if len(lines) == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}

	identity := m.basket.Identity()
	buyer := m.buyer
	if buyer.DisplayName == "" {
		buyer.DisplayName = identity.DisplayName
	}
	if buyer.Contact == "" {
		buyer.Contact = identity.Contact
	}
	params := domain.NewOrderParams{
		BuyerID:          identity.UserID,
		BuyerDisplayName: buyer.DisplayName,
		BuyerContact:     buyer.Contact,
		Lines:            lines,
		ReferrerID:       m.basket.ReferrerID(),
		PaymentMethod:    m.method,
		PaymentDetails:   m.details,
	}
	m.state = StateSubmitting
	m.lastErr = ""
	m.mu.Unlock()

	report, err := m.fulfiller.Fulfill(ctx, params, m.basket)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StatePaymentDetails
		m.lastErr = "could not place the order, please try again"
		m.log.Warn("submission failed", "buyer_id", identity.UserID, "error", err)
		return nil, err
	}
	m.state = StateSuccess
	m.report = report
	m.details = domain.PaymentDetails{}
	return report, nil
}

// Cancel discards all input and starts over. It is refused while submitting.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	m.resetLocked()
	return nil
}

// Close leaves the success screen and clears the transient input.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSuccess {
		return illegalTransition(m.state, "close")
	}
	m.resetLocked()
	return nil
}

func (m *Machine) resetLocked() {
	m.state = StateMethodSelection
	m.method = ""
	m.details = domain.PaymentDetails{}
	m.buyer = BuyerDetails{}
	m.lastErr = ""
	m.report = nil
}
