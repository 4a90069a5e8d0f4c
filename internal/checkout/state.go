package checkout

import (
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/domain"
)

type State string

const (
	StateMethodSelection State = "METHOD_SELECTION"
	StatePaymentDetails  State = "PAYMENT_DETAILS"
	StateSubmitting      State = "SUBMITTING"
	StateSuccess         State = "SUCCESS"
)

// String representation (for logging)
func (s State) String() string {
	return string(s)
}

var (
	ErrEmptyCart        = domain.NewValidationError("cart", "cart is empty, nothing to checkout")
	ErrSubmitInProgress = errors.New("submission already in progress")
)

func illegalTransition(from State, action string) error {
	return fmt.Errorf("%w: cannot %s from %s", domain.ErrInvalidTransition, action, from)
}
