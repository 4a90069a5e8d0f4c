package checkout

import (
	"strings"

	"github.com/fjod/go_market/internal/domain"
)

const (
	minPhoneDigits      = 9
	minCardHolderLength = 2
	minCardDigits       = 16
)

// ValidatePaymentDetails checks the instrument fields the chosen rail needs.
// All failing fields are reported together.
func ValidatePaymentDetails(method domain.PaymentMethod, d domain.PaymentDetails) error {
	v := &domain.ValidationError{}

	switch {
	case method.IsMobileMoney():
		if len(domain.DigitsOnly(d.Phone)) < minPhoneDigits {
			v.Add("phone", "phone number must have at least 9 digits")
		}
	case method == domain.PaymentMethodCard:
		if len([]rune(strings.TrimSpace(d.CardHolder))) < minCardHolderLength {
			v.Add("card_holder", "cardholder name must have at least 2 characters")
		}
		if len(domain.DigitsOnly(d.CardNumber)) < minCardDigits {
			v.Add("card_number", "card number must have at least 16 digits")
		}
		if !validExpiry(d.CardExpiry) {
			v.Add("card_expiry", "expiry must be MM/YY")
		}
		if !validCVV(d.CardCVV) {
			v.Add("card_cvv", "CVV must be 3 or 4 digits")
		}
	default:
		v.Add("method", "choose a payment method")
	}

	return v.Err()
}

// validExpiry accepts MMYY once separators are removed.
func validExpiry(raw string) bool {
	stripped := strings.NewReplacer("/", "", " ", "", "-", "").Replace(raw)
	if len(stripped) != 4 || domain.DigitsOnly(stripped) != stripped {
		return false
	}
	month := (stripped[0]-'0')*10 + (stripped[1] - '0')
	return month >= 1 && month <= 12
}

func validCVV(raw string) bool {
	cvv := strings.TrimSpace(raw)
	if len(cvv) < 3 || len(cvv) > 4 {
		return false
	}
	return domain.DigitsOnly(cvv) == cvv
}
