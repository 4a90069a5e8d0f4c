package domain

import "strings"

type PaymentMethod string

const (
	PaymentMethodMTNMoMo     PaymentMethod = "mtn_momo"
	PaymentMethodAirtelMoney PaymentMethod = "airtel_money"
	PaymentMethodCard        PaymentMethod = "card"
)

// PaymentMethods is the fixed set of rails offered at method selection.
var PaymentMethods = []PaymentMethod{
	PaymentMethodMTNMoMo,
	PaymentMethodAirtelMoney,
	PaymentMethodCard,
}

func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

func (m PaymentMethod) IsMobileMoney() bool {
	return m == PaymentMethodMTNMoMo || m == PaymentMethodAirtelMoney
}

// PaymentDetails is the raw instrument input. It never leaves the checkout
// flow; orders keep a PaymentSnapshot instead.
type PaymentDetails struct {
	Phone      string `json:"phone,omitempty"`
	CardHolder string `json:"card_holder,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
	CardExpiry string `json:"card_expiry,omitempty"`
	CardCVV    string `json:"card_cvv,omitempty"`
}

// PaymentSnapshot is the redacted copy stored on an order.
type PaymentSnapshot struct {
	Method     PaymentMethod `json:"method"`
	Phone      string        `json:"phone,omitempty"`
	CardHolder string        `json:"card_holder,omitempty"`
	CardLast4  string        `json:"card_last4,omitempty"`
}

// Snapshot keeps the phone for mobile money, and only the holder and last
// four digits for cards. The CVV and full number are never copied.
func (d PaymentDetails) Snapshot(m PaymentMethod) PaymentSnapshot {
	snap := PaymentSnapshot{Method: m}
	if m.IsMobileMoney() {
		snap.Phone = DigitsOnly(d.Phone)
		return snap
	}
	if m == PaymentMethodCard {
		snap.CardHolder = strings.TrimSpace(d.CardHolder)
		digits := DigitsOnly(d.CardNumber)
		if len(digits) > 4 {
			digits = digits[len(digits)-4:]
		}
		snap.CardLast4 = digits
	}
	return snap
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
