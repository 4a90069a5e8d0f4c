package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_CardKeepsOnlyLastFour(t *testing.T) {
	details := PaymentDetails{
		CardHolder: " Jane Doe ",
		CardNumber: "4111 1111 1111 1234",
		CardExpiry: "12/29",
		CardCVV:    "123",
	}

	snap := details.Snapshot(PaymentMethodCard)

	assert.Equal(t, PaymentMethodCard, snap.Method)
	assert.Equal(t, "1234", snap.CardLast4)
	assert.Equal(t, "Jane Doe", snap.CardHolder)
	assert.Empty(t, snap.Phone)
}

func TestSnapshot_MobileMoneyKeepsPhoneOnly(t *testing.T) {
	details := PaymentDetails{Phone: "0772-123-456", CardNumber: "4111111111111111"}

	snap := details.Snapshot(PaymentMethodAirtelMoney)

	assert.Equal(t, "0772123456", snap.Phone)
	assert.Empty(t, snap.CardLast4)
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentMethodMTNMoMo.IsValid())
	assert.True(t, PaymentMethodCard.IsValid())
	assert.False(t, PaymentMethod("paypal").IsValid())
	assert.False(t, PaymentMethod("").IsValid())
}

func TestValidationError(t *testing.T) {
	var v ValidationError
	assert.NoError(t, v.Err())

	v.Add("phone", "must have at least 9 digits")
	v.Add("cvv", "must be 3 or 4 digits")

	err := v.Err()
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "validation failed: cvv: must be 3 or 4 digits; phone: must have at least 9 digits", err.Error())
}
