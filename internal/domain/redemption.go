package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RedemptionStatus string

const (
	RedemptionStatusPending  RedemptionStatus = "PENDING"
	RedemptionStatusApproved RedemptionStatus = "APPROVED"
	RedemptionStatusRejected RedemptionStatus = "REJECTED"
)

func (s RedemptionStatus) IsTerminal() bool {
	return s == RedemptionStatusApproved || s == RedemptionStatusRejected
}

// PayoutNetwork is the mobile-money network a cash payout is sent through.
type PayoutNetwork string

const (
	PayoutNetworkMTNMoMo     PayoutNetwork = "mtn_momo"
	PayoutNetworkAirtelMoney PayoutNetwork = "airtel_money"
)

func (n PayoutNetwork) IsValid() bool {
	return n == PayoutNetworkMTNMoMo || n == PayoutNetworkAirtelMoney
}

type RedemptionRequest struct {
	ID            uuid.UUID        `json:"id"`
	UserID        string           `json:"user_id"`
	Amount        decimal.Decimal  `json:"amount"`
	PayoutContact string           `json:"payout_contact"`
	Network       PayoutNetwork    `json:"network"`
	Status        RedemptionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// UserBalance is the running commission-points ledger of one user.
type UserBalance struct {
	UserID    string          `json:"user_id"`
	Points    decimal.Decimal `json:"points"`
	UpdatedAt time.Time       `json:"updated_at"`
}
