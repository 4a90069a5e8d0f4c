// Package redemption turns commission points into cash payout requests that
// an operator later approves or rejects.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_market/internal/domain"
	"github.com/fjod/go_market/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const minContactDigits = 9

type Store interface {
	GetBalance(ctx context.Context, userID string) (domain.UserBalance, error)
	DebitPoints(ctx context.Context, userID string, amount decimal.Decimal) error
	CreateRedemption(ctx context.Context, req *domain.RedemptionRequest) error
	UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, to domain.RedemptionStatus) (*domain.RedemptionRequest, error)
	ListRedemptionsByUser(ctx context.Context, userID string) ([]*domain.RedemptionRequest, error)
	ListRedemptions(ctx context.Context) ([]*domain.RedemptionRequest, error)
}

type SubmitParams struct {
	Amount        decimal.Decimal
	PayoutContact string
	Network       domain.PayoutNetwork
}

type Service struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With("component", "redemption"),
		now:   time.Now,
	}
}

// Submit records a pending payout request and then debits the balance. The
// two writes are not atomic. A debit refused for lack of points rejects the
// request and fails the submit; any other debit failure is logged and the
// request stays.
func (s *Service) Submit(ctx context.Context, user domain.Identity, p SubmitParams) (*domain.RedemptionRequest, error) {
	if user.IsAnonymous() {
		return nil, domain.ErrForbidden
	}

	balance, err := s.store.GetBalance(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if err := validate(p, balance.Points); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := &domain.RedemptionRequest{
		ID:            uuid.New(),
		UserID:        user.UserID,
		Amount:        p.Amount,
		PayoutContact: domain.DigitsOnly(p.PayoutContact),
		Network:       p.Network,
		Status:        domain.RedemptionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateRedemption(ctx, req); err != nil {
		return nil, fmt.Errorf("create redemption request: %w", err)
	}

	err = s.store.DebitPoints(ctx, user.UserID, p.Amount)
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		// a concurrent submit spent the balance after it was read
		if _, rerr := s.store.UpdateRedemptionStatus(ctx, req.ID, domain.RedemptionStatusRejected); rerr != nil {
			s.log.Error("overdrawn redemption left pending",
				"redemption_id", req.ID, "user_id", user.UserID, "error", rerr)
		}
		s.log.Warn("redemption rejected on debit", "redemption_id", req.ID, "user_id", user.UserID, "amount", p.Amount.String())
		return nil, domain.NewValidationError("amount", "amount exceeds available balance")
	case err != nil:
		s.log.Error("balance debit failed after redemption was recorded",
			"redemption_id", req.ID, "user_id", user.UserID, "amount", p.Amount.String(), "error", err)
	}

	s.log.Info("redemption requested", "redemption_id", req.ID, "user_id", user.UserID, "amount", p.Amount.String())
	return req, nil
}

func validate(p SubmitParams, balance decimal.Decimal) error {
	v := &domain.ValidationError{}
	switch {
	case !p.Amount.IsPositive():
		v.Add("amount", "amount must be greater than zero")
	case p.Amount.GreaterThan(balance):
		v.Add("amount", "amount exceeds available balance")
	}
	if len(domain.DigitsOnly(p.PayoutContact)) < minContactDigits {
		v.Add("payout_contact", "payout number must have at least 9 digits")
	}
	if !p.Network.IsValid() {
		v.Add("network", "choose a payout network")
	}
	return v.Err()
}

// SetStatus decides a pending request. Rejection does not return the points.
func (s *Service) SetStatus(ctx context.Context, operator domain.Identity, id uuid.UUID, to domain.RedemptionStatus) (*domain.RedemptionRequest, error) {
	if !operator.IsOperator() {
		return nil, domain.ErrForbidden
	}
	if !to.IsTerminal() {
		return nil, domain.NewValidationError("status", "status must be APPROVED or REJECTED")
	}

	req, err := s.store.UpdateRedemptionStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}
	s.log.Info("redemption decided", "redemption_id", id, "status", string(to), "operator_id", operator.UserID)
	return req, nil
}

func (s *Service) List(ctx context.Context, user domain.Identity) ([]*domain.RedemptionRequest, error) {
	if user.IsAnonymous() {
		return nil, domain.ErrForbidden
	}
	return s.store.ListRedemptionsByUser(ctx, user.UserID)
}

func (s *Service) ListAll(ctx context.Context, operator domain.Identity) ([]*domain.RedemptionRequest, error) {
	if !operator.IsOperator() {
		return nil, domain.ErrForbidden
	}
	return s.store.ListRedemptions(ctx)
}

func (s *Service) Balance(ctx context.Context, user domain.Identity) (domain.UserBalance, error) {
	if user.IsAnonymous() {
		return domain.UserBalance{}, domain.ErrForbidden
	}
	return s.store.GetBalance(ctx, user.UserID)
}
