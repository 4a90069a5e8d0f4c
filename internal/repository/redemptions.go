package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/domain"
	"github.com/google/uuid"
)

const redemptionColumns = `id, user_id, amount, payout_contact, network, status, created_at, updated_at`

func (r *Repository) CreateRedemption(ctx context.Context, req *domain.RedemptionRequest) error {
	query := `INSERT INTO redemption_requests (` + redemptionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.UserID,
		req.Amount,
		req.PayoutContact,
		req.Network,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert redemption request: %w", err)
	}
	return nil
}

func (r *Repository) GetRedemption(ctx context.Context, id uuid.UUID) (*domain.RedemptionRequest, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemption_requests WHERE id = $1`

	req, err := scanRedemption(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRedemptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query redemption request: %w", err)
	}
	return req, nil
}

// UpdateRedemptionStatus decides a request that is still pending. The status
// guard is part of the UPDATE so two operators cannot both decide it.
func (r *Repository) UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, to domain.RedemptionStatus) (*domain.RedemptionRequest, error) {
	query := `UPDATE redemption_requests SET status = $2, updated_at = NOW()
	          WHERE id = $1 AND status = $3
	          RETURNING ` + redemptionColumns

	req, err := scanRedemption(r.db.QueryRowContext(ctx, query, id, to, domain.RedemptionStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetRedemption(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrRedemptionNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("update redemption status: %w", err)
	}
	return req, nil
}

func (r *Repository) ListRedemptionsByUser(ctx context.Context, userID string) ([]*domain.RedemptionRequest, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemption_requests WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryRedemptions(ctx, query, userID)
}

func (r *Repository) ListRedemptions(ctx context.Context) ([]*domain.RedemptionRequest, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemption_requests ORDER BY created_at DESC`
	return r.queryRedemptions(ctx, query)
}

func (r *Repository) queryRedemptions(ctx context.Context, query string, args ...interface{}) ([]*domain.RedemptionRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query redemption requests: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.RedemptionRequest, 0)
	for rows.Next() {
		req, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption row: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func scanRedemption(row scanner) (*domain.RedemptionRequest, error) {
	var req domain.RedemptionRequest
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Amount,
		&req.PayoutContact,
		&req.Network,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
