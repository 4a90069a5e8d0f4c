package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/domain"
	"github.com/shopspring/decimal"
)

// CreditPoints adds amount to the user's balance, creating the row on first
// credit. The increment happens in the statement, so concurrent credits add up.
func (r *Repository) CreditPoints(ctx context.Context, userID string, amount decimal.Decimal) error {
	query := `INSERT INTO user_balances (user_id, points, updated_at)
	          VALUES ($1, $2, NOW())
	          ON CONFLICT (user_id) DO UPDATE
	          SET points = user_balances.points + EXCLUDED.points, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, amount); err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}

// DebitPoints subtracts amount only if the balance covers it.
func (r *Repository) DebitPoints(ctx context.Context, userID string, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_balances SET points = points - $2, updated_at = NOW()
		 WHERE user_id = $1 AND points >= $2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("debit points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit points rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// GetBalance returns a zero balance for users never credited.
func (r *Repository) GetBalance(ctx context.Context, userID string) (domain.UserBalance, error) {
	balance := domain.UserBalance{UserID: userID, Points: decimal.Zero}

	err := r.db.QueryRowContext(ctx,
		`SELECT points, updated_at FROM user_balances WHERE user_id = $1`, userID).
		Scan(&balance.Points, &balance.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return balance, nil
	}
	if err != nil {
		return domain.UserBalance{}, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}
