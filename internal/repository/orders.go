package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_market/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, buyer_id, buyer_display_name, buyer_contact, items, seller_ids, referrer_id,
	commission_amount, total, payment_method, payment_snapshot, status, created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	snapshotJSON, err := json.Marshal(order.PaymentSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal payment snapshot: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.BuyerID,
		order.BuyerDisplayName,
		order.BuyerContact,
		itemsJSON,
		pq.Array(order.SellerIDs),
		order.ReferrerID,
		order.CommissionAmount,
		order.Total,
		order.PaymentMethod,
		snapshotJSON,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.queryOrders(ctx, query)
}

// ListOrdersBySeller returns orders holding at least one line of sellerID.
func (r *Repository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE seller_ids && $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, pq.Array([]string{sellerID}))
}

func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, buyerID)
}

// UpdateOrderStatus applies a review transition under a row lock.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, to domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransitionTo(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, to)
	}

	err = tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		id, to).Scan(&order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = to

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order status: %w", err)
	}
	return order, nil
}

// SetDeliveryRef stores a delivered file reference on one line item.
func (r *Repository) SetDeliveryRef(ctx context.Context, id uuid.UUID, productID, ref string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range order.LineItems {
		if order.LineItems[i].ProductID == productID {
			v := ref
			order.LineItems[i].DeliveryRef = &v
			found = true
		}
	}
	if !found {
		return nil, ErrLineItemNotFound
	}

	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`UPDATE orders SET items = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		id, itemsJSON).Scan(&order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delivery ref: %w", err)
	}
	return order, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		order        domain.Order
		itemsJSON    []byte
		snapshotJSON []byte
		sellerIDs    pq.StringArray
		referrerID   sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.BuyerDisplayName,
		&order.BuyerContact,
		&itemsJSON,
		&sellerIDs,
		&referrerID,
		&order.CommissionAmount,
		&order.Total,
		&order.PaymentMethod,
		&snapshotJSON,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(snapshotJSON, &order.PaymentSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal payment snapshot: %w", err)
	}
	order.SellerIDs = []string(sellerIDs)
	if order.SellerIDs == nil {
		order.SellerIDs = []string{}
	}
	if referrerID.Valid {
		v := referrerID.String
		order.ReferrerID = &v
	}
	return &order, nil
}
