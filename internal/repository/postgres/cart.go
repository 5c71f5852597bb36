package postgres

import (
	"context"
	"fmt"

	"github.com/joa111/ecom-mang/internal/repository"
	"github.com/joa111/ecom-mang/pkg/database"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// CartStore implements repository.RemoteCartStore on PostgreSQL.
//
// Schema:
//
//	CREATE TABLE cart_items (
//	    user_id    TEXT    NOT NULL,
//	    product_id TEXT    NOT NULL,
//	    quantity   INTEGER NOT NULL CHECK (quantity > 0),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (user_id, product_id)
//	);
type CartStore struct {
	db database.DBTX
}

// NewCartStore creates a new PostgreSQL-backed cart store.
func NewCartStore(db database.DBTX) *CartStore {
	return &CartStore{db: db}
}

// ListItems returns all cart rows for the user, oldest first.
func (s *CartStore) ListItems(ctx context.Context, userID string) ([]repository.CartRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY updated_at, product_id`,
		userID,
	)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("list cart items: %w", err))
	}
	defer rows.Close()

	var items []repository.CartRow
	for rows.Next() {
		var row repository.CartRow
		if err := rows.Scan(&row.ProductID, &row.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("iterate cart items: %w", err))
	}

	return items, nil
}

// UpsertItem inserts or updates the row for (userID, productID).
func (s *CartStore) UpsertItem(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`,
		userID, productID, quantity,
	)
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("upsert cart item: %w", err))
	}
	return nil
}

// DeleteItem removes the row for (userID, productID). Absent rows are ignored.
func (s *CartStore) DeleteItem(ctx context.Context, userID, productID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("delete cart item: %w", err))
	}
	return nil
}

// Clear removes all rows for the user.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("clear cart: %w", err))
	}
	return nil
}
