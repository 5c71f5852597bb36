package repository

import "context"

// CartRow is one persisted (product, quantity) pair in the remote cart store.
type CartRow struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// RemoteCartStore is the per-user persisted cart, keyed by
// (userID, productID). Rows resolve conflicts last-write-wins; there is no
// transaction or optimistic-lock token.
type RemoteCartStore interface {
	// ListItems returns all rows for the user, in insertion order.
	ListItems(ctx context.Context, userID string) ([]CartRow, error)

	// UpsertItem inserts or updates the row for (userID, productID).
	UpsertItem(ctx context.Context, userID, productID string, quantity int) error

	// DeleteItem removes the row for (userID, productID). Deleting an absent
	// row is not an error.
	DeleteItem(ctx context.Context, userID, productID string) error

	// Clear removes all rows for the user.
	Clear(ctx context.Context, userID string) error
}

// LocalStorage is the durable key-value store backing guest carts. Load
// returns ErrNotFound when the key is absent.
type LocalStorage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
