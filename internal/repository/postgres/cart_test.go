package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

func newCartTestFixture(t *testing.T) (*CartStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store := NewCartStore(mock)
	return store, mock
}

// ---------------------------------------------------------------------------
// ListItems
// ---------------------------------------------------------------------------

func TestCartStore_ListItems_Success(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"product_id", "quantity"}).
		AddRow("prod-1", 2).
		AddRow("prod-2", 1)
	mock.ExpectQuery("SELECT product_id, quantity FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(rows)

	items, err := store.ListItems(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "prod-1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "prod-2", items[1].ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore_ListItems_Empty(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT product_id, quantity FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}))

	items, err := store.ListItems(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore_ListItems_QueryError(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT product_id, quantity FROM cart_items").
		WithArgs("user-1").
		WillReturnError(errors.New("connection refused"))

	_, err := store.ListItems(context.Background(), "user-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// UpsertItem
// ---------------------------------------------------------------------------

func TestCartStore_UpsertItem_Success(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO cart_items").
		WithArgs("user-1", "prod-1", 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertItem(context.Background(), "user-1", "prod-1", 3)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore_UpsertItem_ExecError(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO cart_items").
		WithArgs("user-1", "prod-1", 3).
		WillReturnError(errors.New("connection refused"))

	err := store.UpsertItem(context.Background(), "user-1", "prod-1", 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "upsert cart item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// DeleteItem
// ---------------------------------------------------------------------------

func TestCartStore_DeleteItem_Success(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM cart_items WHERE user_id =").
		WithArgs("user-1", "prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := store.DeleteItem(context.Background(), "user-1", "prod-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore_DeleteItem_AbsentRowIsNotAnError(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM cart_items WHERE user_id =").
		WithArgs("user-1", "prod-missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteItem(context.Background(), "user-1", "prod-missing")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Clear
// ---------------------------------------------------------------------------

func TestCartStore_Clear_Success(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM cart_items WHERE user_id =").
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	err := store.Clear(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore_Clear_ExecError(t *testing.T) {
	store, mock := newCartTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM cart_items WHERE user_id =").
		WithArgs("user-1").
		WillReturnError(errors.New("connection refused"))

	err := store.Clear(context.Background(), "user-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}
