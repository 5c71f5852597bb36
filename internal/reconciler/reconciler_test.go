package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joa111/ecom-mang/internal/catalog"
	"github.com/joa111/ecom-mang/internal/domain"
	"github.com/joa111/ecom-mang/internal/repository"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// --- Test Fakes ---

// fakeLocal is an in-memory LocalStorage with injectable failures.
type fakeLocal struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{data: make(map[string][]byte)}
}

func (f *fakeLocal) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[key]
	if !ok {
		return nil, apperrors.NotFound("guest cart", key)
	}
	return data, nil
}

func (f *fakeLocal) Save(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = data
	return nil
}

func (f *fakeLocal) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.data, key)
	return nil
}

// fakeStore is an in-memory RemoteCartStore with injectable failures. Rows
// keep insertion order per user.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string][]repository.CartRow
	err  error

	upserts int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]repository.CartRow)}
}

func (f *fakeStore) ListItems(_ context.Context, userID string) ([]repository.CartRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rows := make([]repository.CartRow, len(f.rows[userID]))
	copy(rows, f.rows[userID])
	return rows, nil
}

func (f *fakeStore) UpsertItem(_ context.Context, userID, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	for i, row := range f.rows[userID] {
		if row.ProductID == productID {
			f.rows[userID][i].Quantity = quantity
			return nil
		}
	}
	f.rows[userID] = append(f.rows[userID], repository.CartRow{ProductID: productID, Quantity: quantity})
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, userID, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deletes++
	rows := f.rows[userID]
	for i, row := range rows {
		if row.ProductID == productID {
			f.rows[userID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.rows, userID)
	return nil
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) quantity(userID, productID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows[userID] {
		if row.ProductID == productID {
			return row.Quantity, true
		}
	}
	return 0, false
}

// recordingPublisher counts published events.
type recordingPublisher struct {
	mu      sync.Mutex
	updated int
	merged  int
	cleared int
}

func (p *recordingPublisher) CartUpdated(context.Context, string, string, *domain.Cart) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated++
	return nil
}

func (p *recordingPublisher) CartMerged(context.Context, string, string, *domain.Cart) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.merged++
	return nil
}

func (p *recordingPublisher) CartCleared(context.Context, string, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
	return nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testDeps struct {
	store   *fakeStore
	local   *fakeLocal
	catalog *catalog.Memory
	events  *recordingPublisher
}

func newTestDeps() *testDeps {
	cat := catalog.NewMemory()
	cat.Put(domain.Product{ID: "prod-a", Name: "Alpha", UnitPrice: 2500, StockQuantity: 10})
	cat.Put(domain.Product{ID: "prod-b", Name: "Beta", UnitPrice: 1000, StockQuantity: 5})
	cat.Put(domain.Product{ID: "prod-c", Name: "Gamma", UnitPrice: 500, StockQuantity: domain.StockUnknown})
	return &testDeps{
		store:   newFakeStore(),
		local:   newFakeLocal(),
		catalog: cat,
		events:  &recordingPublisher{},
	}
}

func (d *testDeps) newReconciler(sessionID, userID string) *Reconciler {
	cfg := Config{
		Pricing:       domain.Pricing{ShippingFee: 1000, FreeShippingMin: 15000},
		WriteMaxTries: 1,
	}
	return New(sessionID, userID, d.store, d.local, d.catalog, d.events, cfg, newTestLogger())
}

// ============================================================================
// Hydration Tests
// ============================================================================

func TestStart_GuestFreshSession(t *testing.T) {
	deps := newTestDeps()
	rec := deps.newReconciler("sess-1", "")

	rec.Start(context.Background())

	assert.Equal(t, StateReady, rec.State())
	cart, _, notices := rec.Cart()
	assert.Empty(t, cart.Items)
	assert.Empty(t, notices)
}

func TestStart_GuestSnapshotRoundTrip(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	first := deps.newReconciler("sess-1", "")
	first.Start(ctx)
	_, err := first.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)

	// A later session with the same ID picks up the persisted snapshot.
	second := deps.newReconciler("sess-1", "")
	second.Start(ctx)

	cart, totals, _ := second.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "prod-a", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, int64(5000), totals.Subtotal)
}

func TestStart_GuestStorageDownDegradesToEmpty(t *testing.T) {
	deps := newTestDeps()
	deps.local.err = apperrors.StoreUnavailable(errors.New("redis down"))
	rec := deps.newReconciler("sess-1", "")

	rec.Start(context.Background())

	assert.Equal(t, StateReady, rec.State(), "hydration failure must not block the session")
	cart, _, notices := rec.Cart()
	assert.Empty(t, cart.Items)
	require.Len(t, notices, 1)
	assert.Equal(t, "STORE_UNAVAILABLE", notices[0].Code)
}

func TestStart_AuthenticatedHydratesFromRemote(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-a", 2))
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 1))

	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	cart, totals, _ := rec.Cart()
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Alpha", cart.Items[0].Name)
	assert.Equal(t, int64(2500), cart.Items[0].UnitPrice)
	assert.Equal(t, int64(2*2500+1000), totals.Subtotal)
}

func TestStart_RemoteRowClampedToStock(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	// Persisted quantity exceeds current stock of prod-b (5).
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 9))

	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	cart, _, _ := rec.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestStart_UnknownProductRowKept(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-gone", 3))

	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	cart, _, _ := rec.Cart()
	require.Len(t, cart.Items, 1, "a row whose product vanished keeps its quantity")
	assert.Equal(t, "Unknown Product", cart.Items[0].Name)
	assert.Equal(t, int64(0), cart.Items[0].UnitPrice)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestStart_Idempotent(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 1)
	require.NoError(t, err)

	rec.Start(ctx)

	cart, _, _ := rec.Cart()
	assert.Len(t, cart.Items, 1, "second Start must not re-hydrate over live state")
}

func TestStart_AuthenticatedAbsorbsGuestSnapshot(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	// Guest session builds a cart, then gets evicted; the snapshot survives.
	guest := deps.newReconciler("sess-1", "")
	guest.Start(ctx)
	_, err := guest.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 1))

	// The next request for the session already carries a valid token, so the
	// reconciler is created authenticated and never sees SignIn.
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	cart, _, _ := rec.Cart()
	require.Len(t, cart.Items, 2, "guest items must survive an authenticated hydration")
	assert.Equal(t, "prod-a", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "prod-b", cart.Items[1].ProductID)

	require.NoError(t, rec.Flush(ctx))
	qty, ok := deps.store.quantity("user-1", "prod-a")
	require.True(t, ok, "absorbed guest items reach the remote store")
	assert.Equal(t, 2, qty)

	_, err = deps.local.Load(ctx, "sess-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "absorbed snapshot is deleted")
	assert.Equal(t, 1, deps.events.merged)
}

func TestStart_AuthenticatedSumsSnapshotWithRemote(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	guest := deps.newReconciler("sess-1", "")
	guest.Start(ctx)
	_, err := guest.AddItem(ctx, "prod-b", 4)
	require.NoError(t, err)
	// prod-b stock is 5; 4+3 must clamp.
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 3))

	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	cart, _, _ := rec.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestStart_AuthenticatedNoSnapshotSkipsMerge(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 1))

	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	require.NoError(t, rec.Flush(ctx))

	cart, _, _ := rec.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 0, deps.events.merged)
	assert.Equal(t, 1, deps.store.upserts, "no merge writes without a snapshot")
}

// ============================================================================
// Guest Mutation Tests
// ============================================================================

func TestAddItem_GuestWritesSnapshotInline(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)

	res, err := rec.AddItem(ctx, "prod-a", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.False(t, res.Clamped)

	data, err := deps.local.Load(ctx, "sess-1")
	require.NoError(t, err)
	var items []domain.LineItem
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "prod-a", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)

	_, err := rec.AddItem(ctx, "prod-gone", 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	cart, _, _ := rec.Cart()
	assert.Empty(t, cart.Items)
}

func TestAddItem_ClampReported(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)

	_, err := rec.AddItem(ctx, "prod-b", 3)
	require.NoError(t, err)
	res, err := rec.AddItem(ctx, "prod-b", 4)

	require.NoError(t, err)
	assert.Equal(t, 5, res.Applied)
	assert.True(t, res.Clamped)
}

func TestAddItem_GuestSaveFailureKeepsLocalState(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	deps.local.err = apperrors.StoreUnavailable(errors.New("redis down"))

	res, err := rec.AddItem(ctx, "prod-a", 2)

	require.NoError(t, err, "persistence failure must not fail the mutation")
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Cart.Items, 1, "local state is never rolled back")

	_, _, notices := rec.Cart()
	require.Len(t, notices, 1)
	assert.Equal(t, "STORE_UNAVAILABLE", notices[0].Code)
}

func TestRemoveItem_Guest(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 3)
	require.NoError(t, err)

	res, err := rec.RemoveItem(ctx, "prod-a", 1)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Cart.Items, 1)
}

func TestSetQuantity_GuestZeroDeletes(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 3)
	require.NoError(t, err)

	res, err := rec.SetQuantity(ctx, "prod-a", 0)

	require.NoError(t, err)
	assert.Empty(t, res.Cart.Items)

	data, err := deps.local.Load(ctx, "sess-1")
	require.NoError(t, err)
	var items []domain.LineItem
	require.NoError(t, json.Unmarshal(data, &items))
	assert.Empty(t, items, "snapshot reflects the deletion")
}

// ============================================================================
// Authenticated Mutation Tests
// ============================================================================

func TestAddItem_AuthenticatedWritesThroughQueue(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)

	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))

	qty, ok := deps.store.quantity("user-1", "prod-a")
	require.True(t, ok)
	assert.Equal(t, 2, qty)
}

func TestRemoveItem_AuthenticatedDropToZeroDeletesRow(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))

	_, err = rec.RemoveItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))

	_, ok := deps.store.quantity("user-1", "prod-a")
	assert.False(t, ok, "dropping to zero issues a delete, not a zero upsert")
	assert.Equal(t, 1, deps.store.deletes)
}

func TestAddItem_AuthenticatedStoreDownIsOptimistic(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	deps.store.setErr(errors.New("postgres down"))

	res, err := rec.AddItem(ctx, "prod-a", 2)

	require.NoError(t, err, "remote failure must not fail the mutation")
	require.Len(t, res.Cart.Items, 1)
	require.NoError(t, rec.Flush(ctx))

	_, _, notices := rec.Cart()
	require.Len(t, notices, 1)
	assert.Equal(t, "STORE_UNAVAILABLE", notices[0].Code)

	cart, _, _ := rec.Cart()
	assert.Len(t, cart.Items, 1, "local state survives the failed write-through")
}

func TestClear_Authenticated(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))

	res, err := rec.Clear(ctx)

	require.NoError(t, err)
	assert.Empty(t, res.Cart.Items)
	rows, err := deps.store.ListItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, deps.events.cleared)
}

func TestClear_GuestDeletesSnapshot(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)

	_, err = rec.Clear(ctx)
	require.NoError(t, err)

	_, err = deps.local.Load(ctx, "sess-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// ============================================================================
// Sign-In Merge Tests
// ============================================================================

func TestSignIn_MergesGuestIntoRemote(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 3))
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-c", 5))

	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	_, err = rec.AddItem(ctx, "prod-b", 1)
	require.NoError(t, err)

	res, err := rec.SignIn(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, res.Cart.Items, 3)
	// Local items keep their order; remote-only items follow.
	assert.Equal(t, "prod-a", res.Cart.Items[0].ProductID)
	assert.Equal(t, 2, res.Cart.Items[0].Quantity)
	assert.Equal(t, "prod-b", res.Cart.Items[1].ProductID)
	assert.Equal(t, 4, res.Cart.Items[1].Quantity, "present on both sides: quantities sum")
	assert.Equal(t, "prod-c", res.Cart.Items[2].ProductID)
	assert.Equal(t, 5, res.Cart.Items[2].Quantity)

	require.NoError(t, rec.Flush(ctx))
	qty, ok := deps.store.quantity("user-1", "prod-a")
	require.True(t, ok, "merged result is pushed to the remote store")
	assert.Equal(t, 2, qty)
	qty, _ = deps.store.quantity("user-1", "prod-b")
	assert.Equal(t, 4, qty)

	_, err = deps.local.Load(ctx, "sess-1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "absorbed guest snapshot is deleted")
	assert.Equal(t, 1, deps.events.merged)
}

func TestSignIn_MergeSumClampedToStock(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	// prod-b stock is 5; guest holds 5, remote holds 2.
	require.NoError(t, deps.store.UpsertItem(ctx, "user-1", "prod-b", 2))

	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-b", 5)
	require.NoError(t, err)

	res, err := rec.SignIn(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, 5, res.Cart.Items[0].Quantity, "5+2 exceeds stock 5, must clamp")
}

func TestSignIn_RemoteListFailureKeepsGuestItems(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	deps.store.setErr(errors.New("postgres down"))

	res, err := rec.SignIn(ctx, "user-1")

	require.NoError(t, err, "merge degrades instead of failing the sign-in")
	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, "user-1", rec.UserID())

	_, _, notices := rec.Cart()
	require.Len(t, notices, 1)
	assert.Equal(t, "STORE_UNAVAILABLE", notices[0].Code)
}

func TestSignIn_SameUserIsNoop(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))
	before := deps.store.upserts

	_, err = rec.SignIn(ctx, "user-1")

	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))
	assert.Equal(t, before, deps.store.upserts, "re-signing in the same user must not re-merge")
}

func TestSignIn_EmptyUserID(t *testing.T) {
	deps := newTestDeps()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(context.Background())

	_, err := rec.SignIn(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestSignOut_ResetsToGuest(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "user-1")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2)
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx))

	rec.SignOut(ctx)

	assert.Equal(t, "", rec.UserID())
	cart, _, _ := rec.Cart()
	assert.Empty(t, cart.Items)

	// The user's persisted cart outlives the session.
	qty, ok := deps.store.quantity("user-1", "prod-a")
	require.True(t, ok)
	assert.Equal(t, 2, qty)
}

// ============================================================================
// Read and Notice Tests
// ============================================================================

func TestCart_DrainsNotices(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	deps.local.err = errors.New("redis down")
	_, err := rec.AddItem(ctx, "prod-a", 1)
	require.NoError(t, err)

	_, _, notices := rec.Cart()
	require.Len(t, notices, 1)

	_, _, notices = rec.Cart()
	assert.Empty(t, notices, "notices are delivered once")
}

func TestCart_TotalsUsePricing(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)
	_, err := rec.AddItem(ctx, "prod-a", 2) // 5000 cents
	require.NoError(t, err)

	_, totals, _ := rec.Cart()

	assert.Equal(t, int64(5000), totals.Subtotal)
	assert.Equal(t, int64(1000), totals.Shipping)
	assert.Equal(t, int64(6000), totals.Total)
}

func TestEvents_PublishedOnMutations(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	rec := deps.newReconciler("sess-1", "")
	rec.Start(ctx)

	_, err := rec.AddItem(ctx, "prod-a", 1)
	require.NoError(t, err)
	_, err = rec.SetQuantity(ctx, "prod-a", 3)
	require.NoError(t, err)
	_, err = rec.RemoveItem(ctx, "prod-a", 1)
	require.NoError(t, err)

	assert.Equal(t, 3, deps.events.updated)
}
