package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joa111/ecom-mang/internal/catalog"
	"github.com/joa111/ecom-mang/internal/domain"
	"github.com/joa111/ecom-mang/internal/repository"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
)

// State is the reconciler lifecycle state for one session.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateReady
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Notice is a recoverable problem surfaced to the caller, such as a failed
// write-through. Notices never indicate lost local state.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const maxPendingNotices = 8

// EventPublisher publishes cart domain events. May be nil when events are
// disabled; failures are logged, never propagated.
type EventPublisher interface {
	CartUpdated(ctx context.Context, sessionID, userID string, cart *domain.Cart) error
	CartMerged(ctx context.Context, sessionID, userID string, cart *domain.Cart) error
	CartCleared(ctx context.Context, sessionID, userID string) error
}

// Config holds per-reconciler settings.
type Config struct {
	Pricing       domain.Pricing
	WriteMaxTries uint
}

// MutationResult is the outcome of a cart mutation: the post-mutation cart
// copy, its derived totals, and the applied quantity after stock clamping.
type MutationResult struct {
	Cart    *domain.Cart  `json:"cart"`
	Totals  domain.Totals `json:"totals"`
	Applied int           `json:"applied_quantity"`
	Clamped bool          `json:"clamped"`
}

// Reconciler bridges one session's in-memory cart to whichever persistence
// target matches the session identity. Guest carts write through to local
// durable storage; authenticated carts write through to the remote cart
// store via a per-key serialized queue. Mutations are optimistic: local state
// is the source of truth for the session and is never rolled back on a
// remote failure.
type Reconciler struct {
	sessionID string
	store     repository.RemoteCartStore
	local     repository.LocalStorage
	catalog   catalog.Catalog
	events    EventPublisher
	logger    *slog.Logger
	pricing   domain.Pricing

	queue *writeQueue

	mu      sync.Mutex
	state   State
	cart    *domain.Cart
	userID  string
	notices []Notice
}

// New creates a reconciler for one session. userID is empty for guest
// sessions. Call Start to hydrate before serving reads.
func New(
	sessionID, userID string,
	store repository.RemoteCartStore,
	local repository.LocalStorage,
	cat catalog.Catalog,
	events EventPublisher,
	cfg Config,
	logger *slog.Logger,
) *Reconciler {
	r := &Reconciler{
		sessionID: sessionID,
		store:     store,
		local:     local,
		catalog:   cat,
		events:    events,
		logger:    logger.With(slog.String("session_id", sessionID)),
		pricing:   cfg.Pricing,
		state:     StateUninitialized,
		cart:      domain.NewCart(),
		userID:    userID,
	}

	r.queue = newWriteQueue(r.applyWrite, r.writeFailed, cfg.WriteMaxTries, r.logger)
	return r
}

// Start hydrates the cart from the store matching the session identity.
// Hydration failure is not fatal: the session continues with an empty cart
// and a notice. Start is idempotent.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateUninitialized {
		r.mu.Unlock()
		return
	}
	r.state = StateHydrating
	userID := r.userID
	r.mu.Unlock()

	cart, err := r.hydrate(ctx, userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		hydrationFailures.Inc()
		r.logger.WarnContext(ctx, "cart hydration failed, starting empty",
			slog.String("error", err.Error()),
		)
		r.pushNoticeLocked("STORE_UNAVAILABLE", "cart could not be loaded; starting with an empty cart")
		cart = domain.NewCart()
	}
	r.cart = cart
	r.state = StateReady
}

// hydrate loads the persisted cart for the session identity.
func (r *Reconciler) hydrate(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return r.loadGuestSnapshot(ctx)
	}
	cart, err := r.loadRemote(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.absorbGuestSnapshot(ctx, userID, cart), nil
}

// absorbGuestSnapshot folds a leftover guest snapshot into a freshly hydrated
// authenticated cart. A session can arrive already carrying a valid token
// (first request after an eviction or a restart) without ever passing through
// SignIn; the durable snapshot still holds the guest cart and must be merged,
// not dropped. On any failure the snapshot stays in place for a later attempt.
func (r *Reconciler) absorbGuestSnapshot(ctx context.Context, userID string, remote *domain.Cart) *domain.Cart {
	guest, err := r.loadGuestSnapshot(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "guest snapshot load failed during authenticated hydration",
			slog.String("error", err.Error()),
		)
		return remote
	}
	if len(guest.Items) == 0 {
		return remote
	}

	merged := r.merge(guest, remote.Items)
	for _, item := range merged.Items {
		r.queue.Enqueue(item.ProductID, item.Quantity, false)
	}
	if err := r.local.Delete(ctx, r.sessionID); err != nil {
		r.logger.WarnContext(ctx, "guest snapshot delete failed after merge",
			slog.String("error", err.Error()),
		)
	}

	mergesTotal.Inc()
	if r.events != nil {
		if err := r.events.CartMerged(ctx, r.sessionID, userID, merged.Clone()); err != nil {
			r.logger.ErrorContext(ctx, "failed to publish cart.merged event",
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "guest cart merged on authenticated hydration",
		slog.String("user_id", userID),
		slog.Int("item_count", merged.ItemCount()),
	)
	return merged
}

// loadGuestSnapshot reads the guest cart snapshot from local storage. A
// missing snapshot is a fresh session, not an error.
func (r *Reconciler) loadGuestSnapshot(ctx context.Context) (*domain.Cart, error) {
	data, err := r.local.Load(ctx, r.sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(), nil
		}
		return nil, fmt.Errorf("load guest snapshot: %w", err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal guest snapshot: %w", err)
	}
	return &domain.Cart{Items: items}, nil
}

// loadRemote lists the user's rows from the remote cart store and resolves
// each against the catalog for price and stock snapshots. A row whose product
// cannot be resolved is kept with a zero price so the quantity is not lost.
func (r *Reconciler) loadRemote(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := r.store.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list remote cart: %w", err)
	}

	cart := domain.NewCart()
	for _, row := range rows {
		cart.Items = append(cart.Items, r.resolveRow(ctx, row))
	}
	return cart, nil
}

// resolveRow turns a persisted (product, quantity) row into a line item with
// a catalog snapshot.
func (r *Reconciler) resolveRow(ctx context.Context, row repository.CartRow) domain.LineItem {
	p, err := r.catalog.GetProduct(ctx, row.ProductID)
	if err != nil {
		r.logger.WarnContext(ctx, "catalog lookup failed for cart row",
			slog.String("product_id", row.ProductID),
			slog.String("error", err.Error()),
		)
		return domain.LineItem{
			ProductID: row.ProductID,
			Name:      "Unknown Product",
			Quantity:  row.Quantity,
		}
	}
	qty := row.Quantity
	if p.StockQuantity != domain.StockUnknown && qty > p.StockQuantity {
		qty = p.StockQuantity
	}
	return domain.LineItem{
		ProductID:     p.ID,
		Name:          p.Name,
		UnitPrice:     p.UnitPrice,
		Quantity:      qty,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
	}
}

// AddItem snapshots the product from the catalog, applies the add to the
// in-memory cart, and schedules the write-through.
func (r *Reconciler) AddItem(ctx context.Context, productID string, qty int) (*MutationResult, error) {
	p, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	applied, clamped, err := r.cart.AddItem(*p, qty)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	userID := r.userID
	cart := r.cart.Clone()
	r.mu.Unlock()

	r.writeThrough(ctx, userID, cart, productID, applied, false)
	r.publishUpdated(ctx, userID, cart)

	r.logger.InfoContext(ctx, "item added to cart",
		slog.String("product_id", productID),
		slog.Int("requested", qty),
		slog.Int("applied", applied),
		slog.Bool("clamped", clamped),
	)

	return r.result(cart, applied, clamped), nil
}

// RemoveItem decreases the quantity of the given product; dropping to zero
// removes the line item and issues a delete against the remote store rather
// than an upsert of quantity zero.
func (r *Reconciler) RemoveItem(ctx context.Context, productID string, qty int) (*MutationResult, error) {
	r.mu.Lock()
	remaining, err := r.cart.RemoveItem(productID, qty)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	userID := r.userID
	cart := r.cart.Clone()
	r.mu.Unlock()

	r.writeThrough(ctx, userID, cart, productID, remaining, remaining == 0)
	r.publishUpdated(ctx, userID, cart)

	r.logger.InfoContext(ctx, "item removed from cart",
		slog.String("product_id", productID),
		slog.Int("remaining", remaining),
	)

	return r.result(cart, remaining, false), nil
}

// SetQuantity replaces the quantity for the given product. Zero deletes the
// item; negative values are rejected.
func (r *Reconciler) SetQuantity(ctx context.Context, productID string, qty int) (*MutationResult, error) {
	r.mu.Lock()
	applied, clamped, err := r.cart.SetQuantity(productID, qty)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	userID := r.userID
	cart := r.cart.Clone()
	r.mu.Unlock()

	r.writeThrough(ctx, userID, cart, productID, applied, qty == 0)
	r.publishUpdated(ctx, userID, cart)

	return r.result(cart, applied, clamped), nil
}

// Clear empties the cart, used after a successful checkout. The remote clear
// runs synchronously; its failure is a notice, not a rollback.
func (r *Reconciler) Clear(ctx context.Context) (*MutationResult, error) {
	r.mu.Lock()
	r.cart.Clear()
	userID := r.userID
	cart := r.cart.Clone()
	r.mu.Unlock()

	if userID != "" {
		if err := r.store.Clear(ctx, userID); err != nil {
			r.logger.WarnContext(ctx, "remote cart clear failed",
				slog.String("error", err.Error()),
			)
			r.noticeStoreUnavailable()
		}
	} else if err := r.local.Delete(ctx, r.sessionID); err != nil {
		r.logger.WarnContext(ctx, "guest snapshot delete failed",
			slog.String("error", err.Error()),
		)
		r.noticeStoreUnavailable()
	}

	if r.events != nil {
		if err := r.events.CartCleared(ctx, r.sessionID, userID); err != nil {
			r.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "cart cleared")
	return r.result(cart, 0, false), nil
}

// SignIn transitions the session to the authenticated identity and merges the
// guest cart into the user's remote cart. For each local line item: absent
// remote rows take the local quantity; present rows take the sum of local and
// remote quantities, clamped to stock. The merged result overwrites the local
// cache and is pushed to the remote store. Losing guest cart contents is
// considered worse than diverging from exact remote state.
func (r *Reconciler) SignIn(ctx context.Context, userID string) (*MutationResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	r.mu.Lock()
	if r.userID == userID {
		cart := r.cart.Clone()
		r.mu.Unlock()
		return r.result(cart, 0, false), nil
	}
	local := r.cart.Clone()
	r.userID = userID
	r.mu.Unlock()

	rows, err := r.store.ListItems(ctx, userID)
	if err != nil {
		// Degrade to merging against an empty remote cart; the queued
		// upserts below still push the guest items once the store recovers.
		r.logger.WarnContext(ctx, "remote cart list failed during merge",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		r.noticeStoreUnavailable()
		rows = nil
	}

	remote := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		remote = append(remote, r.resolveRow(ctx, row))
	}
	merged := r.merge(local, remote)

	r.mu.Lock()
	r.cart = merged
	cart := merged.Clone()
	r.mu.Unlock()

	// Push the merged state to the remote store and drop the guest snapshot,
	// which has been absorbed.
	for _, item := range cart.Items {
		r.queue.Enqueue(item.ProductID, item.Quantity, false)
	}
	if err := r.local.Delete(ctx, r.sessionID); err != nil {
		r.logger.WarnContext(ctx, "guest snapshot delete failed after merge",
			slog.String("error", err.Error()),
		)
	}

	mergesTotal.Inc()
	if r.events != nil {
		if err := r.events.CartMerged(ctx, r.sessionID, userID, cart); err != nil {
			r.logger.ErrorContext(ctx, "failed to publish cart.merged event",
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "guest cart merged",
		slog.String("user_id", userID),
		slog.Int("item_count", cart.ItemCount()),
	)

	return r.result(cart, 0, false), nil
}

// merge combines the local cart with the remote line items. Local items keep
// their insertion order; remote-only items follow. Quantities present on both
// sides sum, clamped to the local stock snapshot.
func (r *Reconciler) merge(local *domain.Cart, remote []domain.LineItem) *domain.Cart {
	merged := local.Clone()

	for _, item := range remote {
		if i := merged.FindIndex(item.ProductID); i >= 0 {
			sum := merged.Items[i].Quantity + item.Quantity
			if stock := merged.Items[i].StockQuantity; stock != domain.StockUnknown && sum > stock {
				sum = stock
			}
			merged.Items[i].Quantity = sum
			continue
		}
		merged.Items = append(merged.Items, item)
	}

	return merged
}

// SignOut resets the session to a fresh guest identity. The user's persisted
// cart outlives the session; only the in-memory cart is torn down.
func (r *Reconciler) SignOut(ctx context.Context) {
	r.mu.Lock()
	r.userID = ""
	r.cart = domain.NewCart()
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "session signed out")
}

// Cart returns a copy of the current cart with derived totals and drains any
// pending notices.
func (r *Reconciler) Cart() (*domain.Cart, domain.Totals, []Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart := r.cart.Clone()
	notices := r.notices
	r.notices = nil
	return cart, cart.Totals(r.pricing), notices
}

// State reports the lifecycle state; Ready becomes Syncing while
// write-throughs are in flight.
func (r *Reconciler) State() State {
	r.mu.Lock()
	state := r.state
	r.mu.Unlock()

	if state == StateReady && r.queue.Active() > 0 {
		return StateSyncing
	}
	return state
}

// UserID returns the authenticated user ID, or empty for a guest session.
func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Flush waits for all scheduled write-throughs to settle. Used on shutdown
// and in tests.
func (r *Reconciler) Flush(ctx context.Context) error {
	return r.queue.Flush(ctx)
}

// writeThrough persists a mutation to the target matching the session
// identity. Guest snapshots are saved inline (local storage is synchronous
// and always available); authenticated writes go through the per-key queue.
func (r *Reconciler) writeThrough(ctx context.Context, userID string, cart *domain.Cart, productID string, quantity int, del bool) {
	if userID != "" {
		r.queue.Enqueue(productID, quantity, del)
		return
	}

	data, err := json.Marshal(cart.Items)
	if err != nil {
		r.logger.ErrorContext(ctx, "marshal guest snapshot", slog.String("error", err.Error()))
		return
	}
	if err := r.local.Save(ctx, r.sessionID, data); err != nil {
		r.logger.WarnContext(ctx, "guest snapshot save failed",
			slog.String("error", err.Error()),
		)
		r.noticeStoreUnavailable()
	}
}

// applyWrite is the queue's apply function: one upsert or delete against the
// remote cart store for the session's user.
func (r *Reconciler) applyWrite(ctx context.Context, op writeOp) error {
	r.mu.Lock()
	userID := r.userID
	r.mu.Unlock()

	if userID == "" {
		// Signed out while the write was queued; the user's persisted cart
		// must not change after the session identity is gone.
		return nil
	}

	if op.Delete {
		return r.store.DeleteItem(ctx, userID, op.ProductID)
	}
	return r.store.UpsertItem(ctx, userID, op.ProductID, op.Quantity)
}

// writeFailed records a write-through that gave up after retries. Local state
// stays authoritative; the next mutation for the key re-attempts the write.
func (r *Reconciler) writeFailed(op writeOp, err error) {
	r.logger.Warn("cart write-through failed",
		slog.String("product_id", op.ProductID),
		slog.Bool("delete", op.Delete),
		slog.String("error", err.Error()),
	)
	r.noticeStoreUnavailable()
}

func (r *Reconciler) noticeStoreUnavailable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushNoticeLocked("STORE_UNAVAILABLE", "cart changes are saved locally and will sync when the store recovers")
}

// pushNoticeLocked appends a notice, deduplicating by code and keeping the
// list bounded. Caller must hold r.mu.
func (r *Reconciler) pushNoticeLocked(code, message string) {
	for _, n := range r.notices {
		if n.Code == code {
			return
		}
	}
	if len(r.notices) >= maxPendingNotices {
		r.notices = r.notices[1:]
	}
	r.notices = append(r.notices, Notice{Code: code, Message: message})
}

func (r *Reconciler) publishUpdated(ctx context.Context, userID string, cart *domain.Cart) {
	if r.events == nil {
		return
	}
	if err := r.events.CartUpdated(ctx, r.sessionID, userID, cart); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reconciler) result(cart *domain.Cart, applied int, clamped bool) *MutationResult {
	return &MutationResult{
		Cart:    cart,
		Totals:  cart.Totals(r.pricing),
		Applied: applied,
		Clamped: clamped,
	}
}
