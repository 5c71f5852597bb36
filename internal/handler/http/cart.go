package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joa111/ecom-mang/internal/domain"
	"github.com/joa111/ecom-mang/internal/identity"
	"github.com/joa111/ecom-mang/internal/reconciler"
	"github.com/joa111/ecom-mang/internal/session"
	apperrors "github.com/joa111/ecom-mang/pkg/errors"
	"github.com/joa111/ecom-mang/pkg/httputil"
	"github.com/joa111/ecom-mang/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions *session.Manager
	identity identity.Provider
	notifier *identity.Notifier
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(sessions *session.Manager, provider identity.Provider, notifier *identity.Notifier, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		identity: provider,
		notifier: notifier,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// SetQuantityRequest is the JSON request body for replacing an item's quantity.
type SetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Response DTOs ---

// CartResponse is the full cart view returned by every endpoint.
type CartResponse struct {
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id,omitempty"`
	State     string              `json:"state"`
	Items     []domain.LineItem   `json:"items"`
	Totals    domain.Totals       `json:"totals"`
	Notices   []reconciler.Notice `json:"notices,omitempty"`
	Applied   *int                `json:"applied_quantity,omitempty"`
	Clamped   bool                `json:"clamped,omitempty"`
}

func (h *CartHandler) reconcilerFor(r *http.Request) (*reconciler.Reconciler, string, bool) {
	sid, ok := sessionIDFromContext(r.Context())
	if !ok {
		return nil, "", false
	}
	userID, _ := h.identity.CurrentUserID(r.Context())
	return h.sessions.Get(r.Context(), sid, userID), sid, true
}

func cartResponse(sid string, rec *reconciler.Reconciler) CartResponse {
	cart, totals, notices := rec.Cart()
	return CartResponse{
		SessionID: sid,
		UserID:    rec.UserID(),
		State:     rec.State().String(),
		Items:     cart.Items,
		Totals:    totals,
		Notices:   notices,
	}
}

func mutationResponse(sid string, rec *reconciler.Reconciler, res *reconciler.MutationResult) CartResponse {
	resp := cartResponse(sid, rec)
	resp.Items = res.Cart.Items
	resp.Totals = res.Totals
	resp.Applied = &res.Applied
	resp.Clamped = res.Clamped
	return resp
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(sid, rec)})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := rec.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: mutationResponse(sid, rec, res)})
}

// SetQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("productId is required"), h.logger)
		return
	}

	var req SetQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := rec.SetQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: mutationResponse(sid, rec, res)})
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}?quantity=n
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("productId is required"), h.logger)
		return
	}

	qty := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("quantity must be an integer"), h.logger)
			return
		}
		qty = parsed
	}

	res, err := rec.RemoveItem(r.Context(), productID, qty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: mutationResponse(sid, rec, res)})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	res, err := rec.Clear(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: mutationResponse(sid, rec, res)})
}

// SignIn handles POST /api/v1/cart/session/signin. The bearer token must be
// valid; the guest cart merges into the user's remote cart.
func (h *CartHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	userID, ok := h.identity.CurrentUserID(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("a valid bearer token is required to sign in"), h.logger)
		return
	}

	res, err := rec.SignIn(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.notifier.SignedIn(r.Context(), userID)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: mutationResponse(sid, rec, res)})
}

// SignOut handles POST /api/v1/cart/session/signout.
func (h *CartHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	rec, sid, ok := h.reconcilerFor(r)
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("session id is required"), h.logger)
		return
	}

	rec.SignOut(r.Context())
	h.notifier.SignedOut(r.Context())

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cartResponse(sid, rec)})
}
