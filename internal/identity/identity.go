package identity

import (
	"context"
	"sync"
)

// Provider resolves the current session's authenticated identity. Returns
// false while the session is a guest.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Change is a session identity transition.
type Change struct {
	// UserID is set for a sign-in; empty for a sign-out.
	UserID string
}

// SignedIn reports whether the change is a sign-in.
func (c Change) SignedIn() bool {
	return c.UserID != ""
}

// Listener receives identity change notifications.
type Listener func(ctx context.Context, change Change)

// Notifier fans out sign-in and sign-out notifications to registered
// listeners, such as audit logging. The HTTP handler drives the cart merge
// itself and notifies listeners after the fact.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a listener for future identity changes.
func (n *Notifier) Subscribe(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// SignedIn notifies all listeners of a sign-in.
func (n *Notifier) SignedIn(ctx context.Context, userID string) {
	n.notify(ctx, Change{UserID: userID})
}

// SignedOut notifies all listeners of a sign-out.
func (n *Notifier) SignedOut(ctx context.Context) {
	n.notify(ctx, Change{})
}

func (n *Notifier) notify(ctx context.Context, change Change) {
	n.mu.RLock()
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, change)
	}
}
