package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joa111/ecom-mang/internal/catalog"
	"github.com/joa111/ecom-mang/internal/reconciler"
	"github.com/joa111/ecom-mang/internal/repository"
)

// Manager owns the live per-session reconcilers. Each session gets exactly
// one reconciler; no cart state is shared across sessions. Idle sessions are
// evicted after the configured TTL — the persisted copy outlives the
// in-memory cart.
type Manager struct {
	store   repository.RemoteCartStore
	local   repository.LocalStorage
	catalog catalog.Catalog
	events  reconciler.EventPublisher
	cfg     reconciler.Config
	logger  *slog.Logger
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	rec      *reconciler.Reconciler
	lastSeen time.Time
	// ready closes once Start has finished hydrating. Entries are published
	// into the map before hydration so concurrent requests for a new session
	// share one reconciler, but none may use it until hydration settles.
	ready chan struct{}
}

// NewManager creates a session manager.
func NewManager(
	store repository.RemoteCartStore,
	local repository.LocalStorage,
	cat catalog.Catalog,
	events reconciler.EventPublisher,
	cfg reconciler.Config,
	idleTTL time.Duration,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		store:    store,
		local:    local,
		catalog:  cat,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		idleTTL:  idleTTL,
		sessions: make(map[string]*entry),
	}
}

// Get returns the reconciler for the session, creating and hydrating it on
// first access. userID seeds the identity for a session arriving with a
// valid token; it is ignored for sessions already live. Get does not return
// until hydration has settled, so a mutation accepted by one request can
// never be overwritten by a hydration still running on another.
func (m *Manager) Get(ctx context.Context, sessionID, userID string) *reconciler.Reconciler {
	m.mu.Lock()
	if e, ok := m.sessions[sessionID]; ok {
		e.lastSeen = time.Now()
		m.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
		}
		return e.rec
	}

	e := &entry{
		rec:      reconciler.New(sessionID, userID, m.store, m.local, m.catalog, m.events, m.cfg, m.logger),
		lastSeen: time.Now(),
		ready:    make(chan struct{}),
	}
	m.sessions[sessionID] = e
	m.mu.Unlock()

	e.rec.Start(ctx)
	close(e.ready)
	return e.rec
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than the TTL, flushing their pending
// write-throughs first. It blocks until ctx is done.
func (m *Manager) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle(ctx)
		}
	}
}

func (m *Manager) evictIdle(ctx context.Context) {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*reconciler.Reconciler
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.rec)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, rec := range idle {
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := rec.Flush(flushCtx); err != nil {
			m.logger.Warn("flush on session eviction timed out",
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}

	if len(idle) > 0 {
		m.logger.Info("evicted idle cart sessions", slog.Int("count", len(idle)))
	}
}

// Close flushes every live session's pending writes. Called on shutdown.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	recs := make([]*reconciler.Reconciler, 0, len(m.sessions))
	for _, e := range m.sessions {
		recs = append(recs, e.rec)
	}
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, rec := range recs {
		if err := rec.Flush(ctx); err != nil {
			m.logger.Warn("flush on shutdown timed out",
				slog.String("error", err.Error()),
			)
		}
	}
}
