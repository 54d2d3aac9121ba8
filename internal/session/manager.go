// Package session manages per-viewer sticky language/location state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// Store holds session contexts keyed by session id. Implemented by the redis
// store in production; expiry is the store's job.
type Store interface {
	GetSession(ctx context.Context, id string) (*domain.SessionContext, error)
	SetSession(ctx context.Context, id string, sc *domain.SessionContext, ttl time.Duration) error
	TouchSession(ctx context.Context, id string, ttl time.Duration) error
}

// Resolver produces a session context for a new session's address.
type Resolver interface {
	Resolve(ctx context.Context, addr string) domain.SessionContext
}

// Manager implements getOrInit semantics with a sliding TTL: every access
// extends the expiry by the full window.
type Manager struct {
	store    Store
	resolver Resolver
	ttl      time.Duration
	logger   *slog.Logger
}

func NewManager(store Store, resolver Resolver, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{store: store, resolver: resolver, ttl: ttl, logger: logger}
}

// GetOrInit returns the session's context, resolving and storing it on first
// access. A store failure degrades to a freshly resolved, unpersisted
// context rather than failing the viewer request: the dataset does not
// depend on the session store.
func (m *Manager) GetOrInit(ctx context.Context, sessionID, addr string) domain.SessionContext {
	existing, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		m.logger.Warn("session read failed, resolving statelessly", "error", err)
		return m.resolver.Resolve(ctx, addr)
	}
	if existing != nil {
		if err := m.store.TouchSession(ctx, sessionID, m.ttl); err != nil {
			m.logger.Warn("session touch failed", "error", err)
		}
		return *existing
	}

	sc := m.resolver.Resolve(ctx, addr)
	if err := m.store.SetSession(ctx, sessionID, &sc, m.ttl); err != nil {
		m.logger.Warn("session write failed", "error", err)
	}
	return sc
}

// SetLanguage overrides only the language field without re-resolving
// location, initializing the session from the address first if needed.
func (m *Manager) SetLanguage(ctx context.Context, sessionID, addr string, lang domain.Language) (domain.SessionContext, error) {
	sc := m.GetOrInit(ctx, sessionID, addr)
	sc.Language = lang
	if err := m.store.SetSession(ctx, sessionID, &sc, m.ttl); err != nil {
		return domain.SessionContext{}, fmt.Errorf("persist language override: %w", err)
	}
	return sc, nil
}
