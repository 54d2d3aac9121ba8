package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// fakeStore records session writes and touches.
type fakeStore struct {
	sessions map[string]domain.SessionContext
	touches  int
	getErr   error
	setErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]domain.SessionContext)}
}

func (s *fakeStore) GetSession(_ context.Context, id string) (*domain.SessionContext, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	sc, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (s *fakeStore) SetSession(_ context.Context, id string, sc *domain.SessionContext, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sessions[id] = *sc
	return nil
}

func (s *fakeStore) TouchSession(_ context.Context, _ string, _ time.Duration) error {
	s.touches++
	return nil
}

// fakeResolver counts resolutions.
type fakeResolver struct {
	calls  int
	result domain.SessionContext
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) domain.SessionContext {
	r.calls++
	return r.result
}

func resolved(lang domain.Language, city string) domain.SessionContext {
	lat, lon := -30.0346, -51.2177
	return domain.SessionContext{Language: lang, Latitude: &lat, Longitude: &lon, City: city}
}

func newTestManager(store Store, resolver Resolver) *Manager {
	return NewManager(store, resolver, time.Hour, slog.New(slog.DiscardHandler))
}

func TestGetOrInit_ResolvesOncePerSession(t *testing.T) {
	store := newFakeStore()
	resolver := &fakeResolver{result: resolved(domain.LangPortuguese, "Porto Alegre")}
	m := newTestManager(store, resolver)

	first := m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")
	second := m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")

	assert.Equal(t, 1, resolver.calls, "geo resolution happens once per session")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.touches, "second access slides the TTL")
}

func TestGetOrInit_DistinctSessions(t *testing.T) {
	store := newFakeStore()
	resolver := &fakeResolver{result: resolved(domain.LangPortuguese, "Porto Alegre")}
	m := newTestManager(store, resolver)

	m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")
	m.GetOrInit(context.Background(), "sess-2", "203.0.113.7")

	assert.Equal(t, 2, resolver.calls)
}

func TestGetOrInit_StoreReadFailureDegrades(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("store down")
	resolver := &fakeResolver{result: resolved(domain.LangEnglish, "Porto Alegre")}
	m := newTestManager(store, resolver)

	sc := m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")
	assert.Equal(t, domain.LangEnglish, sc.Language)
	assert.Equal(t, 1, resolver.calls)
}

func TestSetLanguage_OverridesWithoutReResolving(t *testing.T) {
	store := newFakeStore()
	resolver := &fakeResolver{result: resolved(domain.LangPortuguese, "Canoas")}
	m := newTestManager(store, resolver)

	m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")
	sc, err := m.SetLanguage(context.Background(), "sess-1", "203.0.113.7", domain.LangEnglish)
	require.NoError(t, err)

	assert.Equal(t, domain.LangEnglish, sc.Language)
	assert.Equal(t, "Canoas", sc.City, "location survives a language override")
	assert.Equal(t, 1, resolver.calls, "override must not re-resolve location")

	after := m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")
	assert.Equal(t, domain.LangEnglish, after.Language, "override is persisted")
}

func TestSetLanguage_StoreFailure(t *testing.T) {
	store := newFakeStore()
	resolver := &fakeResolver{result: resolved(domain.LangPortuguese, "Canoas")}
	m := newTestManager(store, resolver)
	m.GetOrInit(context.Background(), "sess-1", "203.0.113.7")

	store.setErr = errors.New("store down")
	_, err := m.SetLanguage(context.Background(), "sess-1", "203.0.113.7", domain.LangEnglish)
	assert.Error(t, err)
}
