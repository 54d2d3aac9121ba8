package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/observability"
)

var testDefaults = Defaults{
	Language:  domain.LangEnglish,
	Latitude:  -30.0346,
	Longitude: -51.2177,
	City:      "Porto Alegre",
	Timezone:  "America/Sao_Paulo",
}

// fakeCache implements GeoCache in memory with clock-driven TTL expiry.
type fakeCache struct {
	clock   clockwork.Clock
	entries map[string]fakeEntry
	err     error
}

type fakeEntry struct {
	geo       domain.GeoContext
	expiresAt time.Time
}

func newFakeCache(clock clockwork.Clock) *fakeCache {
	return &fakeCache{clock: clock, entries: make(map[string]fakeEntry)}
}

func (c *fakeCache) GetGeo(_ context.Context, addr string) (*domain.GeoContext, error) {
	if c.err != nil {
		return nil, c.err
	}
	e, ok := c.entries[addr]
	if !ok || c.clock.Now().After(e.expiresAt) {
		return nil, nil
	}
	geo := e.geo
	return &geo, nil
}

func (c *fakeCache) SetGeo(_ context.Context, addr string, geo *domain.GeoContext, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.entries[addr] = fakeEntry{geo: *geo, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

// countingLookuper counts external lookups.
type countingLookuper struct {
	calls  int
	result domain.GeoContext
	err    error
}

func (l *countingLookuper) Lookup(_ context.Context, _ string) (domain.GeoContext, error) {
	l.calls++
	if l.err != nil {
		return domain.GeoContext{}, l.err
	}
	return l.result, nil
}

func newTestResolver(cache GeoCache, client Lookuper) *Resolver {
	return NewResolver(cache, client, 24*time.Hour, "BR", domain.LangPortuguese, testDefaults,
		slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
}

func TestResolve_CacheBoundsExternalLookups(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newFakeCache(clock)
	lookuper := &countingLookuper{
		result: domain.GeoContext{Country: "BR", City: "Canoas", Latitude: -29.9178, Longitude: -51.1836, Timezone: "America/Sao_Paulo"},
	}
	r := newTestResolver(cache, lookuper)

	first := r.Resolve(context.Background(), "203.0.113.7")
	second := r.Resolve(context.Background(), "203.0.113.7")
	assert.Equal(t, 1, lookuper.calls, "two lookups within the TTL hit the resolver once")
	assert.Equal(t, first, second)

	clock.Advance(24*time.Hour + time.Minute)
	r.Resolve(context.Background(), "203.0.113.7")
	assert.Equal(t, 2, lookuper.calls, "lookup after TTL expiry goes external again")
}

func TestResolve_HomeCountryLanguage(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lookuper := &countingLookuper{
		result: domain.GeoContext{Country: "BR", City: "Canoas", Latitude: -29.9, Longitude: -51.1},
	}
	r := newTestResolver(newFakeCache(clock), lookuper)

	sc := r.Resolve(context.Background(), "203.0.113.7")
	assert.Equal(t, domain.LangPortuguese, sc.Language)
	assert.Equal(t, "Canoas", sc.City)
	require.True(t, sc.HasLocation())
	assert.InDelta(t, -29.9, *sc.Latitude, 1e-9)
}

func TestResolve_ForeignCountryDefaultsLanguage(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lookuper := &countingLookuper{
		result: domain.GeoContext{Country: "AR", City: "Buenos Aires", Latitude: -34.6, Longitude: -58.4},
	}
	r := newTestResolver(newFakeCache(clock), lookuper)

	sc := r.Resolve(context.Background(), "203.0.113.8")
	assert.Equal(t, domain.LangEnglish, sc.Language)
	assert.Equal(t, "Buenos Aires", sc.City)
}

func TestResolve_LookupFailureFallsBackToDefaults(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lookuper := &countingLookuper{err: errors.New("timeout")}
	r := newTestResolver(newFakeCache(clock), lookuper)

	sc := r.Resolve(context.Background(), "203.0.113.9")
	assert.Equal(t, testDefaults.Language, sc.Language)
	assert.Equal(t, "Porto Alegre", sc.City)
	require.True(t, sc.HasLocation())
	assert.InDelta(t, testDefaults.Latitude, *sc.Latitude, 1e-9)
}

func TestResolve_CacheFailureStillResolves(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newFakeCache(clock)
	cache.err = errors.New("store down")
	lookuper := &countingLookuper{
		result: domain.GeoContext{Country: "BR", City: "Canoas", Latitude: -29.9, Longitude: -51.1},
	}
	r := newTestResolver(cache, lookuper)

	sc := r.Resolve(context.Background(), "203.0.113.10")
	assert.Equal(t, "Canoas", sc.City)
	assert.Equal(t, 1, lookuper.calls)
}

func TestResolve_EmptyAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	lookuper := &countingLookuper{}
	r := newTestResolver(newFakeCache(clock), lookuper)

	sc := r.Resolve(context.Background(), "")
	assert.Equal(t, "Porto Alegre", sc.City)
	assert.Zero(t, lookuper.calls)
}

func TestClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/203.0.113.7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success", "countryCode": "BR", "city": "Porto Alegre",
			"lat": -30.03, "lon": -51.21, "timezone": "America/Sao_Paulo",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	geo, err := c.Lookup(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, "BR", geo.Country)
	assert.Equal(t, "Porto Alegre", geo.City)
	assert.InDelta(t, -30.03, geo.Latitude, 1e-9)
}

func TestClient_LookupFailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail", "message": "private range"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Lookup(context.Background(), "10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private range")
}

func TestClient_LookupMissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "countryCode": "BR"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Lookup(context.Background(), "203.0.113.7")
	require.Error(t, err)
}
