package geoip

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/observability"
)

// GeoCache stores resolved addresses with a fixed TTL. Implemented by the
// redis store in production.
type GeoCache interface {
	GetGeo(ctx context.Context, addr string) (*domain.GeoContext, error)
	SetGeo(ctx context.Context, addr string, geo *domain.GeoContext, ttl time.Duration) error
}

// Lookuper performs the external lookup. Implemented by Client.
type Lookuper interface {
	Lookup(ctx context.Context, addr string) (domain.GeoContext, error)
}

// Defaults is the documented fallback returned whenever a lookup cannot
// produce a usable location.
type Defaults struct {
	Language  domain.Language
	Latitude  float64
	Longitude float64
	City      string
	Timezone  string
}

// Resolver maps a viewer address to a session context, consulting the cache
// before the external lookup. It never returns an error: a viewer request
// must not fail because geolocation did.
type Resolver struct {
	cache        GeoCache
	client       Lookuper
	ttl          time.Duration
	homeCountry  string
	homeLanguage domain.Language
	defaults     Defaults
	logger       *slog.Logger
	metrics      *observability.Metrics
}

func NewResolver(cache GeoCache, client Lookuper, ttl time.Duration, homeCountry string, homeLanguage domain.Language, defaults Defaults, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		cache:        cache,
		client:       client,
		ttl:          ttl,
		homeCountry:  homeCountry,
		homeLanguage: homeLanguage,
		defaults:     defaults,
		logger:       logger,
		metrics:      metrics,
	}
}

// Resolve returns the session context for an address: cached result if
// fresh, external lookup on a miss, defaults on any failure. Cache write
// failures are logged and ignored; the resolved value still serves the
// current request.
func (r *Resolver) Resolve(ctx context.Context, addr string) domain.SessionContext {
	if addr == "" {
		r.metrics.GeoLookups.WithLabelValues("default").Inc()
		return r.defaultContext()
	}

	if geo, err := r.cache.GetGeo(ctx, addr); err != nil {
		r.logger.Warn("geo cache read failed", "addr", addr, "error", err)
	} else if geo != nil {
		r.metrics.GeoCache.WithLabelValues("hit").Inc()
		return r.contextFrom(*geo)
	} else {
		r.metrics.GeoCache.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	geo, err := r.client.Lookup(ctx, addr)
	r.metrics.GeoLookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.logger.Warn("geo lookup failed, using defaults", "addr", addr, "error", err)
		r.metrics.GeoLookups.WithLabelValues("error").Inc()
		return r.defaultContext()
	}
	r.metrics.GeoLookups.WithLabelValues("success").Inc()

	if err := r.cache.SetGeo(ctx, addr, &geo, r.ttl); err != nil {
		r.logger.Warn("geo cache write failed", "addr", addr, "error", err)
	}

	return r.contextFrom(geo)
}

func (r *Resolver) contextFrom(geo domain.GeoContext) domain.SessionContext {
	lang := r.defaults.Language
	if geo.Country == r.homeCountry {
		lang = r.homeLanguage
	}
	lat, lon := geo.Latitude, geo.Longitude
	return domain.SessionContext{
		Language:  lang,
		Latitude:  &lat,
		Longitude: &lon,
		City:      geo.City,
		Timezone:  geo.Timezone,
	}
}

func (r *Resolver) defaultContext() domain.SessionContext {
	lat, lon := r.defaults.Latitude, r.defaults.Longitude
	return domain.SessionContext{
		Language:  r.defaults.Language,
		Latitude:  &lat,
		Longitude: &lon,
		City:      r.defaults.City,
		Timezone:  r.defaults.Timezone,
	}
}
