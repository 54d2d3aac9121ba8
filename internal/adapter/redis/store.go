// Package redis wraps the go-redis client with the service's key layout:
//
//	shelters              canonical shelter JSON array
//	last_update           UTC timestamp string (YYYY-MM-DD HH:MM:SS)
//	user_location:<addr>  geo lookup result, fixed TTL
//	session:<id>          viewer session context, sliding TTL
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

const (
	sheltersKey   = "shelters"
	lastUpdateKey = "last_update"
	geoKeyPrefix  = "user_location:"
	sessionPrefix = "session:"

	lastUpdateLayout = "2006-01-02 15:04:05"
)

// Store is the volatile key-value layer behind the dataset warm start, the
// geo cache, and the session store.
type Store struct {
	client *goredis.Client
}

// NewStore creates a Store from a redis:// URL. Connectivity is verified
// with Ping by the caller; the client reconnects on its own afterwards.
func NewStore(redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Store{client: goredis.NewClient(opts)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// SaveSnapshot writes the canonical dataset and its refresh stamp.
func (s *Store) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap.Shelters)
	if err != nil {
		return fmt.Errorf("marshal shelters: %w", err)
	}
	if err := s.client.Set(ctx, sheltersKey, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrStoreUnavailable, sheltersKey, err)
	}
	stamp := snap.RefreshedAt.UTC().Format(lastUpdateLayout)
	if err := s.client.Set(ctx, lastUpdateKey, stamp, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrStoreUnavailable, lastUpdateKey, err)
	}
	return nil
}

// LoadSnapshot reads the dataset back for a warm start. Returns (nil, nil)
// when the store holds no dataset yet.
func (s *Store) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	data, err := s.client.Get(ctx, sheltersKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrStoreUnavailable, sheltersKey, err)
	}

	var shelters []domain.Shelter
	if err := json.Unmarshal(data, &shelters); err != nil {
		return nil, fmt.Errorf("unmarshal shelters: %w", err)
	}

	refreshedAt := time.Time{}
	stamp, err := s.client.Get(ctx, lastUpdateKey).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		// Dataset without a stamp: keep the zero time rather than invent one.
	case err != nil:
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrStoreUnavailable, lastUpdateKey, err)
	default:
		if t, perr := time.Parse(lastUpdateLayout, stamp); perr == nil {
			refreshedAt = t.UTC()
		}
	}

	return &domain.Snapshot{Shelters: shelters, RefreshedAt: refreshedAt}, nil
}

// GetGeo reads a cached geo resolution for an address.
func (s *Store) GetGeo(ctx context.Context, addr string) (*domain.GeoContext, error) {
	data, err := s.client.Get(ctx, geoKeyPrefix+addr).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get geo %s: %v", domain.ErrStoreUnavailable, addr, err)
	}
	var geo domain.GeoContext
	if err := json.Unmarshal(data, &geo); err != nil {
		return nil, fmt.Errorf("unmarshal geo %s: %w", addr, err)
	}
	return &geo, nil
}

// SetGeo caches a geo resolution with the given TTL.
func (s *Store) SetGeo(ctx context.Context, addr string, geo *domain.GeoContext, ttl time.Duration) error {
	data, err := json.Marshal(geo)
	if err != nil {
		return fmt.Errorf("marshal geo %s: %w", addr, err)
	}
	if err := s.client.Set(ctx, geoKeyPrefix+addr, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set geo %s: %v", domain.ErrStoreUnavailable, addr, err)
	}
	return nil
}

// GetSession reads a session context, or (nil, nil) when absent or expired.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.SessionContext, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrStoreUnavailable, err)
	}
	var sc domain.SessionContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sc, nil
}

// SetSession writes a session context with the given TTL.
func (s *Store) SetSession(ctx context.Context, id string, sc *domain.SessionContext, ttl time.Duration) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// TouchSession extends a session's expiry by the full TTL window.
func (s *Store) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, sessionPrefix+id, ttl).Err(); err != nil {
		return fmt.Errorf("%w: touch session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
