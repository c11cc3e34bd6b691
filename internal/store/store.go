// Package store implements the configuration and rule store described in
// §4.1: a read-through cache with a short TTL in front of the config
// table, resolving through environment variables and built-in defaults
// when a key has never been written, and a reserved key-prefix scheme for
// per-admin transient input state.
//
// The cache is process-scoped soft state (§3 "Ownership"): losing it never
// loses correctness, only forces a reload on the next read. It is guarded
// by a single mutex, following the same opportunistic, single-process
// shape as the HTTP-edge rate limiter's visitor map.
package store

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/sysutil"
)

// Store is the configuration and rule store. It is safe for concurrent
// use.
type Store struct {
	db  *gorm.DB
	ttl time.Duration

	mu       sync.RWMutex
	cache    map[string]string
	cachedAt time.Time
}

// New constructs a Store backed by db, caching reloads for ttl.
func New(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Get resolves key per §4.1: cached value if within TTL, else a full
// reload of the config table (cached for the next TTL window), else an
// environment variable under the fixed rewrite, else a built-in default.
func (s *Store) Get(ctx context.Context, key string) string {
	if v, ok := s.fromCache(key); ok {
		return v
	}
	if err := s.reload(ctx); err == nil {
		if v, ok := s.fromCache(key); ok {
			return v
		}
	}
	if v, ok := lookupEnv(key); ok {
		return v
	}
	return defaultFor(key)
}

// GetBool resolves key via Get and interprets it with the same truthy
// vocabulary used throughout the configuration layer.
func (s *Store) GetBool(ctx context.Context, key string) bool {
	return sysutil.IsTruthy(s.Get(ctx, key))
}

// GetInt resolves key via Get and parses it as an integer, returning def
// if the stored value is absent or not a valid integer.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	v := s.Get(ctx, key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetJSON resolves key via Get and unmarshals it into out. Per §4.1, a
// parse failure MUST fail closed: out is left exactly as the caller
// initialized it (normally an empty slice or map), never populated
// partially.
func (s *Store) GetJSON(ctx context.Context, key string, out interface{}) {
	v := s.Get(ctx, key)
	if strings.TrimSpace(v) == "" {
		return
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	// Decode into a fresh value and copy it over only on success, since
	// json.Unmarshal keeps decoding past a type mismatch.
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(v), tmp.Interface()); err != nil {
		return
	}
	rv.Elem().Set(tmp.Elem())
}

// Set writes key/value via INSERT OR REPLACE and invalidates the cache
// immediately, so the very next read (regardless of TTL) observes the new
// value — satisfying the cache-coherence invariant (§3 invariant 5).
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := repo.UpsertConfigEntry(ctx, s.db, key, value); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// SetJSON marshals v and writes it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}

// Delete removes key and invalidates the cache.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := repo.DeleteConfigEntry(ctx, s.db, key); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Store) fromCache(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil || time.Since(s.cachedAt) > s.ttl {
		return "", false
	}
	v, ok := s.cache[key]
	return v, ok
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.cachedAt = time.Time{}
	s.mu.Unlock()
}

// reload loads every config row in a single query and replaces the cache
// map wholesale, per §4.1's "reload *all* config entries in a single query
// and cache the map".
func (s *Store) reload(ctx context.Context) error {
	entries, err := repo.ListConfigEntries(ctx, s.db)
	if err != nil {
		return err
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	s.mu.Lock()
	s.cache = m
	s.cachedAt = time.Now()
	s.mu.Unlock()
	return nil
}
