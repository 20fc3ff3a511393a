// Package budget persists embedding token budget counters in the key-value
// store so consumption survives restarts and is shared across replicas.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/newsrag/internal/db"
)

// store is the consumer interface for budget counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, onlyIfNoTTL bool) error
}

// Store tracks daily and monthly token counters with rolling expiry.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. TTLs cover clock skew between replicas:
// a daily counter lives 2 days, a monthly counter 62 days.
func New(s store) *Store {
	return &Store{
		store:    s,
		dailyTTL: 48 * time.Hour,
		monthTTL: 62 * 24 * time.Hour,
	}
}

// Get returns the current counter value. A missing key reads as zero.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get budget counter %s: %w", key, err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse budget counter %s: %w", key, err)
	}
	return n, nil
}

// IncrBy atomically adds tokens to the counter and sets the expiry if the
// key has none yet (first write of the period).
func (s *Store) IncrBy(ctx context.Context, key string, tokens int64) (int64, error) {
	n, err := s.store.IncrBy(ctx, key, tokens)
	if err != nil {
		return 0, fmt.Errorf("incr budget counter %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return n, fmt.Errorf("expire budget counter %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) ttlForKey(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
