package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/validation"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

// ResultCache is the content addressed cache of validation outcomes. An empty canonical key
// is never cached.
type ResultCache interface {
	Get(ctx context.Context, canonicalKey, fingerprint string) (*validation.Outcome, error)
	Set(ctx context.Context, canonicalKey, fingerprint string, outcome *validation.Outcome) error
	// Invalidate removes every fingerprint cached for canonicalKey.
	Invalidate(ctx context.Context, canonicalKey string) (int, error)
}

type ResultCacheKV struct {
	kv      kvstore.Store
	ttl     time.Duration
	enabled bool
}

var _ ResultCache = (*ResultCacheKV)(nil)

func NewResultCache(kv kvstore.Store, ttl time.Duration, enabled bool) *ResultCacheKV {
	return &ResultCacheKV{kv: kv, ttl: ttl, enabled: enabled}
}

// Get returns ErrRecordNotFound on a miss.
func (c *ResultCacheKV) Get(ctx context.Context, canonicalKey, fingerprint string) (*validation.Outcome, error) {
	if !c.enabled || canonicalKey == "" {
		return nil, ErrRecordNotFound
	}
	raw, err := c.kv.Get(ctx, CacheKey(canonicalKey, fingerprint))
	if errors.Is(err, kvstore.ErrNil) {
		metrics.IncreaseCacheLookup(false)
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	var out validation.Outcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		zap.S().Named("cache").Warnw("dropping undecodable cache entry", "inchikey", canonicalKey, "error", err)
		_ = c.kv.Del(ctx, CacheKey(canonicalKey, fingerprint))
		metrics.IncreaseCacheLookup(false)
		return nil, ErrRecordNotFound
	}
	metrics.IncreaseCacheLookup(true)
	return &out, nil
}

func (c *ResultCacheKV) Set(ctx context.Context, canonicalKey, fingerprint string, outcome *validation.Outcome) error {
	if !c.enabled || canonicalKey == "" || outcome == nil {
		return nil
	}
	b, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	return c.kv.SetEX(ctx, CacheKey(canonicalKey, fingerprint), string(b), c.ttl)
}

func (c *ResultCacheKV) Invalidate(ctx context.Context, canonicalKey string) (int, error) {
	if canonicalKey == "" {
		return 0, nil
	}
	keys, err := c.kv.ScanPrefix(ctx, CacheKey(canonicalKey, ""))
	if err != nil {
		return 0, fmt.Errorf("scanning cache: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("invalidating cache: %w", err)
	}
	return len(keys), nil
}
