package uam

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Decision caching is a read-side optimization for repeated identical
// evaluations (same user context asking for the same permission). The cache is
// keyed on the full user context, not just the user ID, so a changed context
// never serves a stale verdict, and it is cleared whenever a new reference
// snapshot is installed.

// CacheConfig tunes the ristretto decision cache
type CacheConfig struct {
	NumCounters int64         `json:"num_counters" yaml:"num_counters"`
	MaxCost     int64         `json:"max_cost" yaml:"max_cost"`
	BufferItems int64         `json:"buffer_items" yaml:"buffer_items"`
	TTL         time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultCacheConfig returns sensible defaults for a service holding a few
// thousand hot decisions
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
		TTL:         30 * time.Second,
	}
}

type decisionCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newDecisionCache(cfg CacheConfig) (*decisionCache, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		def := DefaultCacheConfig()
		if cfg.NumCounters <= 0 {
			cfg.NumCounters = def.NumCounters
		}
		if cfg.MaxCost <= 0 {
			cfg.MaxCost = def.MaxCost
		}
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("configure decision cache: %w", err)
	}
	return &decisionCache{cache: c, ttl: cfg.TTL}, nil
}

// WithDecisionCache enables the ristretto decision cache on the engine
func WithDecisionCache(cfg CacheConfig) EngineOption {
	return func(e *Engine) error {
		dc, err := newDecisionCache(cfg)
		if err != nil {
			return err
		}
		e.decisionCache = dc
		return nil
	}
}

// cacheKey folds the request identity and the full user context into one key.
// Hash collisions would serve a wrong decision, so the marshaled context goes
// into the hash rather than any abbreviated view of it.
func cacheKey(req *EvaluationRequest) (string, bool) {
	blob, err := json.Marshal(req.User)
	if err != nil {
		return "", false
	}
	h := fnv.New64a()
	h.Write(blob)
	return fmt.Sprintf("%s|%s|%s|%x", req.UserID, req.RequestedPermission, req.RequestType, h.Sum64()), true
}

func (e *Engine) getCachedDecision(req *EvaluationRequest) (*Decision, bool) {
	if e.decisionCache == nil {
		return nil, false
	}
	key, ok := cacheKey(req)
	if !ok {
		return nil, false
	}
	val, found := e.decisionCache.cache.Get(key)
	if !found {
		return nil, false
	}
	dec, ok := val.(*Decision)
	if !ok {
		return nil, false
	}
	cop := *dec
	return &cop, true
}

func (e *Engine) setCachedDecision(req *EvaluationRequest, dec *Decision) {
	if e.decisionCache == nil {
		return
	}
	key, ok := cacheKey(req)
	if !ok {
		return
	}
	cop := *dec
	e.decisionCache.cache.SetWithTTL(key, &cop, 1, e.decisionCache.ttl)
}

func (e *Engine) invalidateDecisionCache() {
	if e.decisionCache != nil {
		e.decisionCache.cache.Clear()
	}
}
