package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CachingAdapter serves repeated identical requests from an in-process cache.
type CachingAdapter struct {
	next  Adapter
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// NewCachingAdapter wraps next with a ristretto cache bounded by maxCostBytes.
func NewCachingAdapter(next Adapter, maxCostBytes int64, ttl time.Duration) (*CachingAdapter, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("cache size must be positive")
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create completion cache: %w", err)
	}
	return &CachingAdapter{next: next, cache: c, ttl: ttl}, nil
}

// Name returns the wrapped adapter's identifier.
func (a *CachingAdapter) Name() string {
	return a.next.Name()
}

// Complete returns a cached response when one exists, otherwise calls the
// wrapped adapter and caches successful responses.
func (a *CachingAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	key := a.key(req)
	if data, ok := a.cache.Get(key); ok {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
		a.cache.Del(key)
	}

	resp, err := a.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		a.cache.SetWithTTL(key, data, int64(len(data)), a.ttl)
		a.cache.Wait()
	}
	return resp, nil
}

// Close releases the cache.
func (a *CachingAdapter) Close() {
	a.cache.Close()
}

func (a *CachingAdapter) key(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%g\x00%d\x00", a.next.Name(), req.Model, req.Temperature, req.MaxTokens)
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}
