package persist

import (
	"context"
	"sync"

	"github.com/wonny/earnsight/internal/contracts"
	rediswrap "github.com/wonny/earnsight/pkg/redis"
)

// SignalCache keeps the latest signal per ticker. Reads hit the local
// map; Redis is a write-behind replica so other instances and restarts
// can see recent signals. Every decision cycle overwrites the entry,
// blocked signals included.
type SignalCache struct {
	mu     sync.RWMutex
	latest map[string]*contracts.Signal
	remote *rediswrap.Cache
}

// NewSignalCache creates a cache. remote may be nil or disabled.
func NewSignalCache(remote *rediswrap.Cache) *SignalCache {
	return &SignalCache{
		latest: make(map[string]*contracts.Signal),
		remote: remote,
	}
}

// Put records the latest signal for its ticker
func (c *SignalCache) Put(ctx context.Context, sig *contracts.Signal) {
	c.mu.Lock()
	c.latest[sig.Ticker] = sig
	c.mu.Unlock()

	if c.remote != nil {
		// best effort; local map remains authoritative
		_ = c.remote.Set(ctx, "signal:"+sig.Ticker, sig, rediswrap.TTLMedium)
	}
}

// Get returns the latest signal for a ticker
func (c *SignalCache) Get(ctx context.Context, ticker string) (*contracts.Signal, bool) {
	c.mu.RLock()
	sig, ok := c.latest[ticker]
	c.mu.RUnlock()
	if ok {
		return sig, true
	}

	if c.remote != nil {
		var cached contracts.Signal
		if found, err := c.remote.Get(ctx, "signal:"+ticker, &cached); err == nil && found {
			c.mu.Lock()
			c.latest[ticker] = &cached
			c.mu.Unlock()
			return &cached, true
		}
	}
	return nil, false
}

// Tickers lists tickers with a cached signal
func (c *SignalCache) Tickers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.latest))
	for ticker := range c.latest {
		out = append(out, ticker)
	}
	return out
}
