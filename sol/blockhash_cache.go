package sol

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// BlockhashCache keeps the recent blockhash shared by every transaction of a bundle,
// together with what is needed to judge its staleness either by age or by the number
// of bundles submitted since it was fetched.
type BlockhashCache struct {
	mu                  sync.RWMutex
	hash                solana.Hash
	fetchedAt           time.Time
	bundlesSinceRefresh int
	refreshes           int
}

func NewBlockhashCache() *BlockhashCache {
	return &BlockhashCache{}
}

// Get returns the cached hash and whether one is present.
func (c *BlockhashCache) Get() (solana.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hash, c.hash != (solana.Hash{})
}

func (c *BlockhashCache) Set(hash solana.Hash, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = hash
	c.fetchedAt = now
	c.bundlesSinceRefresh = 0
	c.refreshes++
}

// Invalidate drops the cached hash so the next staleness check refetches it.
func (c *BlockhashCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = solana.Hash{}
}

// MarkBundle records one bundle submitted with the cached hash.
func (c *BlockhashCache) MarkBundle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundlesSinceRefresh++
}

// StaleAfterBundles reports true when no hash is cached or n bundles were submitted since the last refresh.
func (c *BlockhashCache) StaleAfterBundles(n int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hash == (solana.Hash{}) || c.bundlesSinceRefresh >= n
}

// StaleAfter reports true when no hash is cached or it is at least maxAge old.
func (c *BlockhashCache) StaleAfter(now time.Time, maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hash == (solana.Hash{}) || now.Sub(c.fetchedAt) >= maxAge
}

// Refreshes is the number of times a hash was stored.
func (c *BlockhashCache) Refreshes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshes
}

func (c *BlockhashCache) Refresh(ctx context.Context, chain Chain, now time.Time) (solana.Hash, error) {
	hash, err := chain.LatestBlockhash(ctx)
	if err != nil {
		return solana.Hash{}, err
	}
	c.Set(hash, now)
	return hash, nil
}
