package sol

import (
	"context"
	"errors"
	"testing"
	"time"

	"bundler/logger"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

func init() {
	logger.InitLogs("sol_test")
}

type countingChain struct {
	calls int
	err   error
}

func (c *countingChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if c.err != nil {
		return solana.Hash{}, c.err
	}
	c.calls++
	var h solana.Hash
	h[0] = byte(c.calls)
	return h, nil
}

func (c *countingChain) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (c *countingChain) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error) {
	return 0, nil
}

func (c *countingChain) TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	return 6, nil
}

func TestBlockhashCacheStaleAfterBundles(t *testing.T) {
	c := NewBlockhashCache()
	chain := &countingChain{}
	now := time.Unix(1_700_000_000, 0)

	if !c.StaleAfterBundles(10) {
		t.Fatalf("empty cache must be stale")
	}
	if _, err := c.Refresh(context.Background(), chain, now); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	for i := 0; i < 9; i++ {
		c.MarkBundle()
		if c.StaleAfterBundles(10) {
			t.Fatalf("stale after %d bundles", i+1)
		}
	}
	c.MarkBundle()
	if !c.StaleAfterBundles(10) {
		t.Fatalf("expected stale after 10 bundles")
	}
	// Age never matters for the bundle-count policy.
	if c.StaleAfter(now.Add(time.Second), time.Minute) {
		t.Fatalf("age policy should not be affected by bundle count")
	}
}

func TestBlockhashCacheStaleAfterAge(t *testing.T) {
	c := NewBlockhashCache()
	now := time.Unix(1_700_000_000, 0)
	if _, err := c.Refresh(context.Background(), &countingChain{}, now); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		c.MarkBundle()
	}
	if c.StaleAfter(now.Add(59999*time.Millisecond), time.Minute) {
		t.Fatalf("hash younger than a minute must not be stale")
	}
	if !c.StaleAfter(now.Add(time.Minute), time.Minute) {
		t.Fatalf("hash of exactly a minute must be stale")
	}
}

func TestBlockhashCacheInvalidate(t *testing.T) {
	c := NewBlockhashCache()
	if _, err := c.Refresh(context.Background(), &countingChain{}, time.Now()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, ok := c.Get(); !ok {
		t.Fatalf("expected cached hash")
	}
	c.Invalidate()
	if _, ok := c.Get(); ok {
		t.Fatalf("expected no cached hash after Invalidate")
	}
	if c.Refreshes() != 1 {
		t.Fatalf("expected 1 refresh, got %d", c.Refreshes())
	}
}

func TestBlockhashCacheRefreshError(t *testing.T) {
	c := NewBlockhashCache()
	want := errors.New("rpc down")
	if _, err := c.Refresh(context.Background(), &countingChain{err: want}, time.Now()); !errors.Is(err, want) {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if _, ok := c.Get(); ok {
		t.Fatalf("failed refresh must not store a hash")
	}
}

func TestLoadPrivateKey(t *testing.T) {
	wallet := solana.NewWallet()
	viper.Set("PRIVATE_KEY", wallet.PrivateKey.String())
	defer viper.Set("PRIVATE_KEY", "")

	key, err := LoadPrivateKey()
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if !key.PublicKey().Equals(wallet.PublicKey()) {
		t.Fatalf("expected %s, got %s", wallet.PublicKey(), key.PublicKey())
	}
}

func TestLoadPrivateKeyMissing(t *testing.T) {
	viper.Set("PRIVATE_KEY", "")
	if _, err := LoadPrivateKey(); err == nil {
		t.Fatalf("expected error when PRIVATE_KEY is missing")
	}
}

func TestNewEphemeralSigners(t *testing.T) {
	keys, err := NewEphemeralSigners(4)
	if err != nil {
		t.Fatalf("NewEphemeralSigners failed: %v", err)
	}
	seen := map[solana.PublicKey]bool{}
	for _, k := range keys {
		p := k.PublicKey()
		if seen[p] {
			t.Fatalf("duplicate signer %s", p)
		}
		seen[p] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 signers, got %d", len(seen))
	}
}
