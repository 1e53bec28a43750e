package sol

import (
	"context"
	"fmt"
	"strings"

	"bundler/config"
	"bundler/logger"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var SolanaRpcURL string

func GetSolanaRpcURL() string {
	if SolanaRpcURL != "" {
		return SolanaRpcURL
	}
	SolanaRpcURL = viper.GetString("sol.rpc")
	if SolanaRpcURL == "" {
		SolanaRpcURL = config.DefaultSolanaRpcURL
		logger.GlobalLogger.Warn("sol.rpc not set in config, using default", "url", SolanaRpcURL)
	}
	return SolanaRpcURL
}

// Chain is the slice of the Solana RPC surface the bot depends on.
type Chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error)
	TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Client implements Chain on top of a solana-go RPC client.
type Client struct {
	rpc    *rpc.Client
	commit rpc.CommitmentType
}

func NewClient(rpcURL string) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		commit: rpc.CommitmentFinalized,
	}
}

// NewLimitedClient throttles outgoing RPC calls to rps requests per second.
// Public endpoints rate limit aggressively, so sol.rps should be set for them.
func NewLimitedClient(rpcURL string, rps float64, burst int) *Client {
	if rps <= 0 {
		return NewClient(rpcURL)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		rpc:    rpc.NewWithCustomRPCClient(rpc.NewWithLimiter(rpcURL, rate.Limit(rps), burst)),
		commit: rpc.CommitmentFinalized,
	}
}

func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commit)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("RPC getLatestBlockhash failed: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("RPC getLatestBlockhash returned empty result")
	}
	return out.Value.Blockhash, nil
}

func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, c.commit)
	if err != nil {
		return 0, fmt.Errorf("RPC getBalance failed: %w", err)
	}
	return out.Value, nil
}

// TokenBalance reads the UI amount held by the owner's associated token account.
// A missing account reads as zero.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive associated token address: %w", err)
	}
	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commit)
	if err != nil {
		if isAccountNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("RPC getTokenAccountBalance failed: %w", err)
	}
	if out == nil || out.Value == nil || out.Value.UiAmount == nil {
		return 0, nil
	}
	return *out.Value.UiAmount, nil
}

func (c *Client) TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	out, err := c.rpc.GetTokenSupply(ctx, mint, c.commit)
	if err != nil {
		return 0, fmt.Errorf("RPC getTokenSupply failed: %w", err)
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("RPC getTokenSupply returned empty result")
	}
	return out.Value.Decimals, nil
}

func isAccountNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "Invalid param: could not find")
}
