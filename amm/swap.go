package amm

import (
	"context"
	"fmt"

	"bundler/jupiter"
	"bundler/metrics"
	"bundler/sol"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
)

type SwapOptions struct {
	JitoTipLamports uint64
	IncludeDexes    []string
}

// Swap funds one ephemeral signer and submits a single swap of mint. A buy spends
// amount SOL, a sell spends amount tokens in UI units. Nothing is retried and the
// session counters only move when the relay accepts the bundle.
func (a *AMM) Swap(ctx context.Context, mint solana.PublicKey, side types.Side, amount float64, opts SwapOptions) (*types.BundleAck, error) {
	if side != types.Buy && side != types.Sell {
		return nil, fmt.Errorf("%w: unknown side %q", ErrInvalidParams, side)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: swap amount must be positive, got %v", ErrInvalidParams, amount)
	}
	dexes, err := utils.NormalizeDexes(opts.IncludeDexes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	hash, ok := a.session.blockhash.Get()
	if !ok {
		if hash, err = a.refreshBlockhash(ctx, WorkflowSwap); err != nil {
			return nil, err
		}
	}

	req := jupiter.SwapRequest{
		InputMint:   a.wsol(),
		OutputMint:  mint,
		Mode:        types.ExactIn,
		Dexes:       dexes,
		SlippageBps: a.slippageBps,
	}
	if side == types.Buy {
		req.Amount = utils.SolToLamports(amount)
	} else {
		decimals, err := a.chain.TokenDecimals(ctx, mint)
		if err != nil {
			return nil, fmt.Errorf("read decimals of %s: %w", mint, err)
		}
		req.InputMint, req.OutputMint = mint, a.wsol()
		req.Amount = utils.UiToRaw(amount, decimals)
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("%w: amount %v rounds to zero", ErrInvalidParams, amount)
	}

	signers, err := sol.NewEphemeralSigners(1)
	if err != nil {
		return nil, err
	}
	sub, err := a.submitBundle(ctx, WorkflowSwap, mint, hash, opts.JitoTipLamports, []leg{{signer: signers[0], req: req}})
	if err != nil {
		a.logger.Error("Swap failed", "mint", mint, "side", side, "amount", amount, "err", err)
		return nil, err
	}

	lamports := routeLamports(sub.plans[0], side)
	metrics.ObserveTrade(string(side), lamports)
	a.record(nil, &types.TradeRecord{
		BundleId:  sub.ack.BundleID,
		Workflow:  WorkflowSwap,
		Mint:      mint.String(),
		Timestamp: a.now(),
		Side:      string(side),
		Signer:    signers[0].PublicKey().String(),
		Lamports:  lamports,
	})
	a.logger.Info("Swap submitted", "mint", mint, "side", side, "amount", amount, "bundle_id", sub.ack.BundleID, "endpoint", sub.ack.Endpoint)
	return sub.ack, nil
}
