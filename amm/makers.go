package amm

import (
	"context"
	"fmt"

	"bundler/config"
	"bundler/jupiter"
	"bundler/metrics"
	"bundler/sol"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
)

type MakerOptions struct {
	JitoTipLamports uint64
	IncludeDexes    []string
}

// Makers creates total distinct maker wallets on mint, config.MAKER_BATCH_SIZE per bundle.
// Each wallet buys a probe amount of the token. Failed batches are retried from
// scratch with fresh signers until the retry policy gives up.
func (a *AMM) Makers(ctx context.Context, mint solana.PublicKey, total int, opts MakerOptions) (*types.MakerStats, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: makers count must be positive, got %d", ErrInvalidParams, total)
	}
	dexes, err := utils.NormalizeDexes(opts.IncludeDexes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	opts.IncludeDexes = dexes

	stats := &types.MakerStats{MakersRemaining: total}
	var failures, consecutive int
	a.logger.Info("Starting makers", "mint", mint, "total", total, "dexes", dexes)

	for stats.MakersCompleted < total {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ack, err := a.makerBatch(ctx, mint, opts)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if IsFatal(err) {
				a.logger.Error("Makers batch failed, aborting", "err", err)
				return stats, err
			}
			failures++
			consecutive++
			a.logger.Error("Makers batch failed, retrying", "attempt", failures, "consecutive", consecutive, "pause", a.retry.pause().String(), "err", err)
			if a.retry.exhausted(failures, consecutive) {
				return stats, fmt.Errorf("%w after %d failed batches: %v", ErrRetriesExhausted, failures, err)
			}
			if err := a.sleep(ctx, a.retry.pause()); err != nil {
				return stats, err
			}
			continue
		}
		consecutive = 0

		stats.MakersCompleted += config.MAKER_BATCH_SIZE
		stats.MakersRemaining = max(total-stats.MakersCompleted, 0)
		stats.BundleCount++
		stats.LastBundleID = ack.BundleID

		a.mu.Lock()
		a.session.makersCompleted += config.MAKER_BATCH_SIZE
		a.mu.Unlock()
		metrics.MakersCompleted.Add(config.MAKER_BATCH_SIZE)

		a.logger.Info("Makers batch landed", "bundle_id", ack.BundleID, "completed", stats.MakersCompleted, "remaining", stats.MakersRemaining)
		a.logBalance(ctx, WorkflowMakers)
	}

	stats.Finished = true
	return stats, nil
}

func (a *AMM) makerBatch(ctx context.Context, mint solana.PublicKey, opts MakerOptions) (*types.BundleAck, error) {
	hash, ok := a.session.blockhash.Get()
	if !ok || a.session.blockhash.StaleAfterBundles(config.MAKER_BLOCKHASH_REFRESH_EVERY) {
		var err error
		if hash, err = a.refreshBlockhash(ctx, WorkflowMakers); err != nil {
			return nil, err
		}
	}

	signers, err := sol.NewEphemeralSigners(config.MAKER_BATCH_SIZE)
	if err != nil {
		return nil, err
	}
	legs := make([]leg, len(signers))
	for i, s := range signers {
		legs[i] = leg{
			signer: s,
			req: jupiter.SwapRequest{
				InputMint:   a.wsol(),
				OutputMint:  mint,
				Amount:      config.MAKER_PROBE_AMOUNT,
				Mode:        types.ExactOut,
				Dexes:       opts.IncludeDexes,
				SlippageBps: a.slippageBps,
			},
		}
	}

	sub, err := a.submitBundle(ctx, WorkflowMakers, mint, hash, opts.JitoTipLamports, legs)
	if err != nil {
		return nil, err
	}
	return sub.ack, nil
}
