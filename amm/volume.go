package amm

import (
	"context"
	"fmt"
	"iter"
	"math/big"
	"math/rand/v2"
	"time"

	"bundler/config"
	"bundler/jupiter"
	"bundler/metrics"
	"bundler/sol"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type VolumeParams struct {
	MinSolPerSwap   float64
	MaxSolPerSwap   float64
	MCapFactor      float64 // a single sell liquidates at most 1/MCapFactor of the net volume
	SpeedFactor     float64 // divides the delay between trades
	JitoTipLamports uint64
	IncludeDexes    []string
	MaxIterations   uint64 // 0 runs until the context ends
}

func (p *VolumeParams) Validate() error {
	if p.MinSolPerSwap <= 0 || p.MaxSolPerSwap < p.MinSolPerSwap {
		return fmt.Errorf("%w: need 0 < min (%v) <= max (%v) SOL per swap", ErrInvalidParams, p.MinSolPerSwap, p.MaxSolPerSwap)
	}
	if utils.SolToLamports(p.MinSolPerSwap) == 0 {
		return fmt.Errorf("%w: min SOL per swap %v is below one lamport", ErrInvalidParams, p.MinSolPerSwap)
	}
	if p.MCapFactor < 1 {
		return fmt.Errorf("%w: mcap factor must be >= 1, got %v", ErrInvalidParams, p.MCapFactor)
	}
	if !(p.SpeedFactor >= config.VOLUME_MIN_SPEED) {
		return fmt.Errorf("%w: speed factor must be >= %v, got %v", ErrInvalidParams, config.VOLUME_MIN_SPEED, p.SpeedFactor)
	}
	dexes, err := utils.NormalizeDexes(p.IncludeDexes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	p.IncludeDexes = dexes
	return nil
}

type tradePlan struct {
	Side     types.Side
	Lamports uint64
}

// planTrade picks the direction and size of the next volume trade. A sell happens only
// while net is positive and either the buy countdown ran out or the random trigger fires.
// Its size is a U[0.5, 1.0) fraction of net/MCapFactor; when that rounds to zero lamports
// the step buys instead.
func planTrade(rng *rand.Rand, net uint64, buysUntilSell int, p VolumeParams) tradePlan {
	if net > 0 && (buysUntilSell <= 0 || rng.Float64() < config.VOLUME_SELL_PROBABILITY) {
		maxSell := lamportsDecimal(net).Div(decimal.NewFromFloat(p.MCapFactor)).Truncate(0)
		u := config.VOLUME_SELL_MIN_FRACTION + (config.VOLUME_SELL_MAX_FRACTION-config.VOLUME_SELL_MIN_FRACTION)*rng.Float64()
		amount := maxSell.Mul(decimal.NewFromFloat(u)).Truncate(0)
		if amount.Sign() > 0 {
			return tradePlan{Side: types.Sell, Lamports: amount.BigInt().Uint64()}
		}
	}
	lo := utils.SolToLamports(p.MinSolPerSwap)
	hi := max(utils.SolToLamports(p.MaxSolPerSwap), lo)
	return tradePlan{Side: types.Buy, Lamports: lo + rng.Uint64N(hi-lo+1)}
}

// nextBuysUntilSell resets the countdown after a sell and decrements it after a buy.
func nextBuysUntilSell(rng *rand.Rand, side types.Side, current int) int {
	if side == types.Sell {
		return config.VOLUME_MIN_BUYS_PER_SELL + rng.IntN(config.VOLUME_MAX_BUYS_PER_SELL-config.VOLUME_MIN_BUYS_PER_SELL+1)
	}
	return max(current-1, 0)
}

// tradeDelay is a U[VOLUME_MIN_DELAY, VOLUME_MAX_DELAY] pause divided by speed,
// with speed clamped to VOLUME_MIN_SPEED.
func tradeDelay(rng *rand.Rand, speed float64) time.Duration {
	span := int64(config.VOLUME_MAX_DELAY - config.VOLUME_MIN_DELAY)
	d := config.VOLUME_MIN_DELAY + time.Duration(rng.Int64N(span+1))
	if !(speed >= config.VOLUME_MIN_SPEED) {
		speed = config.VOLUME_MIN_SPEED
	}
	return time.Duration(float64(d) / speed)
}

func lamportsDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// VolumeTrades is the volume workflow as a lazy stream of trade outcomes. Each step
// funds one ephemeral signer and submits a buy or a sell. The stream ends when ctx
// is done, the consumer stops, MaxIterations steps ran, or a step failed fatally.
// Failed steps are yielded with Err set.
func (a *AMM) VolumeTrades(ctx context.Context, mint solana.PublicKey, params VolumeParams) iter.Seq[types.TradeOutcome] {
	return func(yield func(types.TradeOutcome) bool) {
		if err := params.Validate(); err != nil {
			yield(types.TradeOutcome{Err: err})
			return
		}
		a.logger.Info("Starting volume", "mint", mint, "min_sol", params.MinSolPerSwap, "max_sol", params.MaxSolPerSwap,
			"mcap_factor", params.MCapFactor, "speed", params.SpeedFactor, "dexes", params.IncludeDexes)

		var failures, consecutive int
		for i := uint64(1); params.MaxIterations == 0 || i <= params.MaxIterations; i++ {
			if ctx.Err() != nil {
				return
			}

			out := a.volumeStep(ctx, mint, params, i)
			if !yield(out) {
				return
			}

			if out.Err != nil {
				if ctx.Err() != nil || IsFatal(out.Err) {
					return
				}
				failures++
				consecutive++
				if a.retry.exhausted(failures, consecutive) {
					yield(types.TradeOutcome{
						Iteration: i,
						Err:       fmt.Errorf("%w after %d failed trades: %v", ErrRetriesExhausted, failures, out.Err),
						Stats:     out.Stats,
					})
					return
				}
				if err := a.sleep(ctx, a.retry.pause()); err != nil {
					return
				}
			} else {
				consecutive = 0
			}

			if params.MaxIterations != 0 && i == params.MaxIterations {
				return
			}
			if err := a.sleep(ctx, tradeDelay(a.rng, params.SpeedFactor)); err != nil {
				return
			}
		}
	}
}

// Volume runs the volume workflow and logs every outcome. It returns nil after
// MaxIterations steps, the context error on cancellation, or the first fatal error.
func (a *AMM) Volume(ctx context.Context, mint solana.PublicKey, params VolumeParams) error {
	for out := range a.VolumeTrades(ctx, mint, params) {
		if out.Err != nil {
			if IsFatal(out.Err) {
				a.logger.Error("Volume stopped", "iteration", out.Iteration, "err", out.Err)
				return out.Err
			}
			a.logger.Error("Volume trade failed, retrying", "iteration", out.Iteration, "side", out.Side, "lamports", out.Lamports, "err", out.Err)
			continue
		}
		a.logger.Info("Volume trade landed",
			"iteration", out.Iteration,
			"side", out.Side,
			"sol", utils.LamportsToSol(out.Lamports),
			"bundle_id", out.BundleID,
			"net_sol", utils.LamportsToSol(out.Stats.NetVolume),
			"gross_sol", utils.LamportsToSol(out.Stats.GrossVolume),
			"trades", out.Stats.TradeCount,
		)
	}
	return ctx.Err()
}

func (a *AMM) volumeStats() types.VolumeStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.session
	return types.VolumeStats{
		NetVolume:    s.netVolume,
		GrossVolume:  s.grossVolume,
		TradeCount:   s.tradeCount,
		BundleCount:  s.bundleCount,
		LastBundleID: s.lastBundleID,
	}
}

func (a *AMM) volumeStep(ctx context.Context, mint solana.PublicKey, params VolumeParams, iteration uint64) types.TradeOutcome {
	a.mu.Lock()
	net, countdown := a.session.netVolume, a.session.buysUntilSell
	a.mu.Unlock()

	plan := planTrade(a.rng, net, countdown, params)
	out := types.TradeOutcome{Iteration: iteration, Side: plan.Side, Lamports: plan.Lamports}

	hash, ok := a.session.blockhash.Get()
	if !ok || a.session.blockhash.StaleAfter(a.now(), config.VOLUME_BLOCKHASH_MAX_AGE) {
		var err error
		if hash, err = a.refreshBlockhash(ctx, WorkflowVolume); err != nil {
			out.Err = err
			out.Stats = a.volumeStats()
			return out
		}
	}

	signers, err := sol.NewEphemeralSigners(1)
	if err != nil {
		out.Err = err
		out.Stats = a.volumeStats()
		return out
	}
	signer := signers[0]
	out.Signer = signer.PublicKey().String()

	req := jupiter.SwapRequest{
		InputMint:   a.wsol(),
		OutputMint:  mint,
		Amount:      plan.Lamports,
		Mode:        types.ExactIn,
		Dexes:       params.IncludeDexes,
		SlippageBps: a.slippageBps,
	}
	if plan.Side == types.Sell {
		req.InputMint, req.OutputMint = mint, a.wsol()
		req.Mode = types.ExactOut
	}

	sub, err := a.submitBundle(ctx, WorkflowVolume, mint, hash, params.JitoTipLamports, []leg{{signer: signer, req: req}})
	if err != nil {
		out.Err = err
		out.Stats = a.volumeStats()
		return out
	}
	out.BundleID = sub.ack.BundleID

	a.mu.Lock()
	s := a.session
	if plan.Side == types.Buy {
		s.netVolume += plan.Lamports
	} else {
		s.netVolume -= min(plan.Lamports, s.netVolume)
	}
	s.grossVolume += plan.Lamports
	s.tradeCount++
	s.buysUntilSell = nextBuysUntilSell(a.rng, plan.Side, s.buysUntilSell)
	a.mu.Unlock()

	out.Stats = a.volumeStats()
	metrics.ObserveTrade(string(plan.Side), plan.Lamports)
	a.record(nil, &types.TradeRecord{
		BundleId:    sub.ack.BundleID,
		Workflow:    WorkflowVolume,
		Mint:        mint.String(),
		Timestamp:   a.now(),
		Side:        string(plan.Side),
		Signer:      out.Signer,
		Lamports:    plan.Lamports,
		NetVolume:   out.Stats.NetVolume,
		GrossVolume: out.Stats.GrossVolume,
	})
	a.logBalance(ctx, WorkflowVolume)
	return out
}
