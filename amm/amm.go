package amm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"bundler/bundle"
	"bundler/config"
	"bundler/jito"
	"bundler/jupiter"
	"bundler/logger"
	"bundler/metrics"
	"bundler/sol"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
)

// Aggregator returns an unsigned swap transaction for a request.
type Aggregator interface {
	Swap(ctx context.Context, req jupiter.SwapRequest, signer solana.PublicKey) (*jupiter.SwapPlan, error)
}

// Relay submits encoded transactions as one bundle.
type Relay interface {
	SendBundle(ctx context.Context, encoded []string) (*types.BundleAck, error)
}

// Recorder persists submitted bundles and landed trades. db.Database satisfies it.
type Recorder interface {
	InsertBundles(bundles []*types.BundleRecord) error
	InsertTrades(trades []*types.TradeRecord) error
}

const (
	WorkflowMakers = "makers"
	WorkflowVolume = "volume"
	WorkflowSwap   = "swap"
)

// session is the mutable state of one AMM. Workflows touch it only from the
// goroutine that called them.
type session struct {
	blockhash       *sol.BlockhashCache
	makersCompleted int
	bundleCount     uint64
	lastBundleID    string
	netVolume       uint64
	grossVolume     uint64
	tradeCount      uint64
	buysUntilSell   int
	history         *utils.BundleCache
}

// SessionStats is a snapshot of the running counters.
type SessionStats struct {
	MakersCompleted    int
	BundleCount        uint64
	LastBundleID       string
	NetVolume          uint64
	GrossVolume        uint64
	TradeCount         uint64
	BlockhashRefreshes int
	RecentBundles      []string
}

// AMM drives the maker, volume and one-shot swap workflows for one funding wallet.
type AMM struct {
	chain       sol.Chain
	payer       solana.PrivateKey
	aggregator  Aggregator
	relay       Relay
	funding     *bundle.FundingAccounts
	tipAccounts []solana.PublicKey
	recorder    Recorder
	retry       RetryPolicy
	slippageBps int

	rng    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	logger *slog.Logger
	quiet  bool

	mu      sync.Mutex // guards session against a concurrent Stats call
	session *session
}

type Option func(*AMM)

func WithAggregator(agg Aggregator) Option {
	return func(a *AMM) { a.aggregator = agg }
}

func WithRelay(r Relay) Option {
	return func(a *AMM) { a.relay = r }
}

func WithFundingAccounts(accts bundle.FundingAccounts) Option {
	return func(a *AMM) { a.funding = &accts }
}

func WithTipAccounts(accounts []solana.PublicKey) Option {
	return func(a *AMM) { a.tipAccounts = accounts }
}

// WithRecorder persists every accepted bundle and trade. A nil recorder disables persistence.
func WithRecorder(r Recorder) Option {
	return func(a *AMM) { a.recorder = r }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *AMM) { a.retry = p }
}

func WithSlippageBps(bps int) Option {
	return func(a *AMM) { a.slippageBps = bps }
}

// WithRand seeds every random draw: signer tip accounts, trade sides, sizes and delays.
func WithRand(rng *rand.Rand) Option {
	return func(a *AMM) { a.rng = rng }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *AMM) { a.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(a *AMM) { a.now = now }
}

// WithHistory preloads ids of bundles submitted by an earlier run.
func WithHistory(ids []string) Option {
	return func(a *AMM) {
		for i := len(ids) - 1; i >= 0; i-- {
			a.session.history.Add(ids[i])
		}
	}
}

// WithVolumeTotals resumes the volume counters of an earlier run.
func WithVolumeTotals(net, gross uint64) Option {
	return func(a *AMM) {
		a.session.netVolume = net
		a.session.grossVolume = max(gross, net)
	}
}

// DisableLogs silences the AMM and the aggregator and relay clients it builds.
func DisableLogs() Option {
	return func(a *AMM) {
		a.logger = logger.Discard()
		a.quiet = true
	}
}

// New builds an orchestrator around a chain connection and the funding keypair.
// Without options the aggregator, relay, funding and tip accounts come from the config.
func New(chain sol.Chain, payer solana.PrivateKey, opts ...Option) (*AMM, error) {
	if chain == nil {
		return nil, fmt.Errorf("%w: nil chain client", ErrInvalidParams)
	}
	if len(payer) == 0 {
		return nil, fmt.Errorf("%w: missing funding keypair", ErrInvalidParams)
	}
	a := &AMM{
		chain:       chain,
		payer:       payer,
		slippageBps: config.DefaultSlippageBps,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
		sleep:       utils.Sleep,
		now:         time.Now,
		logger:      logger.Bot(),
		session: &session{
			blockhash: sol.NewBlockhashCache(),
			history:   utils.NewBundleCache(config.BundleHistoryMaxSize),
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	var (
		jupiterOpts []jupiter.Option
		relayOpts   []jito.Option
	)
	if a.quiet {
		jupiterOpts = append(jupiterOpts, jupiter.WithLogger(logger.Discard()))
		relayOpts = append(relayOpts, jito.WithLogger(logger.Discard()))
	}
	if a.aggregator == nil {
		a.aggregator = jupiter.NewClientFromConfig(jupiterOpts...)
	}
	if a.relay == nil {
		a.relay = jito.NewRelayFromConfig(relayOpts...)
	}
	if a.funding == nil {
		accts, err := bundle.GetFundingAccounts()
		if err != nil {
			return nil, err
		}
		a.funding = &accts
	}
	if len(a.tipAccounts) == 0 {
		accounts, err := jito.TipAccounts()
		if err != nil {
			return nil, err
		}
		a.tipAccounts = accounts
	}
	a.session.buysUntilSell = a.drawBuysUntilSell()
	return a, nil
}

func (a *AMM) Payer() solana.PublicKey {
	return a.payer.PublicKey()
}

func (a *AMM) Stats() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.session
	return SessionStats{
		MakersCompleted:    s.makersCompleted,
		BundleCount:        s.bundleCount,
		LastBundleID:       s.lastBundleID,
		NetVolume:          s.netVolume,
		GrossVolume:        s.grossVolume,
		TradeCount:         s.tradeCount,
		BlockhashRefreshes: s.blockhash.Refreshes(),
		RecentBundles:      s.history.Recent(10),
	}
}

// GetSolBalance returns the funding wallet balance in SOL.
func (a *AMM) GetSolBalance(ctx context.Context) (float64, error) {
	lamports, err := a.chain.Balance(ctx, a.payer.PublicKey())
	if err != nil {
		return 0, err
	}
	return utils.LamportsToSol(lamports), nil
}

// GetTokenBalance returns the funding wallet's UI balance of mint. A missing token account reads as 0.
func (a *AMM) GetTokenBalance(ctx context.Context, mint solana.PublicKey) (float64, error) {
	return a.chain.TokenBalance(ctx, a.payer.PublicKey(), mint)
}

func (a *AMM) logBalance(ctx context.Context, workflow string) {
	bal, err := a.GetSolBalance(ctx)
	if err != nil {
		a.logger.Warn("Failed to sample funding balance", "workflow", workflow, "err", err)
		return
	}
	a.logger.Info("Funding wallet balance", "workflow", workflow, "sol", bal)
}

func (a *AMM) refreshBlockhash(ctx context.Context, workflow string) (solana.Hash, error) {
	before := time.Now()
	hash, err := a.session.blockhash.Refresh(ctx, a.chain, a.now())
	if err != nil {
		return solana.Hash{}, fmt.Errorf("refresh blockhash: %w", err)
	}
	metrics.BlockhashRefreshes.WithLabelValues(workflow).Inc()
	a.logger.Debug("Refreshed blockhash", "workflow", workflow, "hash", hash, "time_cost", time.Since(before).String())
	return hash, nil
}

func (a *AMM) drawBuysUntilSell() int {
	return config.VOLUME_MIN_BUYS_PER_SELL + a.rng.IntN(config.VOLUME_MAX_BUYS_PER_SELL-config.VOLUME_MIN_BUYS_PER_SELL+1)
}

// leg is one swap of a bundle: its ephemeral signer and what it trades.
type leg struct {
	signer solana.PrivateKey
	req    jupiter.SwapRequest
}

type submission struct {
	ack    *types.BundleAck
	bundle *bundle.Bundle
	plans  []*jupiter.SwapPlan
}

// submitBundle funds the leg signers, fetches their swaps and submits everything as one bundle.
func (a *AMM) submitBundle(ctx context.Context, workflow string, mint solana.PublicKey, hash solana.Hash, tipLamports uint64, legs []leg) (*submission, error) {
	signers := make([]solana.PublicKey, len(legs))
	for i, l := range legs {
		signers[i] = l.signer.PublicKey()
	}
	if tipLamports == 0 {
		tipLamports = config.DefaultTipLamports
	}
	tipAccount := jito.PickTipAccount(a.rng, a.tipAccounts)

	ix, err := bundle.NewFundingInstruction(*a.funding, a.payer.PublicKey(), signers, tipAccount, tipLamports)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	fundingTx, err := bundle.BuildFundingTx(ix, hash, a.payer)
	if err != nil {
		return nil, err
	}

	plans, err := a.fetchSwaps(ctx, hash, legs)
	if err != nil {
		return nil, err
	}
	swaps := make([]*solana.Transaction, len(plans))
	for i, p := range plans {
		swaps[i] = p.Transaction
	}

	b, err := bundle.New(fundingTx, ix, swaps...)
	if err != nil {
		return nil, err
	}
	encoded, err := b.Encode()
	if err != nil {
		return nil, err
	}

	ack, err := a.relay.SendBundle(ctx, encoded)
	metrics.ObserveBundle(workflow, err)
	if err != nil {
		if strings.Contains(err.Error(), utils.BLOCKHASH_NOT_FOUND) {
			a.session.blockhash.Invalidate()
		}
		return nil, fmt.Errorf("submit bundle: %w", err)
	}

	a.session.blockhash.MarkBundle()
	a.mu.Lock()
	a.session.bundleCount++
	a.session.lastBundleID = ack.BundleID
	a.session.history.Add(ack.BundleID)
	a.mu.Unlock()
	a.record(&types.BundleRecord{
		BundleId:     ack.BundleID,
		Workflow:     workflow,
		Mint:         mint.String(),
		Timestamp:    a.now(),
		Signers:      publicKeyStrings(signers),
		Transactions: b.Signatures(),
		TipLamports:  tipLamports,
		Endpoint:     ack.Endpoint,
	}, nil)
	return &submission{ack: ack, bundle: b, plans: plans}, nil
}

// fetchSwaps requests every leg's swap transaction from the aggregator in parallel and
// signs it with the shared blockhash. Results keep the order of legs.
func (a *AMM) fetchSwaps(ctx context.Context, hash solana.Hash, legs []leg) ([]*jupiter.SwapPlan, error) {
	parallel := min(len(legs), config.MAKER_FANOUT_PARALLEL_NUM)
	legsQueue := make(chan int, len(legs))
	for i := range legs {
		legsQueue <- i
	}
	close(legsQueue)

	plans := make([]*jupiter.SwapPlan, len(legs))
	errs := make([]error, len(legs))

	var wg sync.WaitGroup
	wg.Add(parallel)
	for range parallel {
		go func() {
			defer wg.Done()
			for i := range legsQueue {
				l := legs[i]
				plan, err := a.aggregator.Swap(ctx, l.req, l.signer.PublicKey())
				if err == nil {
					err = bundle.PrepareSwap(plan.Transaction, hash, l.signer)
				}
				plans[i], errs[i] = plan, err
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("swap %d of %d: %w", i+1, len(legs), err)
		}
	}
	return plans, nil
}

func (a *AMM) record(b *types.BundleRecord, t *types.TradeRecord) {
	if a.recorder == nil {
		return
	}
	if b != nil {
		if err := a.recorder.InsertBundles([]*types.BundleRecord{b}); err != nil {
			a.logger.Warn("Insert bundle record failed", "bundle_id", b.BundleId, "err", err)
		}
	}
	if t != nil {
		if err := a.recorder.InsertTrades([]*types.TradeRecord{t}); err != nil {
			a.logger.Warn("Insert trade record failed", "bundle_id", t.BundleId, "err", err)
		}
	}
}

func (a *AMM) wsol() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(utils.WSOL)
}

func publicKeyStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// routeLamports reads the SOL side of a route: the input of a buy, the output of a sell.
func routeLamports(plan *jupiter.SwapPlan, side types.Side) uint64 {
	if plan == nil || plan.Route == nil {
		return 0
	}
	amount := plan.Route.InAmount
	if side == types.Sell {
		amount = plan.Route.OutAmount
	}
	v, _ := strconv.ParseUint(amount, 10, 64)
	return v
}
