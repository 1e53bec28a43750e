package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bundler/amm"
	"bundler/config"
	"bundler/db"
	"bundler/jito"
	"bundler/logger"
	"bundler/metrics"
	"bundler/sol"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags shared by every workflow command.
var (
	mintFlag     string
	tipLamports  uint64
	includeDexes []string
)

func addWorkflowFlags(c *cobra.Command) {
	c.Flags().StringVarP(&mintFlag, "mint", "m", "", "token mint to trade")
	c.Flags().Uint64Var(&tipLamports, "tip", 0, "Jito tip in lamports (0 uses the current landed tip floor)")
	c.Flags().StringSliceVar(&includeDexes, "dexes", nil, "restrict routes to these venues, e.g. Raydium,Orca")
	_ = c.MarkFlagRequired("mint")
}

// bot is an AMM plus the resources a command holds open while it runs.
type bot struct {
	amm   *amm.AMM
	mint  solana.PublicKey
	tip   uint64
	store db.Database
	srv   *http.Server
}

func newBot(ctx context.Context, workflow string) (*bot, error) {
	mint, err := solana.PublicKeyFromBase58(mintFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", mintFlag, err)
	}
	payer, err := sol.LoadPrivateKey()
	if err != nil {
		return nil, err
	}
	chain := sol.NewLimitedClient(sol.GetSolanaRpcURL(), viper.GetFloat64("sol.rps"), viper.GetInt("sol.burst"))

	b := &bot{mint: mint, tip: tipLamports}
	opts := []amm.Option{
		amm.WithRetryPolicy(amm.RetryPolicy{
			MaxAttempts:            viper.GetInt("retry.max-attempts"),
			MaxConsecutiveFailures: viper.GetInt("retry.max-consecutive-failures"),
			Pause:                  viper.GetDuration("retry.pause"),
		}),
	}
	if viper.IsSet("jupiter.slippage-bps") {
		opts = append(opts, amm.WithSlippageBps(viper.GetInt("jupiter.slippage-bps")))
	}

	if db.Enabled() {
		store, err := db.NewClickhouse()
		if err != nil {
			logger.Bot().Warn("ClickHouse unavailable, records will not be persisted", "err", err)
		} else {
			b.store = store
			opts = append(opts, amm.WithRecorder(store))
			if ids, err := store.QueryLatestBundleIds(config.BundleHistoryMaxSize); err == nil {
				opts = append(opts, amm.WithHistory(ids))
			}
			if workflow == amm.WorkflowVolume {
				net, gross, err := store.QueryVolumeTotals(mint.String())
				if err != nil {
					logger.Bot().Warn("Failed to load previous volume totals", "mint", mint, "err", err)
				} else if gross > 0 {
					logger.Bot().Info("Resuming volume totals", "mint", mint, "net", net, "gross", gross)
					opts = append(opts, amm.WithVolumeTotals(net, gross))
				}
			}
		}
	}

	relay := jito.NewRelayFromConfig()
	tips, err := relay.RefreshTipAccounts(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	opts = append(opts,
		amm.WithRelay(relay),
		amm.WithTipAccounts(tips),
			)

	a, err := amm.New(chain, payer, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.amm = a

	if b.tip == 0 {
		floor, err := jito.GetTipFloor(ctx)
		if err != nil {
			logger.Bot().Warn("Failed to read tip floor, using default tip", "tip", config.DefaultTipLamports, "err", err)
		} else {
			b.tip = max(floor.Lamports(50), config.DefaultTipLamports)
		}
	}

	addr := viper.GetString("metrics.addr")
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}
	b.srv = metrics.Serve(addr)

	logger.Bot().Info("Bot ready", "workflow", workflow, "payer", a.Payer(), "mint", mint, "tip", b.tip,
		"endpoints", len(relay.Endpoints()), "tip_accounts", len(tips), "persist", b.store != nil)
	return b, nil
}

func (b *bot) Close() {
	if b.srv != nil {
		_ = b.srv.Close()
	}
	if b.store != nil {
		_ = b.store.Close()
	}
}

// signalContext is cancelled on SIGINT or SIGTERM so workflows stop between bundles.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
