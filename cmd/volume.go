package cmd

import (
	"context"
	"errors"
	"os"

	"bundler/amm"
	"bundler/config"
	"bundler/logger"
	"bundler/types"

	"github.com/spf13/cobra"
)

var volumeParams = amm.VolumeParams{}

var volumeCmd = cobra.Command{
	Use:   "volume",
	Short: "Generate buy and sell volume on a token until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("volume")
		ctx, stop := signalContext()
		defer stop()

		b, err := newBot(ctx, amm.WorkflowVolume)
		if err != nil {
			logger.Bot().Error("Failed to start volume", "err", err)
			return
		}
		defer b.Close()

		params := volumeParams
		params.JitoTipLamports = b.tip
		params.IncludeDexes = includeDexes

		logger.Bot().Info("Running cmd volume", "mint", b.mint, "iterations", params.MaxIterations)
		if err := b.amm.Volume(ctx, b.mint, params); err != nil && !errors.Is(err, context.Canceled) {
			logger.Bot().Error("Error running volume command", "err", err)
		}

		s := b.amm.Stats()
		types.PPVolumeStats(os.Stdout, &types.VolumeStats{
			NetVolume:    s.NetVolume,
			GrossVolume:  s.GrossVolume,
			TradeCount:   s.TradeCount,
			BundleCount:  s.BundleCount,
			LastBundleID: s.LastBundleID,
		})
	},
}

func init() {
	addWorkflowFlags(&volumeCmd)
	f := volumeCmd.Flags()
	f.Float64Var(&volumeParams.MinSolPerSwap, "min-sol", 0.01, "smallest buy in SOL")
	f.Float64Var(&volumeParams.MaxSolPerSwap, "max-sol", 0.05, "largest buy in SOL")
	f.Float64Var(&volumeParams.MCapFactor, "mcap-factor", config.DEFAULT_VOLUME_MCAP_RATIO, "a sell liquidates at most 1/mcap-factor of the net volume")
	f.Float64Var(&volumeParams.SpeedFactor, "speed", config.DEFAULT_VOLUME_SPEED, "divides the delay between trades")
	f.Uint64Var(&volumeParams.MaxIterations, "iterations", 0, "(Optional) stop after this many trades")
	RootCmd.AddCommand(&volumeCmd)
}
