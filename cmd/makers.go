package cmd

import (
	"os"

	"bundler/amm"
	"bundler/config"
	"bundler/logger"
	"bundler/types"

	"github.com/spf13/cobra"
)

var makersCount int

var makersCmd = cobra.Command{
	Use:   "makers",
	Short: "Create distinct maker wallets on a token, four per bundle",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("makers")
		ctx, stop := signalContext()
		defer stop()

		b, err := newBot(ctx, amm.WorkflowMakers)
		if err != nil {
			logger.Bot().Error("Failed to start makers", "err", err)
			return
		}
		defer b.Close()

		logger.Bot().Info("Running cmd makers", "mint", b.mint, "count", makersCount)
		stats, err := b.amm.Makers(ctx, b.mint, makersCount, amm.MakerOptions{
			JitoTipLamports: b.tip,
			IncludeDexes:    includeDexes,
		})
		if err != nil {
			logger.Bot().Error("Error running makers command", "err", err)
		}
		if stats != nil {
			types.PPMakerStats(os.Stdout, stats)
		}
	},
}

func init() {
	addWorkflowFlags(&makersCmd)
	makersCmd.Flags().IntVarP(&makersCount, "count", "n", config.MAKER_BATCH_SIZE, "number of makers to create")
	RootCmd.AddCommand(&makersCmd)
}
