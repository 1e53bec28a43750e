package cmd

import (
	"fmt"

	"bundler/amm"
	"bundler/logger"
	"bundler/types"

	"github.com/spf13/cobra"
)

var (
	swapSide   string
	swapAmount float64
)

var swapCmd = cobra.Command{
	Use:   "swap",
	Short: "Submit a single buy or sell through a freshly funded wallet",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("swap")
		side, err := types.ParseSide(swapSide)
		if err != nil {
			logger.GlobalLogger.Error("Invalid side", "err", err)
			return
		}

		ctx, stop := signalContext()
		defer stop()

		b, err := newBot(ctx, amm.WorkflowSwap)
		if err != nil {
			logger.Bot().Error("Failed to start swap", "err", err)
			return
		}
		defer b.Close()

		ack, err := b.amm.Swap(ctx, b.mint, side, swapAmount, amm.SwapOptions{
			JitoTipLamports: b.tip,
			IncludeDexes:    includeDexes,
		})
		if err != nil {
			logger.Bot().Error("Error running swap command", "err", err)
			return
		}
		fmt.Printf("bundle %s accepted by %s\n", ack.BundleID, ack.Endpoint)
	},
}

func init() {
	addWorkflowFlags(&swapCmd)
	swapCmd.Flags().StringVarP(&swapSide, "side", "s", string(types.Buy), "buy or sell")
	swapCmd.Flags().Float64VarP(&swapAmount, "amount", "a", 0, "SOL to spend on a buy, tokens to sell on a sell")
	_ = swapCmd.MarkFlagRequired("amount")
	RootCmd.AddCommand(&swapCmd)
}
