package cmd

import (
	"context"
	"os"

	"bundler/logger"
	"bundler/sol"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

var balanceMint string

var balanceCmd = cobra.Command{
	Use:   "balance",
	Short: "Show the SOL and token balance of the funding wallet",
	Run: func(cmd *cobra.Command, args []string) {
		payer, err := sol.LoadPrivateKey()
		if err != nil {
			logger.GlobalLogger.Error("Failed to load funding key", "err", err)
			return
		}
		ctx := context.Background()
		chain := sol.NewClient(sol.GetSolanaRpcURL())
		owner := payer.PublicKey()

		lamports, err := chain.Balance(ctx, owner)
		if err != nil {
			logger.GlobalLogger.Error("Failed to read SOL balance", "err", err)
			return
		}

		var token float64
		if balanceMint != "" {
			mint, err := solana.PublicKeyFromBase58(balanceMint)
			if err != nil {
				logger.GlobalLogger.Error("Invalid mint", "mint", balanceMint, "err", err)
				return
			}
			if token, err = chain.TokenBalance(ctx, owner, mint); err != nil {
				logger.GlobalLogger.Error("Failed to read token balance", "mint", mint, "err", err)
				return
			}
		}
		types.PPBalances(os.Stdout, owner.String(), utils.LamportsToSol(lamports), balanceMint, token)
	},
}

func init() {
	balanceCmd.Flags().StringVarP(&balanceMint, "mint", "m", "", "(Optional) also show the balance of this token")
	RootCmd.AddCommand(&balanceCmd)
}
