package cmd

import (
	"os"

	"bundler/db"
	"bundler/jito"
	"bundler/logger"
	"bundler/types"

	"github.com/spf13/cobra"
)

var (
	statusWatch bool
	statusWant  string
	statusLast  uint
)

var statusCmd = cobra.Command{
	Use:   "status [bundle-id...]",
	Short: "Query the relay for the landing status of bundles",
	Run: func(cmd *cobra.Command, args []string) {
		ids := args
		if len(ids) == 0 && db.Enabled() {
			ch, err := db.NewClickhouse()
			if err != nil {
				logger.GlobalLogger.Error("Failed to connect to ClickHouse", "err", err)
				return
			}
			ids, err = ch.QueryLatestBundleIds(statusLast)
			_ = ch.Close()
			if err != nil {
				logger.GlobalLogger.Error("Failed to load recent bundle ids", "err", err)
				return
			}
		}
		if len(ids) == 0 {
			logger.GlobalLogger.Error("No bundle ids given")
			return
		}

		ctx, stop := signalContext()
		defer stop()
		relay := jito.NewRelayFromConfig()

		var statuses []types.BundleStatus
		var err error
		if statusWatch {
			statuses, err = jito.WatchBundles(ctx, relay, ids, statusWant, jito.DefaultWatchInterval)
		} else {
			statuses, err = relay.GetBundleStatuses(ctx, ids)
		}
		if err != nil {
			logger.GlobalLogger.Error("Error running status command", "err", err)
		}
		types.PPBundleStatuses(os.Stdout, statuses)
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "poll until every bundle reaches --want")
	statusCmd.Flags().StringVar(&statusWant, "want", "confirmed", "processed, confirmed or finalized")
	statusCmd.Flags().UintVar(&statusLast, "last", 10, "without ids, query this many recently recorded bundles")
	RootCmd.AddCommand(&statusCmd)
}
