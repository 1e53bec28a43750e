package types

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// MakerStats summarises a makers run.
type MakerStats struct {
	MakersCompleted int    `json:"makersCompleted"`
	MakersRemaining int    `json:"makersRemaining"`
	BundleCount     int    `json:"bundleCount"`
	LastBundleID    string `json:"lastBundleId"`
	Finished        bool   `json:"finished"`
}

// VolumeStats holds the running totals of a volume run. Volumes are in lamports.
type VolumeStats struct {
	NetVolume    uint64 `json:"netVolume"`
	GrossVolume  uint64 `json:"grossVolume"`
	TradeCount   uint64 `json:"tradeCount"`
	BundleCount  uint64 `json:"bundleCount"`
	LastBundleID string `json:"lastBundleId"`
}

// PPMakerStats writes a one-row table of maker statistics.
func PPMakerStats(w io.Writer, s *MakerStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Makers")
	tw.AppendHeader(table.Row{"Completed", "Remaining", "Bundles", "Last bundle", "Finished"})
	tw.AppendRow(table.Row{s.MakersCompleted, s.MakersRemaining, s.BundleCount, s.LastBundleID, s.Finished})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	tw.Render()
}

// PPVolumeStats writes a one-row table of volume statistics with volumes in SOL.
func PPVolumeStats(w io.Writer, s *VolumeStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Volume")
	tw.AppendHeader(table.Row{"Trades", "Bundles", "Net (SOL)", "Gross (SOL)", "Last bundle"})
	tw.AppendRow(table.Row{
		s.TradeCount,
		s.BundleCount,
		fmt.Sprintf("%.9f", float64(s.NetVolume)/1e9),
		fmt.Sprintf("%.9f", float64(s.GrossVolume)/1e9),
		s.LastBundleID,
	})
	tw.Render()
}

// PPBalances writes the wallet balances shown by the balance command.
func PPBalances(w io.Writer, wallet string, sol float64, mint string, token float64) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Wallet", "Asset", "Balance"})
	tw.AppendRow(table.Row{wallet, "SOL", fmt.Sprintf("%.9f", sol)})
	if mint != "" {
		tw.AppendRow(table.Row{wallet, mint, token})
	}
	tw.Render()
}

// PPBundleStatuses writes relay statuses keyed by bundle id.
func PPBundleStatuses(w io.Writer, statuses []BundleStatus) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Bundle", "Slot", "Status", "Transactions"})
	for _, s := range statuses {
		tw.AppendRow(table.Row{s.BundleId, s.Slot, s.ConfirmationStatus, len(s.Transactions)})
	}
	tw.Render()
}

// BundleStatus mirrors one entry of the relay's getBundleStatuses result.
type BundleStatus struct {
	BundleId           string   `json:"bundle_id"`
	Transactions       []string `json:"transactions"`
	Slot               uint64   `json:"slot"`
	ConfirmationStatus string   `json:"confirmation_status"`
}
