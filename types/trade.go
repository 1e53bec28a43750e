package types

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a swap relative to the traded token.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("invalid side %q, expected buy or sell", s)
}

// SwapMode tells the aggregator which side of the swap Amount fixes.
type SwapMode string

const (
	ExactIn  SwapMode = "ExactIn"
	ExactOut SwapMode = "ExactOut"
)

// BundleAck is the relay's acknowledgement of an accepted bundle.
type BundleAck struct {
	BundleID string `json:"bundleId"`
	Endpoint string `json:"endpoint"`
}

// BundleRecord is one submitted bundle, persisted to the bundles table.
type BundleRecord struct {
	BundleId     string    `ch:"bundleId"`
	Workflow     string    `ch:"workflow"` // makers, volume or swap
	Mint         string    `ch:"mint"`
	Timestamp    time.Time `ch:"timestamp"`
	Signers      []string  `ch:"signers"`
	Transactions []string  `ch:"transactions"` // base58 signatures
	TipLamports  uint64    `ch:"tipLamports"`
	Endpoint     string    `ch:"endpoint"`
}

// TradeRecord is one completed volume or one-shot trade, persisted to the trades table.
type TradeRecord struct {
	BundleId    string    `ch:"bundleId"`
	Workflow    string    `ch:"workflow"` // volume or swap
	Mint        string    `ch:"mint"`
	Timestamp   time.Time `ch:"timestamp"`
	Side        string    `ch:"side"`
	Signer      string    `ch:"signer"`
	Lamports    uint64    `ch:"lamports"`    // trade size in lamports (SOL side)
	NetVolume   uint64    `ch:"netVolume"`   // after this trade, volume workflow only
	GrossVolume uint64    `ch:"grossVolume"` // after this trade, volume workflow only
}

// TradeOutcome is one step of the volume stream. Err is set when the step failed.
type TradeOutcome struct {
	Iteration uint64
	Side      Side
	Lamports  uint64
	Signer    string
	BundleID  string
	Err       error
	Stats     VolumeStats
}
