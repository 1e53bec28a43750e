package jito

import (
	"context"
	"fmt"

	"bundler/logger"
	"bundler/utils"

	"github.com/spf13/viper"
)

var JitoBundleURL string

// GetJitoBundleURL is the public bundle explorer API, distinct from the block engines.
func GetJitoBundleURL() string {
	if JitoBundleURL != "" {
		return JitoBundleURL
	}

	JitoBundleURL = viper.GetString("jito.bundles-url")
	if JitoBundleURL == "" {
		JitoBundleURL = "https://bundles.jito.wtf/api/v1/bundles"
		logger.Relay().Warn("JitoBundleURL not set in config, using default", "url", JitoBundleURL)
	}

	return JitoBundleURL
}

// TipFloor holds the landed tip percentiles of recent bundles, in SOL.
type TipFloor struct {
	Time          string  `json:"time"`
	Landed25th    float64 `json:"landed_tips_25th_percentile"`
	Landed50th    float64 `json:"landed_tips_50th_percentile"`
	Landed75th    float64 `json:"landed_tips_75th_percentile"`
	Landed95th    float64 `json:"landed_tips_95th_percentile"`
	Landed99th    float64 `json:"landed_tips_99th_percentile"`
	EmaLanded50th float64 `json:"ema_landed_tips_50th_percentile"`
}

// Lamports returns the requested percentile (25, 50, 75, 95 or 99) in lamports.
// Any other value falls back to the median.
func (t *TipFloor) Lamports(percentile int) uint64 {
	v := t.Landed50th
	switch percentile {
	case 25:
		v = t.Landed25th
	case 75:
		v = t.Landed75th
	case 95:
		v = t.Landed95th
	case 99:
		v = t.Landed99th
	}
	return utils.SolToLamports(v)
}

func GetTipFloor(ctx context.Context) (*TipFloor, error) {
	var result []TipFloor
	err := utils.GetUrlResponseWithRetry(ctx, nil, GetJitoBundleURL()+"/tip_floor", nil, &result, utils.DefaultRetryTimes, logger.Relay())
	if err != nil {
		return nil, fmt.Errorf("GetTipFloor failed: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("GetTipFloor returned no data")
	}
	return &result[0], nil
}
