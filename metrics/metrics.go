package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BundlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundler_bundles_total", Help: "Bundles submitted to the relay"},
		[]string{"workflow", "result"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundler_trades_total", Help: "Trades landed in accepted bundles"},
		[]string{"side"},
	)
	VolumeLamports = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundler_volume_lamports_total", Help: "Traded volume in lamports"},
		[]string{"side"},
	)
	BlockhashRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundler_blockhash_refreshes_total", Help: "Recent blockhash fetches"},
		[]string{"workflow"},
	)
	MakersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bundler_makers_completed_total", Help: "Distinct maker wallets created"},
	)
)

func init() {
	prometheus.MustRegister(BundlesTotal, TradesTotal, VolumeLamports, BlockhashRefreshes, MakersCompleted)
}

func ObserveBundle(workflow string, err error) {
	result := "accepted"
	if err != nil {
		result = "failed"
	}
	BundlesTotal.WithLabelValues(workflow, result).Inc()
}

func ObserveTrade(side string, lamports uint64) {
	TradesTotal.WithLabelValues(side).Inc()
	VolumeLamports.WithLabelValues(side).Add(float64(lamports))
}

// Serve exposes /metrics on addr. An empty addr disables the endpoint.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
