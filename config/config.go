package config

import "time"

// Path config
const (
	LogPath    = "./logs/"
	ConfigPath = "./"
)

// Network config
const (
	DefaultTimeout = 20 * time.Second // per HTTP request, set on every client

	DefaultSolanaRpcURL  = "https://api.mainnet-beta.solana.com"
	DefaultJupiterURL    = "https://quote-api.jup.ag/v6"
	DefaultJupiterRps    = 10 // aggregator requests per second
	DefaultJupiterBurst  = 4
	DefaultMetricsAddr   = ""
	DefaultSlippageBps   = 5000 // generous, maker and volume swaps are tiny
	DefaultTipLamports   = 100_000
	BundleHistoryMaxSize = 1000
)

// Funding transaction config
const (
	FUNDING_CU_LIMIT               = 200_000 // compute unit ceiling of every funding tx
	PRIORITY_FEE_LAMPORTS          = 10_000  // total priority fee paid per funding tx
	FUNDING_CU_PRICE_MICROLAMPORTS = PRIORITY_FEE_LAMPORTS * 1_000_000 / FUNDING_CU_LIMIT

	FUNDING_FEE_ACCOUNT_NUM = 2
)

// Maker workflow config
const (
	MAKER_BATCH_SIZE              = 4  // signers funded by one bundle
	MAKER_FANOUT_PARALLEL_NUM     = 4  // concurrent aggregator calls per batch
	MAKER_BLOCKHASH_REFRESH_EVERY = 10 // bundles submitted before the blockhash is refetched
	MAKER_PROBE_AMOUNT            = 1  // exact-out token units bought by each maker
)

// Volume workflow config
const (
	VOLUME_BLOCKHASH_MAX_AGE  = 60 * time.Second
	VOLUME_SELL_PROBABILITY   = 0.3
	VOLUME_MIN_BUYS_PER_SELL  = 1
	VOLUME_MAX_BUYS_PER_SELL  = 3
	VOLUME_SELL_MIN_FRACTION  = 0.5
	VOLUME_SELL_MAX_FRACTION  = 1.0
	VOLUME_MIN_DELAY          = 5 * time.Second
	VOLUME_MAX_DELAY          = 15 * time.Second
	DEFAULT_VOLUME_SPEED      = 1.0
	VOLUME_MIN_SPEED          = 0.01 // slowest cadence: delays up to 100x VOLUME_MAX_DELAY
	DEFAULT_VOLUME_MCAP_RATIO = 2.0
)

// Retry config
const (
	RETRY_PAUSE = 5 * time.Second
)
