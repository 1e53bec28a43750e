package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"bundler/config"
	"bundler/logger"
	"bundler/types"
	"bundler/utils"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var AggregatorURL string

func GetAggregatorURL() string {
	if AggregatorURL != "" {
		return AggregatorURL
	}
	AggregatorURL = strings.TrimRight(viper.GetString("jupiter.url"), "/")
	if AggregatorURL == "" {
		AggregatorURL = config.DefaultJupiterURL
		logger.GlobalLogger.Warn("jupiter.url not set in config, using default", "url", AggregatorURL)
	}
	return AggregatorURL
}

var (
	ErrNoRouteFound    = errors.New("no route found")
	ErrSwapBuildFailed = errors.New("aggregator did not return a swap transaction")
)

// Error codes the aggregator answers with when no route exists for a pair.
var noRouteCodes = []string{"COULD_NOT_FIND_ANY_ROUTE", "NO_ROUTES_FOUND", "TOKEN_NOT_TRADABLE"}

type SwapRequest struct {
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	Amount      uint64 // raw units of the mint fixed by Mode
	Mode        types.SwapMode
	Dexes       []string
	SlippageBps int
}

type RoutePlanStep struct {
	SwapInfo struct {
		AmmKey string `json:"ammKey"`
		Label  string `json:"label"`
	} `json:"swapInfo"`
	Percent int `json:"percent"`
}

// Route is a quote as returned by the aggregator. Raw is posted back verbatim
// when the swap transaction is requested.
type Route struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	Raw                  json.RawMessage `json:"-"`
}

// Venues lists the DEX labels the route goes through.
func (r *Route) Venues() []string {
	out := make([]string, 0, len(r.RoutePlan))
	for _, step := range r.RoutePlan {
		if !utils.HasString(out, step.SwapInfo.Label) {
			out = append(out, step.SwapInfo.Label)
		}
	}
	return out
}

type swapBody struct {
	QuoteResponse       json.RawMessage `json:"quoteResponse"`
	UserPublicKey       string          `json:"userPublicKey"`
	FeeAccount          string          `json:"feeAccount,omitempty"`
	WrapAndUnwrapSol    bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTransaction bool            `json:"asLegacyTransaction"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapPlan is an unsigned aggregator transaction together with the route it executes.
type SwapPlan struct {
	Route                *Route
	Transaction          *solana.Transaction
	LastValidBlockHeight uint64
}

// Client talks to the aggregator's quote and swap endpoints. Requests share a
// rate limiter so the maker fan-out cannot overrun the API.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	feeAccount string
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimit caps requests per second; rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithFeeAccount sets the token account that collects the platform fee.
func WithFeeAccount(account string) Option {
	return func(c *Client) { c.feeAccount = account }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: config.DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.DefaultJupiterRps), config.DefaultJupiterBurst),
		logger:  logger.Relay(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig reads jupiter.url, jupiter.rps and jupiter.fee-account.
// Extra options are applied after the configured ones.
func NewClientFromConfig(extra ...Option) *Client {
	opts := []Option{WithFeeAccount(viper.GetString("jupiter.fee-account"))}
	if viper.IsSet("jupiter.rps") {
		opts = append(opts, WithRateLimit(viper.GetFloat64("jupiter.rps"), config.DefaultJupiterBurst))
	}
	return NewClient(GetAggregatorURL(), append(opts, extra...)...)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("aggregator rate limiter: %w", err)
	}
	return nil
}

// Quote asks the aggregator for the best route of req.
func (c *Client) Quote(ctx context.Context, req SwapRequest) (*Route, error) {
	if req.Amount == 0 {
		return nil, errors.New("quote amount must be positive")
	}
	dexes, err := utils.NormalizeDexes(req.Dexes)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = types.ExactIn
	}
	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = config.DefaultSlippageBps
	}

	params := map[string]string{
		"inputMint":   req.InputMint.String(),
		"outputMint":  req.OutputMint.String(),
		"amount":      strconv.FormatUint(req.Amount, 10),
		"swapMode":    string(mode),
		"slippageBps": strconv.Itoa(slippage),
	}
	if len(dexes) > 0 {
		params["dexes"] = strings.Join(dexes, ",")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := utils.GetUrlResponse(ctx, c.http, c.baseURL+"/quote", params, &raw, c.logger); err != nil {
		var se *utils.StatusError
		if errors.As(err, &se) && isNoRoute(se.Body) {
			return nil, fmt.Errorf("%w: %s -> %s: %s", ErrNoRouteFound, req.InputMint, req.OutputMint, se.Body)
		}
		return nil, fmt.Errorf("quote failed: %w", err)
	}

	var route Route
	if err := json.Unmarshal(raw, &route); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	if len(route.RoutePlan) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRouteFound, req.InputMint, req.OutputMint)
	}
	route.Raw = raw
	c.logger.Debug("Quote received", "in", route.InAmount, "out", route.OutAmount, "mode", route.SwapMode, "venues", route.Venues())
	return &route, nil
}

// BuildTransaction asks the aggregator to turn route into a transaction paid by user.
// SOL is neither wrapped nor unwrapped: the funded signer trades WSOL directly.
func (c *Client) BuildTransaction(ctx context.Context, route *Route, user solana.PublicKey) (*solana.Transaction, uint64, error) {
	if route == nil || len(route.Raw) == 0 {
		return nil, 0, errors.New("route has no quote payload")
	}
	body := swapBody{
		QuoteResponse:       route.Raw,
		UserPublicKey:       user.String(),
		FeeAccount:          c.feeAccount,
		WrapAndUnwrapSol:    false,
		AsLegacyTransaction: false,
	}

	if err := c.wait(ctx); err != nil {
		return nil, 0, err
	}
	var resp swapResponse
	if err := utils.PostUrlResponse(ctx, c.http, c.baseURL+"/swap", body, &resp, c.logger); err != nil {
		return nil, 0, fmt.Errorf("swap build failed: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, 0, ErrSwapBuildFailed
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: decode base64: %v", ErrSwapBuildFailed, err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: unmarshal transaction: %v", ErrSwapBuildFailed, err)
	}
	return tx, resp.LastValidBlockHeight, nil
}

// Swap quotes req and builds the matching transaction for signer.
func (c *Client) Swap(ctx context.Context, req SwapRequest, signer solana.PublicKey) (*SwapPlan, error) {
	route, err := c.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	tx, height, err := c.BuildTransaction(ctx, route, signer)
	if err != nil {
		return nil, err
	}
	return &SwapPlan{Route: route, Transaction: tx, LastValidBlockHeight: height}, nil
}

func isNoRoute(body string) bool {
	for _, code := range noRouteCodes {
		if strings.Contains(body, code) {
			return true
		}
	}
	return false
}
