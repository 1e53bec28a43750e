package jito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"bundler/config"
	"bundler/logger"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

// Block engine bundle endpoints. One is picked at random for every submission.
var DefaultEndpoints = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://slc.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

// Accounts that accept bundle tips.
var DefaultTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// MaxStatusBatch is the number of bundle ids getBundleStatuses accepts per call.
const MaxStatusBatch = 5

var ErrNoResult = errors.New("relay response has no result")

// RelayError carries the error payload of a rejected JSON-RPC call.
type RelayError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *RelayError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("relay %s rejected request (code %d): %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("relay %s rejected request: %s", e.Endpoint, e.Message)
}

func newRelayError(endpoint string, payload json.RawMessage) *RelayError {
	e := &RelayError{Endpoint: endpoint}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		e.Message = s
		return e
	}
	var obj struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Message != "" {
		e.Code = obj.Code
		e.Message = obj.Message
		return e
	}
	e.Message = string(payload)
	return e
}

type rpcRequest struct {
	JsonRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// GetEndpoints reads jito.endpoints, falling back to the public block engines.
func GetEndpoints() []string {
	eps := viper.GetStringSlice("jito.endpoints")
	if len(eps) == 0 {
		return DefaultEndpoints
	}
	return eps
}

// TipAccounts reads jito.tip-accounts, falling back to the public tip accounts.
func TipAccounts() ([]solana.PublicKey, error) {
	raw := viper.GetStringSlice("jito.tip-accounts")
	if len(raw) == 0 {
		raw = DefaultTipAccounts
	}
	return parseAccounts(raw)
}

func parseAccounts(raw []string) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(raw))
	for _, s := range raw {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid tip account %q: %w", s, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// PickEndpoint draws one endpoint uniformly at random.
func PickEndpoint(r *rand.Rand, endpoints []string) string {
	if len(endpoints) == 0 {
		return ""
	}
	return endpoints[r.IntN(len(endpoints))]
}

// PickTipAccount draws one tip account uniformly at random.
func PickTipAccount(r *rand.Rand, accounts []solana.PublicKey) solana.PublicKey {
	if len(accounts) == 0 {
		return solana.PublicKey{}
	}
	return accounts[r.IntN(len(accounts))]
}

// Relay submits bundles to the block engine. It never retries: the caller owns
// the retry policy.
type Relay struct {
	endpoints []string
	http      *http.Client
	logger    *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Relay)

func WithHTTPClient(h *http.Client) Option {
	return func(r *Relay) { r.http = h }
}

func WithRand(rng *rand.Rand) Option {
	return func(r *Relay) { r.rng = rng }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

func NewRelay(endpoints []string, opts ...Option) *Relay {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	r := &Relay{
		endpoints: append([]string(nil), endpoints...),
		http:      &http.Client{Timeout: config.DefaultTimeout},
		logger:    logger.Relay(),
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func NewRelayFromConfig(opts ...Option) *Relay {
	return NewRelay(GetEndpoints(), opts...)
}

func (r *Relay) Endpoints() []string {
	return append([]string(nil), r.endpoints...)
}

// RefreshTipAccounts asks the block engine for its tip accounts and falls back to
// TipAccounts when the call fails or returns none.
func (r *Relay) RefreshTipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	accounts, err := r.GetTipAccounts(ctx)
	if err == nil && len(accounts) > 0 {
		r.logger.Info("Refreshed tip accounts from relay", "count", len(accounts))
		return accounts, nil
	}
	if err != nil {
		r.logger.Warn("getTipAccounts failed, using configured tip accounts", "err", err)
	}
	return TipAccounts()
}

func (r *Relay) pick() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return PickEndpoint(r.rng, r.endpoints)
}

// call performs one JSON-RPC request against a randomly picked endpoint.
func (r *Relay) call(ctx context.Context, method string, params []any) (json.RawMessage, string, error) {
	endpoint := r.pick()
	req := rpcRequest{JsonRPC: "2.0", ID: 1, Method: method, Params: params}

	var resp rpcResponse
	if err := utils.PostUrlResponse(ctx, r.http, endpoint, req, &resp, r.logger); err != nil {
		// Block engines answer rejected bundles with a non-200 status and a JSON-RPC error body.
		var se *utils.StatusError
		if errors.As(err, &se) {
			var body rpcResponse
			if json.Unmarshal([]byte(se.Body), &body) == nil && isSet(body.Error) {
				return nil, endpoint, newRelayError(endpoint, body.Error)
			}
		}
		return nil, endpoint, fmt.Errorf("%s to %s failed: %w", method, endpoint, err)
	}
	if isSet(resp.Error) {
		return nil, endpoint, newRelayError(endpoint, resp.Error)
	}
	if !isSet(resp.Result) {
		return nil, endpoint, ErrNoResult
	}
	return resp.Result, endpoint, nil
}

// SendBundle submits base58-encoded transactions as one atomic bundle.
func (r *Relay) SendBundle(ctx context.Context, encoded []string) (*types.BundleAck, error) {
	if len(encoded) == 0 {
		return nil, errors.New("empty bundle")
	}
	result, endpoint, err := r.call(ctx, "sendBundle", []any{encoded})
	if err != nil {
		return nil, err
	}
	var id string
	if err := json.Unmarshal(result, &id); err != nil {
		return nil, fmt.Errorf("unexpected sendBundle result %s: %w", string(result), err)
	}
	if id == "" {
		return nil, ErrNoResult
	}
	r.logger.Info("Bundle accepted", "bundle_id", id, "endpoint", endpoint, "txs", len(encoded))
	return &types.BundleAck{BundleID: id, Endpoint: endpoint}, nil
}

// GetBundleStatuses queries landed bundles. Unknown ids are omitted from the result.
func (r *Relay) GetBundleStatuses(ctx context.Context, ids []string) ([]types.BundleStatus, error) {
	out := make([]types.BundleStatus, 0, len(ids))
	for start := 0; start < len(ids); start += MaxStatusBatch {
		end := min(start+MaxStatusBatch, len(ids))
		result, _, err := r.call(ctx, "getBundleStatuses", []any{ids[start:end]})
		if err != nil {
			return nil, err
		}
		var page struct {
			Value []*types.BundleStatus `json:"value"`
		}
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("unexpected getBundleStatuses result: %w", err)
		}
		for _, s := range page.Value {
			if s != nil {
				out = append(out, *s)
			}
		}
	}
	return out, nil
}

// GetTipAccounts asks the block engine for its current tip accounts.
func (r *Relay) GetTipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	result, _, err := r.call(ctx, "getTipAccounts", []any{})
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("unexpected getTipAccounts result: %w", err)
	}
	return parseAccounts(raw)
}

func isSet(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
