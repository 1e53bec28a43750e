package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"bundler/logger"
	"bundler/types"
	"bundler/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

func init() {
	logger.InitLogs("jupiter_test")
}

const quoteJSON = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"inAmount": "1000000",
	"outAmount": "150000",
	"otherAmountThreshold": "75000",
	"swapMode": "ExactIn",
	"slippageBps": 5000,
	"contextSlot": 42,
	"routePlan": [{"swapInfo": {"ammKey": "amm1", "label": "Raydium"}, "percent": 100}]
}`

func mockSwapTx(t *testing.T, user string) string {
	payer := solana.MustPublicKeyFromBase58(user)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		t.Errorf("NewTransaction failed: %v", err)
		return ""
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Errorf("MarshalBinary failed: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func newAggregator(t *testing.T, quote string, swapTx func(user string) string) (*httptest.Server, *int32) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(quote))
		case "/swap":
			var body map[string]json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad swap body: %v", err)
			}
			if string(body["wrapAndUnwrapSol"]) != "false" || string(body["asLegacyTransaction"]) != "false" {
				t.Errorf("unexpected flags: %s %s", body["wrapAndUnwrapSol"], body["asLegacyTransaction"])
			}
			var q map[string]any
			_ = json.Unmarshal(body["quoteResponse"], &q)
			if q["contextSlot"] != float64(42) {
				t.Errorf("quote not posted back verbatim: %v", q)
			}
			var user string
			_ = json.Unmarshal(body["userPublicKey"], &user)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"swapTransaction":      swapTx(user),
				"lastValidBlockHeight": 1234,
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return ts, &calls
}

func TestQuoteParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("swapMode") != "ExactOut" {
			t.Errorf("swapMode = %q", q.Get("swapMode"))
		}
		if q.Get("amount") != "1" {
			t.Errorf("amount = %q", q.Get("amount"))
		}
		if q.Get("dexes") != "Raydium,Orca V2" {
			t.Errorf("dexes = %q", q.Get("dexes"))
		}
		if q.Get("inputMint") != utils.WSOL {
			t.Errorf("inputMint = %q", q.Get("inputMint"))
		}
		if q.Get("slippageBps") == "" {
			t.Errorf("slippageBps missing")
		}
		_, _ = w.Write([]byte(quoteJSON))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, WithRateLimit(0, 0))
	route, err := c.Quote(context.Background(), SwapRequest{
		InputMint:  solana.MustPublicKeyFromBase58(utils.WSOL),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     1,
		Mode:       types.ExactOut,
		Dexes:      []string{"Raydium", " Orca V2", "Raydium"},
	})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if route.OutAmount != "150000" || len(route.Raw) == 0 {
		t.Fatalf("unexpected route: %+v", route)
	}
	if v := route.Venues(); len(v) != 1 || v[0] != "Raydium" {
		t.Fatalf("unexpected venues %v", v)
	}
}

func TestQuoteUnknownDexMakesNoRequest(t *testing.T) {
	ts, calls := newAggregator(t, quoteJSON, func(string) string { return "" })
	defer ts.Close()

	c := NewClient(ts.URL, WithRateLimit(0, 0))
	_, err := c.Quote(context.Background(), SwapRequest{
		InputMint:  solana.NewWallet().PublicKey(),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     10,
		Dexes:      []string{"NotADex"},
	})
	if err == nil {
		t.Fatalf("expected unknown dex error")
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("no request expected, got %d", *calls)
	}
}

func TestQuoteNoRoute(t *testing.T) {
	ts, _ := newAggregator(t, `{"inputMint":"a","outputMint":"b","routePlan":[]}`, func(string) string { return "" })
	defer ts.Close()

	c := NewClient(ts.URL, WithRateLimit(0, 0))
	_, err := c.Quote(context.Background(), SwapRequest{
		InputMint:  solana.NewWallet().PublicKey(),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     10,
	})
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}

	ts400 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	}))
	defer ts400.Close()

	c = NewClient(ts400.URL, WithRateLimit(0, 0))
	_, err = c.Quote(context.Background(), SwapRequest{
		InputMint:  solana.NewWallet().PublicKey(),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     10,
	})
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound for 400, got %v", err)
	}
}

func TestSwap(t *testing.T) {
	ts, calls := newAggregator(t, quoteJSON, func(user string) string { return mockSwapTx(t, user) })
	defer ts.Close()

	signer := solana.NewWallet().PublicKey()
	c := NewClient(ts.URL, WithRateLimit(100, 2))
	plan, err := c.Swap(context.Background(), SwapRequest{
		InputMint:  solana.MustPublicKeyFromBase58(utils.WSOL),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     1_000_000,
		Mode:       types.ExactIn,
	}, signer)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected quote + swap calls, got %d", *calls)
	}
	if plan.LastValidBlockHeight != 1234 {
		t.Fatalf("unexpected last valid block height %d", plan.LastValidBlockHeight)
	}
	if !plan.Transaction.Message.AccountKeys[0].Equals(signer) {
		t.Fatalf("swap transaction must be paid by the signer")
	}
}

func TestSwapEmptyTransaction(t *testing.T) {
	ts, _ := newAggregator(t, quoteJSON, func(string) string { return "" })
	defer ts.Close()

	c := NewClient(ts.URL, WithRateLimit(0, 0))
	_, err := c.Swap(context.Background(), SwapRequest{
		InputMint:  solana.NewWallet().PublicKey(),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     10,
	}, solana.NewWallet().PublicKey())
	if !errors.Is(err, ErrSwapBuildFailed) {
		t.Fatalf("expected ErrSwapBuildFailed, got %v", err)
	}
}

func TestQuoteRateLimiterHonoursContext(t *testing.T) {
	ts, _ := newAggregator(t, quoteJSON, func(string) string { return "" })
	defer ts.Close()

	c := NewClient(ts.URL, WithRateLimit(0.001, 1))
	req := SwapRequest{
		InputMint:  solana.NewWallet().PublicKey(),
		OutputMint: solana.NewWallet().PublicKey(),
		Amount:     10,
	}
	if _, err := c.Quote(context.Background(), req); err != nil {
		t.Fatalf("first quote should pass the limiter: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Quote(ctx, req); err == nil {
		t.Fatalf("expected limiter error on a cancelled context")
	}
}
