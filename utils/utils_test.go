package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bundler/config"
	"bundler/logger"
)

func init() {
	logger.InitLogs("utils_test")
}

func TestSolToLamports(t *testing.T) {
	cases := []struct {
		sol  float64
		want uint64
	}{
		{0, 0},
		{-1, 0},
		{1, 1_000_000_000},
		{0.001, 1_000_000},
		{0.123456789, 123_456_789},
		{0.0000000001, 0},
	}
	for _, c := range cases {
		if got := SolToLamports(c.sol); got != c.want {
			t.Errorf("SolToLamports(%v) = %d, want %d", c.sol, got, c.want)
		}
	}
	if got := LamportsToSol(1_500_000_000); got != 1.5 {
		t.Errorf("LamportsToSol = %v, want 1.5", got)
	}
}

func TestUiToRaw(t *testing.T) {
	if got := UiToRaw(1.5, 6); got != 1_500_000 {
		t.Fatalf("UiToRaw(1.5, 6) = %d", got)
	}
	if got := RawToUi(1_500_000, 6); got != 1.5 {
		t.Fatalf("RawToUi(1500000, 6) = %v", got)
	}
}

func TestFloatRound(t *testing.T) {
	if got := FloatRound(3.14159, 2); got != 3.14 {
		t.Fatalf("FloatRound = %v", got)
	}
}

func TestNormalizeDexes(t *testing.T) {
	out, err := NormalizeDexes([]string{"Raydium", " Whirlpool ", "Raydium", ""})
	if err != nil {
		t.Fatalf("NormalizeDexes returned error: %v", err)
	}
	if len(out) != 2 || out[0] != "Raydium" || out[1] != "Whirlpool" {
		t.Fatalf("unexpected dexes: %v", out)
	}

	if _, err := NormalizeDexes([]string{"Raydium", "NotADex"}); err == nil || !strings.Contains(err.Error(), "NotADex") {
		t.Fatalf("expected unknown dex error, got %v", err)
	}

	out, err = NormalizeDexes(nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty filter should stay empty, got %v %v", out, err)
	}
}

func TestBundleCache(t *testing.T) {
	c := NewBundleCache(3)
	for _, id := range []string{"a", "b", "c", "a", "d"} {
		c.Add(id)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 ids, got %d", c.Len())
	}
	if c.Has("a") {
		t.Errorf("oldest id should have been evicted")
	}
	recent := c.Recent(5)
	if len(recent) != 3 || recent[0] != "d" || recent[2] != "b" {
		t.Fatalf("unexpected recent ids: %v", recent)
	}
}

func TestGetUrlResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dexes") != "Raydium,Whirlpool" {
			t.Errorf("query not encoded: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer ts.Close()

	var out map[string]string
	err := GetUrlResponse(context.Background(), ts.Client(), ts.URL, map[string]string{"dexes": "Raydium,Whirlpool"}, &out, logger.GlobalLogger)
	if err != nil {
		t.Fatalf("GetUrlResponse failed: %v", err)
	}
	if out["ok"] != "yes" {
		t.Fatalf("unexpected body: %v", out)
	}
}

func TestPostUrlResponseStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad bundle"}`))
	}))
	defer ts.Close()

	var out map[string]any
	err := PostUrlResponse(context.Background(), ts.Client(), ts.URL, map[string]int{"a": 1}, &out, logger.GlobalLogger)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusBadRequest || !strings.Contains(se.Body, "bad bundle") {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Sleep did not return promptly")
	}
}

type deadlineRecorder struct {
	deadline time.Time
	ok       bool
}

func (d *deadlineRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	d.deadline, d.ok = r.Context().Deadline()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"ok":"yes"}`)),
		Header:     make(http.Header),
		Request:    r,
	}, nil
}

func TestRequestDeadlineFollowsClientTimeout(t *testing.T) {
	rt := &deadlineRecorder{}
	client := &http.Client{Transport: rt, Timeout: time.Minute}

	var out map[string]string
	start := time.Now()
	if err := GetUrlResponse(context.Background(), client, "http://relay.test/tip_floor", nil, &out, logger.GlobalLogger); err != nil {
		t.Fatalf("GetUrlResponse failed: %v", err)
	}
	if rt.ok && rt.deadline.Sub(start) < 30*time.Second {
		t.Fatalf("request deadline %s is shorter than the client timeout", rt.deadline.Sub(start))
	}

	if err := PostUrlResponse(context.Background(), client, "http://relay.test/bundles", map[string]int{"a": 1}, &out, logger.GlobalLogger); err != nil {
		t.Fatalf("PostUrlResponse failed: %v", err)
	}
	if rt.ok && rt.deadline.Sub(start) < 30*time.Second {
		t.Fatalf("request deadline %s is shorter than the client timeout", rt.deadline.Sub(start))
	}

	if httpClient(nil).Timeout != config.DefaultTimeout {
		t.Fatalf("nil client should fall back to a client with the default timeout")
	}
}
