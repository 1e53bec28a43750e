package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"bundler/config"
)

const (
	DefaultRetryTimes    = 5
	DefaultRetryInterval = 100 * time.Millisecond
)

// defaultClient serves callers that pass a nil client. The per-request deadline is
// always the client's Timeout.
var defaultClient = &http.Client{Timeout: config.DefaultTimeout}

// StatusError is returned when the remote side answered with a non-200 status.
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request returned status %d: %s", e.Method, e.Status, e.Body)
}

func GetUrlResponse(ctx context.Context, client *http.Client, reqUrl string, params map[string]string, result any, logger *slog.Logger) error {
	return GetUrlResponseWithRetry(ctx, client, reqUrl, params, result, 1, logger)
}

func GetUrlResponseWithRetry(ctx context.Context, client *http.Client, reqUrl string, params map[string]string, result any, retry int, logger *slog.Logger) error {
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		reqUrl += "?" + q.Encode()
	}

	var lastErr error
	for i := 0; i < retry; i++ {
		lastErr = doGet(ctx, client, reqUrl, result)
		if lastErr == nil {
			return nil
		}
		if retry == 1 {
			return lastErr
		}
		logger.Warn("GET request failed, retrying...", "url", reqUrl, "attempt", i+1, "err", lastErr)
		if err := Sleep(ctx, DefaultRetryInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("GET request failed after %d attempts: %w", retry, lastErr)
}

func PostUrlResponse(ctx context.Context, client *http.Client, reqUrl string, body any, result any, logger *slog.Logger) error {
	return PostUrlResponseWithRetry(ctx, client, reqUrl, body, result, 1, logger)
}

func PostUrlResponseWithRetry(ctx context.Context, client *http.Client, reqUrl string, body any, result any, retry int, logger *slog.Logger) error {
	var lastErr error
	for i := 0; i < retry; i++ {
		lastErr = doPost(ctx, client, reqUrl, body, result)
		if lastErr == nil {
			return nil
		}
		if retry == 1 {
			return lastErr
		}
		logger.Warn("POST request failed, retrying...", "url", reqUrl, "attempt", i+1, "err", lastErr)
		if err := Sleep(ctx, DefaultRetryInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("POST request failed after %d attempts: %w", retry, lastErr)
}

func doGet(ctx context.Context, client *http.Client, reqUrl string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return fmt.Errorf("failed to create GET request: %w", err)
	}

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return fmt.Errorf("GET request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: http.MethodGet, Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("failed to stream and unmarshal GET response: %w", err)
	}

	return nil
}

func doPost(ctx context.Context, client *http.Client, reqUrl string, body any, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal POST body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqUrl, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(client).Do(req)
	if err != nil {
		return fmt.Errorf("POST request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyResp, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: http.MethodPost, Status: resp.StatusCode, Body: string(bodyResp)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("failed to stream and unmarshal POST response: %w", err)
	}

	return nil
}

func httpClient(client *http.Client) *http.Client {
	if client == nil {
		return defaultClient
	}
	return client
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
