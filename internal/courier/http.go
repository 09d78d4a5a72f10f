package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBody caps how much of the endpoint's response is read.
const maxResponseBody = 64 * 1024

// Config holds the settings for the HTTP courier.
type Config struct {
	URL           string
	Secret        string
	Timeout       time.Duration // per-request timeout, 0 uses ClientTimeout
	MaxRetries    int
	RatePerSecond float64
	Burst         int
}

// HTTP delivers messages to a single configured endpoint. Outbound
// requests are paced with a token bucket so the transport's own limits
// are respected.
type HTTP struct {
	client *http.Client
	cfg    Config
	pacer  *rate.Limiter
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewHTTP creates an HTTP courier for the given endpoint.
func NewHTTP(cfg Config, log *slog.Logger) *HTTP {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxAttempts
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if log == nil {
		log = slog.Default()
	}

	client := NewHTTPClient()
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}

	return &HTTP{
		client: client,
		cfg:    cfg,
		pacer:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:    log,
		sleep:  sleepCtx,
	}
}

// Deliver sends d to the endpoint, retrying transient failures. It returns
// a Result describing the attempt sequence, or ErrDeliveryFailed once the
// endpoint rejects the payload or the retry budget is spent.
func (h *HTTP) Deliver(ctx context.Context, d Delivery) (*Result, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal delivery: %w", err)
	}

	start := time.Now()
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := h.sleep(ctx, NextRetryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := h.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pacing wait: %w", err)
		}

		status, err := h.attempt(ctx, d.DeliveryID, payload)
		if err == nil && status >= 200 && status < 300 {
			return &Result{
				Attempts:   attempt + 1,
				StatusCode: status,
				Latency:    time.Since(start),
			}, nil
		}

		lastStatus, lastErr = status, err
		h.log.Warn("delivery attempt failed",
			"delivery_id", d.DeliveryID,
			"attempt", attempt+1,
			"status", status,
			"error", err,
		)

		if err == nil && !retryableStatus(status) {
			break
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: endpoint returned status %d", ErrDeliveryFailed, lastStatus)
}

func (h *HTTP) attempt(ctx context.Context, deliveryID string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	timestamp := time.Now().Unix()
	signature := GenerateSignature(h.cfg.Secret, timestamp, payload)
	setDeliveryHeaders(req, signature, timestamp, deliveryID)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	return resp.StatusCode, nil
}

// retryableStatus reports whether the endpoint's response warrants another
// attempt. Client errors other than 408 and 429 are terminal.
func retryableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
