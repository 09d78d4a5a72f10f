// Package courier delivers relayed messages to the external chat transport
// through a configured HTTP endpoint. Payloads are signed with HMAC-SHA256
// so the receiver can authenticate them.
package courier

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for delivery outcomes.
var (
	// ErrDeliveryFailed is returned when every attempt was exhausted or the
	// endpoint rejected the payload.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// Delivery is one outbound message for a plate owner.
type Delivery struct {
	DeliveryID      string `json:"delivery_id"`
	RecipientChatID int64  `json:"recipient_chat_id"`
	Text            string `json:"text"`
}

// Result describes a completed delivery attempt sequence.
type Result struct {
	Attempts   int
	StatusCode int
	Latency    time.Duration
}

// Courier sends a Delivery to the transport. Implementations must return a
// non-nil error when the message did not reach the transport.
type Courier interface {
	Deliver(ctx context.Context, d Delivery) (*Result, error)
}

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 15 * time.Second
)

// Header names applied to outbound requests.
const (
	HeaderSignature  = "X-Platerelay-Signature"
	HeaderTimestamp  = "X-Platerelay-Timestamp"
	HeaderDeliveryID = "X-Platerelay-Delivery-Id"
)

// NewHTTPClient creates an HTTP client configured for courier delivery.
// It has appropriate timeouts and does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    false,
		},
		// Don't follow redirects - security measure
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func setDeliveryHeaders(req *http.Request, signature string, timestamp int64, deliveryID string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, formatTimestamp(timestamp))
	req.Header.Set(HeaderDeliveryID, deliveryID)
	req.Header.Set("User-Agent", "Platerelay-Courier/1.0")
}
