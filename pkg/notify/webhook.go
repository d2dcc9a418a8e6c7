package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultWebhookTimeout is the HTTP client timeout for webhook requests.
	DefaultWebhookTimeout = 5 * time.Second
	// DefaultMaxRetries is the number of delivery attempts.
	DefaultMaxRetries = 3

	SignatureHeader = "X-Usagewatch-Signature"
	EventIDHeader   = "X-Usagewatch-Event-ID"
	EventTypeHeader = "X-Usagewatch-Event-Type"
)

// WebhookConfig configures a WebhookDisplay.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the unit of the linear retry delay: Backoff, 2*Backoff, ...
	Backoff time.Duration
}

// WebhookEvent is the JSON body posted for every delivery.
type WebhookEvent struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	SentAt       time.Time     `json:"sent_at"`
	Badge        *Badge        `json:"badge,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// WebhookDisplay forwards badge changes and notifications to an HTTP endpoint.
type WebhookDisplay struct {
	cfg    WebhookConfig
	client *http.Client
	logger zerolog.Logger
}

func NewWebhookDisplay(cfg WebhookConfig, logger zerolog.Logger) *WebhookDisplay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &WebhookDisplay{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

func (d *WebhookDisplay) SetBadge(ctx context.Context, b Badge) error {
	return d.send(ctx, WebhookEvent{Type: "badge", Badge: &b})
}

func (d *WebhookDisplay) Notify(ctx context.Context, n Notification) error {
	return d.send(ctx, WebhookEvent{Type: "notification", Notification: &n})
}

// send performs the HTTP POST with retries.
func (d *WebhookDisplay) send(ctx context.Context, evt WebhookEvent) error {
	evt.ID = uuid.NewString()
	evt.SentAt = time.Now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	var lastErr error
	for i := 0; i < d.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook delivery cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(i) * d.cfg.Backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "usagewatch-webhook/1.0")
		req.Header.Set(EventIDHeader, evt.ID)
		req.Header.Set(EventTypeHeader, evt.Type)
		if d.cfg.Secret != "" {
			req.Header.Set(SignatureHeader, Sign(d.cfg.Secret, payload))
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			d.logger.Debug().Err(err).Int("attempt", i+1).Msg("webhook attempt failed")
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("webhook responded with status: %d", resp.StatusCode)
		// Client errors will not succeed on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return lastErr
		}
	}

	d.logger.Warn().Err(lastErr).Str("type", evt.Type).Msg("webhook delivery failed")
	return fmt.Errorf("max retries reached: %w", lastErr)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
