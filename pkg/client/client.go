package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// DefaultEndpoint is where usagewatch-d listens unless configured otherwise.
const DefaultEndpoint = "http://127.0.0.1:8090"

// Client is the usagewatch daemon client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  BackoffStrategy
}

// NewClient creates a new usagewatch client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultBackoff(),
	}
}

// WithBackoff replaces the strategy used by WaitReady.
func (c *Client) WithBackoff(b BackoffStrategy) *Client {
	c.backoff = b
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Refresh asks the daemon to fetch usage now and waits for the run.
func (c *Client) Refresh(ctx context.Context) (Result, error) {
	return c.action(ctx, "/v1/refresh", nil)
}

// Usage returns the cached snapshot, fetch time and last error.
func (c *Client) Usage(ctx context.Context) (usage.CachedResult, error) {
	var res usage.CachedResult
	err := c.get(ctx, "/v1/usage", &res)
	return res, err
}

func (c *Client) Settings(ctx context.Context) (usage.Settings, error) {
	var env settingsEnvelope
	if err := c.get(ctx, "/v1/settings", &env); err != nil {
		return usage.Settings{}, err
	}
	return env.Settings, nil
}

// UpdateSettings replaces the whole settings record.
func (c *Client) UpdateSettings(ctx context.Context, settings usage.Settings) (Result, error) {
	return c.action(ctx, "/v1/settings", settingsEnvelope{Settings: settings})
}

// TestNotification shows a periodic-style notification from the cached
// snapshot.
func (c *Client) TestNotification(ctx context.Context) (Result, error) {
	return c.action(ctx, "/v1/test-notification", nil)
}

func (c *Client) Badge(ctx context.Context) (Badge, error) {
	var b Badge
	err := c.get(ctx, "/v1/badge", &b)
	return b, err
}

// Notifications returns recent notifications, oldest first.
func (c *Client) Notifications(ctx context.Context) ([]notify.Notification, error) {
	var env notificationsEnvelope
	if err := c.get(ctx, "/v1/notifications", &env); err != nil {
		return nil, err
	}
	return env.Notifications, nil
}

func (c *Client) Schedules(ctx context.Context) ([]Schedule, error) {
	var out []Schedule
	err := c.get(ctx, "/v1/schedules", &out)
	return out, err
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.get(ctx, "/v1/health", &status)
	return status, err
}

// WaitReady pings until the daemon answers, ctx is done or attempts run out.
func (c *Client) WaitReady(ctx context.Context, attempts int) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		_, err := c.Ping(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, c.backoff.Next(i)); err != nil {
			return err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return fmt.Errorf("daemon not ready at %s: %w", c.endpoint, lastErr)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// action posts body and decodes the action reply. Non-2xx replies that
// still carry an action body are returned as a failed Result.
func (c *Client) action(ctx context.Context, path string, body any) (Result, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Result{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, reader)
	if err != nil {
		return Result{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, &APIError{StatusCode: resp.StatusCode}
		}
		return Result{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK && res.Error == "" {
		return Result{}, &APIError{StatusCode: resp.StatusCode}
	}
	return res, nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}
