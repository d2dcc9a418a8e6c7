package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/provider"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

const (
	DefaultBaseURL   = "https://claude.ai/api"
	DefaultUserAgent = "usagewatch/1.0"
)

// Config holds the connection settings for the claude.ai web API.
type Config struct {
	BaseURL    string
	SessionKey string
	UserAgent  string
	Timeout    time.Duration
}

// Client talks to the claude.ai organizations and usage endpoints using an
// existing browser session key.
type Client struct {
	baseURL    string
	sessionKey string
	userAgent  string
	client     *http.Client
	cache      provider.OrgCache
}

var _ provider.Client = (*Client)(nil)

// NewClient builds a client. cache stores the resolved organization id.
func NewClient(cfg Config, cache provider.OrgCache) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sessionKey: cfg.SessionKey,
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}
}

// ResolveOrg returns the cached organization id when present, without any
// freshness check. Otherwise it lists organizations and caches the first one
// with the chat capability.
func (c *Client) ResolveOrg(ctx context.Context) (string, error) {
	cached, err := c.cache.OrgID(ctx)
	if err != nil {
		return "", provider.UnknownError("read cached organization", err)
	}
	if cached != "" {
		return cached, nil
	}

	var orgs []provider.Organization
	if err := c.getJSON(ctx, provider.OpOrganizations, c.baseURL+"/organizations", &orgs); err != nil {
		return "", err
	}

	for _, org := range orgs {
		if org.HasCapability(provider.CapabilityChat) {
			if err := c.cache.SetOrgID(ctx, org.UUID); err != nil {
				return "", provider.UnknownError("cache organization", err)
			}
			return org.UUID, nil
		}
	}
	return "", provider.ErrNoChatOrg
}

// FetchUsage performs a single request for the org's usage windows.
func (c *Client) FetchUsage(ctx context.Context, orgID string) (usage.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/organizations/%s/usage", c.baseURL, url.PathEscape(orgID))

	var snap usage.Snapshot
	if err := c.getJSON(ctx, provider.OpUsage, endpoint, &snap); err != nil {
		return usage.Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provider.UnknownError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.sessionKey != "" {
		req.AddCookie(&http.Cookie{Name: "sessionKey", Value: c.sessionKey})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return provider.UnknownError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return provider.NetworkError(op, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.UnknownError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
