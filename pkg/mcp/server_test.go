package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// fakeDaemon serves the daemon routes the MCP handlers call.
type fakeDaemon struct {
	mu        sync.Mutex
	settings  usage.Settings
	refresh   string
	testNotif string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		settings:  usage.DefaultSettings(),
		refresh:   `{"success":true,"usage":{"five_hour":{"utilization":84.6},"seven_day":{"utilization":60}}}`,
		testNotif: `{"success":true}`,
	}
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/v1/usage":
		w.Write([]byte(`{"usage":{"five_hour":{"utilization":85}},"lastFetch":"2025-10-15T12:00:00Z"}`))
	case r.URL.Path == "/v1/settings" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"settings": f.settings})
	case r.URL.Path == "/v1/settings" && r.Method == http.MethodPost:
		var env struct {
			Settings usage.Settings `json:"settings"`
		}
		json.NewDecoder(r.Body).Decode(&env)
		f.settings = env.Settings
		w.Write([]byte(`{"success":true}`))
	case r.URL.Path == "/v1/refresh":
		w.Write([]byte(f.refresh))
	case r.URL.Path == "/v1/test-notification":
		w.Write([]byte(f.testNotif))
	default:
		http.NotFound(w, r)
	}
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestMCPServer_ReadUsage(t *testing.T) {
	ts := httptest.NewServer(newFakeDaemon())
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	req := mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: URIUsage},
	}

	result, err := s.handleReadUsage(context.Background(), req)
	if err != nil {
		t.Fatalf("handleReadUsage failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 resource content, got %d", len(result))
	}
	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("Expected TextResourceContents")
	}
	if content.MIMEType != "application/json" || content.URI != URIUsage {
		t.Errorf("unexpected content metadata %+v", content)
	}

	var cached usage.CachedResult
	if err := json.Unmarshal([]byte(content.Text), &cached); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	if u, _ := cached.Usage.Quota(usage.QuotaSession).Util(); u != 85 {
		t.Errorf("expected session 85, got %v", u)
	}
}

func TestMCPServer_ReadSettings(t *testing.T) {
	ts := httptest.NewServer(newFakeDaemon())
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleReadSettings(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: URISettings},
	})
	if err != nil {
		t.Fatalf("handleReadSettings failed: %v", err)
	}
	content := result[0].(mcp.TextResourceContents)
	var got usage.Settings
	if err := json.Unmarshal([]byte(content.Text), &got); err != nil {
		t.Fatalf("Failed to parse settings: %v", err)
	}
	if got != usage.DefaultSettings() {
		t.Errorf("unexpected settings %+v", got)
	}
}

func TestMCPServer_ReadUsage_DaemonDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	s := NewServer(ts.URL, "test")
	_, err := s.handleReadUsage(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: URIUsage},
	})
	if err == nil {
		t.Fatal("expected error when the daemon is unreachable")
	}
}

func TestMCPServer_Refresh(t *testing.T) {
	daemon := newFakeDaemon()
	ts := httptest.NewServer(daemon)
	defer ts.Close()
	s := NewServer(ts.URL, "test")

	result, err := s.handleRefresh(context.Background(), toolRequest("refresh_usage", nil))
	if err != nil {
		t.Fatalf("handleRefresh failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("Expected success, got error: %s", resultText(t, result))
	}
	if got := resultText(t, result); got != "Session: 85%\nWeekly: 60%" {
		t.Errorf("unexpected summary %q", got)
	}

	daemon.mu.Lock()
	daemon.refresh = `{"success":false,"error":"failed to fetch usage: HTTP 403"}`
	daemon.mu.Unlock()

	result, err = s.handleRefresh(context.Background(), toolRequest("refresh_usage", nil))
	if err != nil {
		t.Fatalf("handleRefresh failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for a failed fetch")
	}
}

func TestMCPServer_SetThreshold(t *testing.T) {
	daemon := newFakeDaemon()
	ts := httptest.NewServer(daemon)
	defer ts.Close()
	s := NewServer(ts.URL, "test")

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"weekly", map[string]any{"quota": "weekly", "value": 90}, false},
		{"out of range", map[string]any{"quota": "session", "value": 150}, true},
		{"unknown quota", map[string]any{"quota": "daily", "value": 50}, true},
		{"missing value", map[string]any{"quota": "session"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleSetThreshold(context.Background(), toolRequest("set_threshold", tt.args))
			if err != nil {
				t.Fatalf("handleSetThreshold failed: %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (%s)", result.IsError, tt.wantErr, resultText(t, result))
			}
		})
	}

	daemon.mu.Lock()
	defer daemon.mu.Unlock()
	if daemon.settings.WeeklyThreshold != 90 || !daemon.settings.ThresholdEnabled {
		t.Errorf("settings not updated: %+v", daemon.settings)
	}
	if daemon.settings.SessionThreshold != 80 {
		t.Errorf("rejected calls must not change settings: %+v", daemon.settings)
	}
}

func TestMCPServer_TestNotification(t *testing.T) {
	daemon := newFakeDaemon()
	daemon.testNotif = `{"success":false,"error":"no cached usage"}`
	ts := httptest.NewServer(daemon)
	defer ts.Close()

	result, err := NewServer(ts.URL, "test").handleTestNotification(context.Background(), toolRequest("test_notification", nil))
	if err != nil {
		t.Fatalf("handleTestNotification failed: %v", err)
	}
	if !result.IsError || resultText(t, result) != "no cached usage" {
		t.Errorf("expected no cached usage error, got %+v", result)
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s := NewServer("", "test")
	req := mcp.GetPromptRequest{}
	req.Params.Name = promptName
	res, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Errorf("expected one prompt message, got %d", len(res.Messages))
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("expected error for unknown prompt")
	}
}
