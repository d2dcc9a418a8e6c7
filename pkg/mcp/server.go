package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/usagewatch/pkg/client"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

const (
	URIUsage    = "usage://current"
	URISettings = "usage://settings"

	promptName = "usage-aware"
)

// Server adapts usagewatch-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("usagewatch", version),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		URIUsage,
		"Current Usage",
		mcp.WithResourceDescription("Cached session and weekly utilization with reset times and the last fetch error"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadUsage)

	s.mcpServer.AddResource(mcp.NewResource(
		URISettings,
		"Notification Settings",
		mcp.WithResourceDescription("Badge mode, periodic notification and threshold alert settings"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadSettings)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"refresh_usage",
		mcp.WithDescription("Fetch usage now and return the new snapshot."),
	), s.handleRefresh)

	s.mcpServer.AddTool(mcp.NewTool(
		"set_threshold",
		mcp.WithDescription("Set the alert threshold for one quota and enable threshold alerts."),
		mcp.WithString("quota", mcp.Required(), mcp.Enum(string(usage.QuotaSession), string(usage.QuotaWeekly)), mcp.Description("Which quota to change")),
		mcp.WithNumber("value", mcp.Required(), mcp.Min(0), mcp.Max(100), mcp.Description("Threshold in percent")),
		mcp.WithBoolean("enable", mcp.Description("Turn threshold alerts on (default true)")),
	), s.handleSetThreshold)

	s.mcpServer.AddTool(mcp.NewTool(
		"test_notification",
		mcp.WithDescription("Show a usage summary notification built from the cached snapshot."),
	), s.handleTestNotification)
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		promptName,
		mcp.WithPromptDescription("Explains the session and weekly quotas and how alerts fire"),
	), s.handleGetPrompt)
}

func (s *Server) handleReadUsage(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cached, err := s.apiClient.Usage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch usage: %w", err)
	}
	return jsonContents(request.Params.URI, cached)
}

func (s *Server) handleReadSettings(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	settings, err := s.apiClient.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return jsonContents(request.Params.URI, settings)
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.apiClient.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText(summarize(res.Usage)), nil
}

func (s *Server) handleSetThreshold(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	quota := usage.QuotaName(mcp.ParseString(request, "quota", ""))
	value := mcp.ParseFloat64(request, "value", -1)
	enable := mcp.ParseBoolean(request, "enable", true)

	if value < 0 || value > 100 {
		return mcp.NewToolResultError("value must be within 0-100"), nil
	}

	settings, err := s.apiClient.Settings(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	switch quota {
	case usage.QuotaSession:
		settings.SessionThreshold = int(value)
	case usage.QuotaWeekly:
		settings.WeeklyThreshold = int(value)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown quota %q", quota)), nil
	}
	if enable {
		settings.ThresholdEnabled = true
	}

	res, err := s.apiClient.UpdateSettings(ctx, settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s threshold set to %d%% (alerts enabled: %t)",
		quota.Label(), int(value), settings.ThresholdEnabled)), nil
}

func (s *Server) handleTestNotification(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.apiClient.TestNotification(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText("Notification sent"), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != promptName {
		return nil, fmt.Errorf("prompt not found: %s", request.Params.Name)
	}

	promptText := `You can see the user's Claude usage through usagewatch.

Quotas:
- Session: a rolling five-hour window.
- Weekly: a seven-day window.
Each reports a utilization percentage and the time it resets.

Threshold alerts fire once when a quota crosses its threshold and again only
after it has dropped back below. Read usage://current before advising on
whether to start a long task, and use set_threshold when the user asks to be
warned earlier or later.
`

	return mcp.NewGetPromptResult(
		promptName,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// summarize renders one line per evaluated quota, e.g. "Session: 85%".
func summarize(snap *usage.Snapshot) string {
	if snap == nil {
		return "No usage data"
	}
	var lines []string
	for _, q := range []usage.QuotaName{usage.QuotaSession, usage.QuotaWeekly} {
		util, ok := snap.Quota(q).Util()
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d%%", q.Label(), notify.Round(util)))
	}
	if len(lines) == 0 {
		return "No usage data"
	}
	return strings.Join(lines, "\n")
}
