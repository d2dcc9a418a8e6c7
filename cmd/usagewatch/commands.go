package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/usagewatch/pkg/mcp"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/panel"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(16)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorRed))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorYellow))
	normalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorTeal))
)

func levelStyle(l panel.Level) lipgloss.Style {
	switch l {
	case panel.LevelDanger:
		return errorStyle
	case panel.LevelWarning:
		return warningStyle
	default:
		return normalStyle
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			c := newClient()
			cached, err := c.Usage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read usage: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cached)
			}
			renderStatus(cmd.OutOrStdout(), panel.Build(cached, time.Now(), time.Local))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cached result as JSON")
	return cmd
}

func renderStatus(w io.Writer, v panel.View) {
	if v.Error != "" {
		fmt.Fprintln(w, errorStyle.Render(v.Error))
	}
	for _, r := range v.Rows {
		fmt.Fprintf(w, "%s %s  %s\n",
			labelStyle.Render(r.Label),
			levelStyle(r.Level).Render(r.Used),
			subtleStyle.Render(r.Status))
	}
	if v.Warning != "" {
		fmt.Fprintln(w, warningStyle.Render(v.Warning))
	}
	if v.LastUpdated != "" {
		fmt.Fprintln(w, subtleStyle.Render(v.LastUpdated))
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch usage now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			res, err := newClient().Refresh(ctx)
			if err != nil {
				return err
			}
			if !res.Success {
				return errors.New(panel.FriendlyError(res.Error))
			}
			renderStatus(cmd.OutOrStdout(), panel.Build(usage.CachedResult{Usage: res.Usage}, time.Now(), time.Local))
			return nil
		},
	}
}

func newTestNotificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notification",
		Short: "Send a usage summary notification from the cached snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			res, err := newClient().TestNotification(ctx)
			if err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Notification sent")
			return nil
		},
	}
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve usage resources and tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcp.NewServer(endpoint, Version).Serve()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
