package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/usagewatch/pkg/client"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/panel"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

const (
	pollRate       = 5 * time.Second
	requestTimeout = 30 * time.Second
	barWidth       = 40
	viewportHeight = 8
	paneWidth      = 72
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorRed))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorYellow))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(notify.ColorTeal)).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(paneWidth)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(paneWidth)

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("255"))
)

type tickMsg time.Time

type dataMsg struct {
	cached        usage.CachedResult
	badge         client.Badge
	notifications []notify.Notification
	err           error
}

type actionMsg struct {
	label string
	res   client.Result
	err   error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	bars     map[panel.Level]progress.Model

	cached        usage.CachedResult
	badge         client.Badge
	notifications []notify.Notification
	status        string
	busy          bool
	err           error
	ready         bool
	now           func() time.Time
}

func newBar(color string) progress.Model {
	return progress.New(
		progress.WithSolidFill(color),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(notify.ColorTeal))

	vp := viewport.New(paneWidth, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	return model{
		api:      api,
		spinner:  s,
		viewport: vp,
		bars: map[panel.Level]progress.Model{
			panel.LevelNormal:  newBar(notify.ColorTeal),
			panel.LevelWarning: newBar(notify.ColorYellow),
			panel.LevelDanger:  newBar(notify.ColorRed),
		},
		now: time.Now,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.busy {
				m.busy = true
				m.status = "Refreshing..."
				return m, runAction("Refresh", func(ctx context.Context) (client.Result, error) {
					return m.api.Refresh(ctx)
				})
			}
			return m, nil
		case "t":
			if !m.busy {
				m.busy = true
				m.status = "Sending test notification..."
				return m, runAction("Test notification", func(ctx context.Context) (client.Result, error) {
					return m.api.TestNotification(ctx)
				})
			}
			return m, nil
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.cached = msg.cached
			m.badge = msg.badge
			m.notifications = msg.notifications
			m.updateViewportContent()
		}
		m.ready = true

	case actionMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = errorStyle.Render(fmt.Sprintf("%s failed: %v", msg.label, msg.err))
		case !msg.res.Success:
			m.status = errorStyle.Render(fmt.Sprintf("%s failed: %s", msg.label, panel.FriendlyError(msg.res.Error)))
		default:
			m.status = okStyle.Render(msg.label + " done")
		}
		cmds = append(cmds, fetchData(m.api))

	case tea.WindowSizeMsg:
		m.viewport.Width = min(msg.Width, paneWidth)
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder
	if len(m.notifications) == 0 {
		sb.WriteString(subtleStyle.Render("No notifications yet."))
	}
	// Newest first.
	for i := len(m.notifications) - 1; i >= 0; i-- {
		n := m.notifications[i]
		title := labelStyle.Render(n.Title)
		if n.Priority >= notify.PriorityThreshold {
			title = errorStyle.Render(n.Title)
		}
		fmt.Fprintf(&sb, "%s %s\n%s\n\n",
			subtleStyle.Render(n.CreatedAt.Local().Format("15:04:05")),
			title,
			n.Message)
	}
	m.viewport.SetContent(sb.String())
}

func (m model) renderBadge() string {
	if m.badge.Text == "" {
		return subtleStyle.Render("[no badge]")
	}
	return badgeStyle.Background(lipgloss.Color(m.badge.Color)).Render(m.badge.Text)
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to %s...", m.spinner.View(), m.api.Endpoint())
	}

	v := panel.Build(m.cached, m.now(), time.Local)

	var top strings.Builder
	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Claude Usage") + "  " + m.renderBadge() + "\n\n")
	if v.Error != "" {
		top.WriteString(errorStyle.Render(v.Error) + "\n")
	}
	for _, r := range v.Rows {
		bar := m.bars[r.Level]
		fmt.Fprintf(&top, "%s  %s\n%s  %s\n\n",
			labelStyle.Render(r.Label),
			subtleStyle.Render(r.Status),
			bar.ViewAs(r.Fill),
			r.Used)
	}
	if v.Warning != "" {
		top.WriteString(warnStyle.Render(v.Warning) + "\n")
	}
	if v.LastUpdated != "" {
		top.WriteString(subtleStyle.Render(v.LastUpdated))
	}

	header := headerStyle.Render(fmt.Sprintf("%s Notifications", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %s", m.api.Endpoint()))
	}
	if m.status != "" {
		status += "  " + m.status
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nr refresh • t test notification • q quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, paneStyle.Render(top.String()), header, m.viewport.View(), footer)
}

// Commands

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		cached, err := api.Usage(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		badge, err := api.Badge(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		notes, err := api.Notifications(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{cached: cached, badge: badge, notifications: notes}
	}
}

func runAction(label string, fn func(ctx context.Context) (client.Result, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := fn(ctx)
		return actionMsg{label: label, res: res, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	var endpoint string
	root := &cobra.Command{
		Use:           "usagewatch-tui",
		Short:         "Terminal panel for usagewatch-d",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(initialModel(client.NewClient(endpoint)), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}

	defaultEndpoint := os.Getenv("USAGEWATCH_ENDPOINT")
	if defaultEndpoint == "" {
		defaultEndpoint = client.DefaultEndpoint
	}
	root.Flags().StringVarP(&endpoint, "endpoint", "e", defaultEndpoint, "usagewatch-d API endpoint")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
