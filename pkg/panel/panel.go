// Package panel turns a cached usage result into the text shown by the
// terminal panel and the CLI status command.
package panel

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

const (
	LoginMessage   = "Please log in to claude.ai to view your usage"
	NoDataMessage  = "No usage data available"
	UnknownMessage = "Unknown error occurred"
	SonnetUnused   = "You haven't used Sonnet yet"
)

// Level is the severity band of a utilization value.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelDanger
)

// LevelFor uses the same breakpoints as the badge.
func LevelFor(util float64) Level {
	switch {
	case util >= 80:
		return LevelDanger
	case util >= 50:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Row is one quota line.
type Row struct {
	Quota   usage.QuotaName
	Label   string
	Percent float64
	// Fill is Percent capped to 0..1 for progress bars.
	Fill   float64
	Used   string
	Status string
	Level  Level
}

// View is everything the panel renders.
type View struct {
	Rows        []Row
	Error       string
	Warning     string
	LastUpdated string
}

// Build renders cached. A cached error hides the rows only when there is no
// snapshot to show.
func Build(cached usage.CachedResult, now time.Time, loc *time.Location) View {
	if loc == nil {
		loc = time.Local
	}
	var v View
	if cached.LastFetch != nil {
		v.LastUpdated = "Last updated: " + LastUpdated(cached.LastFetch, now)
	}

	if cached.Usage == nil {
		if cached.Error != "" {
			v.Error = FriendlyError(cached.Error)
		} else {
			v.Error = NoDataMessage
		}
		return v
	}
	if cached.Error != "" {
		v.Warning = FriendlyError(cached.Error)
	}

	snap := cached.Usage
	if q := snap.FiveHour; q != nil {
		v.Rows = append(v.Rows, row(usage.QuotaSession, "Current session", q, TimeUntil(q.ResetsAt, now)))
	}
	if q := snap.SevenDay; q != nil {
		v.Rows = append(v.Rows, row(usage.QuotaWeekly, "Weekly limits", q, WeeklyReset(q.ResetsAt, loc)))
	}
	if q := snap.SevenDaySonnet; q != nil {
		util, _ := q.Util()
		status := WeeklyReset(q.ResetsAt, loc)
		if util == 0 && q.ResetsAt == nil {
			status = SonnetUnused
		}
		v.Rows = append(v.Rows, row(usage.QuotaWeeklySecondary, "Sonnet only", q, status))
	}
	return v
}

func row(name usage.QuotaName, label string, q *usage.Quota, status string) Row {
	util, _ := q.Util()
	return Row{
		Quota:   name,
		Label:   label,
		Percent: util,
		Fill:    math.Max(0, math.Min(util, 100)) / 100,
		Used:    fmt.Sprintf("%d%% used", int(math.Floor(util+0.5))),
		Status:  status,
		Level:   LevelFor(util),
	}
}

// TimeUntil renders the time left before a session reset.
func TimeUntil(t *time.Time, now time.Time) string {
	if t == nil {
		return "--"
	}
	d := t.Sub(now)
	if d <= 0 {
		return "Resetting..."
	}

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	if hours > 24 {
		days := hours / 24
		if days > 1 {
			return fmt.Sprintf("Resets in %d days", days)
		}
		return "Resets in 1 day"
	}
	if hours > 0 {
		return fmt.Sprintf("Resets in %d hr %d min", hours, minutes)
	}
	return fmt.Sprintf("Resets in %d min", minutes)
}

// WeeklyReset renders an absolute reset such as "Resets Fri 11:30 PM".
func WeeklyReset(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "Resets --"
	}
	return "Resets " + t.In(loc).Format("Mon 3:04 PM")
}

// LastUpdated renders how long ago a fetch happened.
func LastUpdated(t *time.Time, now time.Time) string {
	if t == nil {
		return "Never"
	}
	minutes := int(now.Sub(*t) / time.Minute)

	switch {
	case minutes < 1:
		return "less than a minute ago"
	case minutes == 1:
		return "1 minute ago"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	}

	hours := minutes / 60
	switch {
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return "over a day ago"
	}
}

// FriendlyError replaces authentication failures with a login hint.
func FriendlyError(msg string) string {
	if msg == "" {
		return UnknownMessage
	}
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		return LoginMessage
	}
	return msg
}
