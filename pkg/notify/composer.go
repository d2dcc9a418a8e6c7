package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// Badge colors.
const (
	ColorRed    = "#ef4444"
	ColorYellow = "#eab308"
	ColorTeal   = "#0891b2"
)

const (
	TitlePeriodic  = "Claude Usage Update"
	TitleThreshold = "Claude Usage Alert"
	Icon           = "icons/icon128.png"

	PriorityPeriodic  = 1
	PriorityThreshold = 2
)

// weeklyLayout renders e.g. "Fri 11:30 PM".
const weeklyLayout = "Mon 3:04 PM"

// Composer formats snapshots for display. It has no side effects.
type Composer struct {
	loc *time.Location
	now func() time.Time
}

// NewComposer renders absolute times in loc (time.Local when nil).
func NewComposer(loc *time.Location) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{loc: loc, now: time.Now}
}

// WithClock overrides the clock used for relative durations.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

// Round rounds half up, so 84.5 becomes 85 and -0.5 becomes 0.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Color maps a utilization to its badge color. Breakpoints are fixed.
func Color(util float64) string {
	switch {
	case util >= 80:
		return ColorRed
	case util >= 50:
		return ColorYellow
	default:
		return ColorTeal
	}
}

// Badge selects the quota named by mode and renders it.
func (c *Composer) Badge(snap usage.Snapshot, mode usage.BadgeDisplay) Badge {
	q := usage.QuotaSession
	if mode == usage.BadgeWeekly {
		q = usage.QuotaWeekly
	}
	util, ok := snap.Quota(q).Util()
	if !ok {
		return Badge{}
	}
	return Badge{
		Text:  fmt.Sprintf("%d", Round(util)),
		Color: Color(util),
	}
}

// PeriodicMessage renders the two-line summary. Missing utilization shows as 0.
func (c *Composer) PeriodicMessage(snap usage.Snapshot) string {
	sessionUtil, _ := snap.Quota(usage.QuotaSession).Util()
	weeklyUtil, _ := snap.Quota(usage.QuotaWeekly).Util()

	var b strings.Builder
	fmt.Fprintf(&b, "Session: %d%%", Round(sessionUtil))
	if rel := c.relative(snap.Quota(usage.QuotaSession).Reset()); rel != "" {
		fmt.Fprintf(&b, " (resets in %s)", rel)
	}
	fmt.Fprintf(&b, "\nWeekly: %d%%", Round(weeklyUtil))
	if abs := c.absolute(snap.Quota(usage.QuotaWeekly).Reset()); abs != "" {
		fmt.Fprintf(&b, " (resets %s)", abs)
	}
	return b.String()
}

// ThresholdMessage renders a single crossing.
func (c *Composer) ThresholdMessage(q usage.QuotaName, util float64, threshold int) string {
	return fmt.Sprintf("%s usage at %d%% (threshold: %d%%)", q.Label(), Round(util), threshold)
}

// PeriodicNotification wraps PeriodicMessage as a low-priority update.
func (c *Composer) PeriodicNotification(snap usage.Snapshot) Notification {
	return c.notification(KindPeriodic, TitlePeriodic, c.PeriodicMessage(snap), PriorityPeriodic)
}

// ThresholdNotification wraps ThresholdMessage as a high-priority alert.
func (c *Composer) ThresholdNotification(q usage.QuotaName, util float64, threshold int) Notification {
	return c.notification(KindThreshold, TitleThreshold, c.ThresholdMessage(q, util, threshold), PriorityThreshold)
}

func (c *Composer) notification(kind Kind, title, msg string, priority int) Notification {
	return Notification{
		ID:        "usage-" + uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   msg,
		Icon:      Icon,
		Priority:  priority,
		CreatedAt: c.now(),
	}
}

// relative renders the time until t as "{H}h {M}m" or "{M}m".
func (c *Composer) relative(t *time.Time) string {
	if t == nil {
		return ""
	}
	d := t.Sub(c.now())
	if d <= 0 {
		return "resetting soon"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func (c *Composer) absolute(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(c.loc).Format(weeklyLayout)
}
