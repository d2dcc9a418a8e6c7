package usage

import "time"

// QuotaName identifies one independently tracked usage window.
type QuotaName string

const (
	QuotaSession         QuotaName = "session"
	QuotaWeekly          QuotaName = "weekly"
	QuotaWeeklySecondary QuotaName = "weekly_secondary"
)

// Label returns the capitalised name used in notification text.
func (q QuotaName) Label() string {
	switch q {
	case QuotaSession:
		return "Session"
	case QuotaWeekly:
		return "Weekly"
	case QuotaWeeklySecondary:
		return "Weekly (Sonnet)"
	default:
		return string(q)
	}
}

// Quota is a single usage window as reported by the provider.
// A nil Utilization or ResetsAt means the provider did not report it.
type Quota struct {
	Utilization *float64   `json:"utilization"`
	ResetsAt    *time.Time `json:"resets_at"`
}

// Util returns the utilization percentage and whether it was reported.
func (q *Quota) Util() (float64, bool) {
	if q == nil || q.Utilization == nil {
		return 0, false
	}
	return *q.Utilization, true
}

// Reset returns the reset instant, or nil when unknown.
func (q *Quota) Reset() *time.Time {
	if q == nil {
		return nil
	}
	return q.ResetsAt
}

// Snapshot is one usage reading. It mirrors the provider payload so it can be
// cached and served back unchanged.
type Snapshot struct {
	FiveHour       *Quota `json:"five_hour,omitempty"`
	SevenDay       *Quota `json:"seven_day,omitempty"`
	SevenDaySonnet *Quota `json:"seven_day_sonnet,omitempty"`
}

// Quota returns the window backing the named quota.
func (s Snapshot) Quota(name QuotaName) *Quota {
	switch name {
	case QuotaSession:
		return s.FiveHour
	case QuotaWeekly:
		return s.SevenDay
	case QuotaWeeklySecondary:
		return s.SevenDaySonnet
	default:
		return nil
	}
}

// Float is a convenience for building quotas in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Time is a convenience for building quotas in code and tests.
func Time(t time.Time) *time.Time {
	return &t
}
