package panel

import (
	"testing"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

var now = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestTimeUntil(t *testing.T) {
	tests := []struct {
		in   *time.Time
		want string
	}{
		{nil, "--"},
		{at(-time.Second), "Resetting..."},
		{at(0), "Resetting..."},
		{at(59 * time.Second), "Resets in 0 min"},
		{at(42 * time.Minute), "Resets in 42 min"},
		{at(3*time.Hour + 5*time.Minute), "Resets in 3 hr 5 min"},
		{at(24*time.Hour + 30*time.Minute), "Resets in 24 hr 30 min"},
		{at(25 * time.Hour), "Resets in 1 day"},
		{at(72 * time.Hour), "Resets in 3 days"},
	}
	for _, tt := range tests {
		if got := TimeUntil(tt.in, now); got != tt.want {
			t.Errorf("TimeUntil(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWeeklyReset(t *testing.T) {
	if got := WeeklyReset(nil, time.UTC); got != "Resets --" {
		t.Errorf("unexpected %q", got)
	}
	if got := WeeklyReset(at(72*time.Hour+30*time.Minute), time.UTC); got != "Resets Sat 12:30 PM" {
		t.Errorf("unexpected %q", got)
	}
}

func TestLastUpdated(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "less than a minute ago"},
		{time.Minute, "1 minute ago"},
		{59 * time.Minute, "59 minutes ago"},
		{61 * time.Minute, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{25 * time.Hour, "over a day ago"},
	}
	for _, tt := range tests {
		if got := LastUpdated(at(-tt.ago), now); got != tt.want {
			t.Errorf("LastUpdated(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if LastUpdated(nil, now) != "Never" {
		t.Error("expected Never for nil")
	}
}

func TestFriendlyError(t *testing.T) {
	tests := map[string]string{
		"failed to fetch usage: HTTP 403":         LoginMessage,
		"failed to fetch organizations: HTTP 401": LoginMessage,
		"failed to fetch usage: HTTP 500":         "failed to fetch usage: HTTP 500",
		"":                                        UnknownMessage,
	}
	for in, want := range tests {
		if got := FriendlyError(in); got != want {
			t.Errorf("FriendlyError(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuild(t *testing.T) {
	fetched := now.Add(-5 * time.Minute)
	cached := usage.CachedResult{
		Usage: &usage.Snapshot{
			FiveHour:       &usage.Quota{Utilization: usage.Float(85), ResetsAt: at(time.Hour)},
			SevenDay:       &usage.Quota{Utilization: usage.Float(120)},
			SevenDaySonnet: &usage.Quota{Utilization: usage.Float(0)},
		},
		LastFetch: &fetched,
		Error:     "failed to fetch usage: HTTP 403",
	}

	v := Build(cached, now, time.UTC)
	if v.Error != "" {
		t.Errorf("rows should show when a snapshot exists, got error %q", v.Error)
	}
	if v.Warning != LoginMessage {
		t.Errorf("expected login warning, got %q", v.Warning)
	}
	if v.LastUpdated != "Last updated: 5 minutes ago" {
		t.Errorf("unexpected last updated %q", v.LastUpdated)
	}
	if len(v.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(v.Rows))
	}

	session := v.Rows[0]
	if session.Used != "85% used" || session.Status != "Resets in 1 hr 0 min" || session.Level != LevelDanger {
		t.Errorf("unexpected session row %+v", session)
	}
	weekly := v.Rows[1]
	if weekly.Fill != 1 || weekly.Used != "120% used" || weekly.Status != "Resets --" {
		t.Errorf("unexpected weekly row %+v", weekly)
	}
	if v.Rows[2].Status != SonnetUnused || v.Rows[2].Level != LevelNormal {
		t.Errorf("unexpected sonnet row %+v", v.Rows[2])
	}
}

func TestBuild_NoSnapshot(t *testing.T) {
	v := Build(usage.CachedResult{Error: "failed to fetch organizations: HTTP 403"}, now, time.UTC)
	if v.Error != LoginMessage || len(v.Rows) != 0 {
		t.Errorf("expected login error and no rows, got %+v", v)
	}

	v = Build(usage.CachedResult{}, now, time.UTC)
	if v.Error != NoDataMessage || v.LastUpdated != "" {
		t.Errorf("expected empty state, got %+v", v)
	}
}

func TestLevelFor(t *testing.T) {
	if LevelFor(49) != LevelNormal || LevelFor(50) != LevelWarning || LevelFor(79) != LevelWarning || LevelFor(80) != LevelDanger {
		t.Error("level breakpoints must match the badge")
	}
}
