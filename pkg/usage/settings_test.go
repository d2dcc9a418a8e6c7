package usage

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMergeSettings_Empty(t *testing.T) {
	s, err := MergeSettings(nil)
	if err != nil {
		t.Fatalf("MergeSettings failed: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestMergeSettings_OlderRecordKeepsDefaults(t *testing.T) {
	// Records written before badgeDisplay existed.
	raw := []byte(`{"periodicEnabled":true,"periodicInterval":30,"sessionThreshold":90}`)

	s, err := MergeSettings(raw)
	if err != nil {
		t.Fatalf("MergeSettings failed: %v", err)
	}
	if s.BadgeDisplay != BadgeSession {
		t.Errorf("expected default badge display, got %q", s.BadgeDisplay)
	}
	if !s.PeriodicEnabled || s.PeriodicIntervalMinutes != 30 {
		t.Errorf("expected periodic 30m enabled, got %+v", s)
	}
	if s.SessionThreshold != 90 {
		t.Errorf("expected session threshold 90, got %d", s.SessionThreshold)
	}
	if s.WeeklyThreshold != 80 {
		t.Errorf("expected default weekly threshold 80, got %d", s.WeeklyThreshold)
	}
	if s.ThresholdCheckIntervalMinutes != DefaultThresholdCheckInterval {
		t.Errorf("expected default check interval, got %d", s.ThresholdCheckIntervalMinutes)
	}
}

func TestMergeSettings_RoundTrip(t *testing.T) {
	in := Settings{
		BadgeDisplay:                  BadgeWeekly,
		PeriodicEnabled:               true,
		PeriodicIntervalMinutes:       15,
		ThresholdEnabled:              true,
		ThresholdCheckIntervalMinutes: 5,
		SessionThreshold:              0,
		WeeklyThreshold:               100,
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	out, err := MergeSettings(raw)
	if err != nil {
		t.Fatalf("MergeSettings failed: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestMergeSettings_InvalidJSON(t *testing.T) {
	s, err := MergeSettings([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if s != DefaultSettings() {
		t.Errorf("expected defaults on error, got %+v", s)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Settings)
		errorSubstr string
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "weekly badge", mutate: func(s *Settings) { s.BadgeDisplay = BadgeWeekly }},
		{name: "bad badge", mutate: func(s *Settings) { s.BadgeDisplay = "monthly" }, errorSubstr: "badgeDisplay"},
		{name: "zero periodic", mutate: func(s *Settings) { s.PeriodicIntervalMinutes = 0 }, errorSubstr: "periodicInterval"},
		{name: "zero check", mutate: func(s *Settings) { s.ThresholdCheckIntervalMinutes = 0 }, errorSubstr: "thresholdCheckInterval"},
		{name: "session above 100", mutate: func(s *Settings) { s.SessionThreshold = 101 }, errorSubstr: "sessionThreshold"},
		{name: "weekly negative", mutate: func(s *Settings) { s.WeeklyThreshold = -1 }, errorSubstr: "weeklyThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.errorSubstr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorSubstr) {
				t.Errorf("expected error containing %q, got %v", tt.errorSubstr, err)
			}
		})
	}
}
