package usage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BadgeDisplay selects which quota drives the badge.
type BadgeDisplay string

const (
	BadgeSession BadgeDisplay = "session"
	BadgeWeekly  BadgeDisplay = "weekly"
)

// DefaultThresholdCheckInterval is the fixed cadence of threshold checks, in minutes.
const DefaultThresholdCheckInterval = 5

// Settings is the user-configured record kept in the synced scope.
// JSON names match the record written by earlier clients.
type Settings struct {
	BadgeDisplay                  BadgeDisplay `json:"badgeDisplay"`
	PeriodicEnabled               bool         `json:"periodicEnabled"`
	PeriodicIntervalMinutes       int          `json:"periodicInterval"`
	ThresholdEnabled              bool         `json:"thresholdEnabled"`
	ThresholdCheckIntervalMinutes int          `json:"thresholdCheckInterval"`
	SessionThreshold              int          `json:"sessionThreshold"`
	WeeklyThreshold               int          `json:"weeklyThreshold"`
}

// DefaultSettings returns the settings written on first install.
func DefaultSettings() Settings {
	return Settings{
		BadgeDisplay:                  BadgeSession,
		PeriodicEnabled:               false,
		PeriodicIntervalMinutes:       60,
		ThresholdEnabled:              false,
		ThresholdCheckIntervalMinutes: DefaultThresholdCheckInterval,
		SessionThreshold:              80,
		WeeklyThreshold:               80,
	}
}

// MergeSettings overlays a stored record onto the defaults. Fields missing
// from raw keep their default value. An empty raw yields the defaults.
func MergeSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Threshold returns the configured threshold for a quota.
func (s Settings) Threshold(q QuotaName) (int, bool) {
	switch q {
	case QuotaSession:
		return s.SessionThreshold, true
	case QuotaWeekly:
		return s.WeeklyThreshold, true
	default:
		return 0, false
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch s.BadgeDisplay {
	case BadgeSession, BadgeWeekly:
	default:
		return fmt.Errorf("badgeDisplay must be %q or %q, got %q", BadgeSession, BadgeWeekly, s.BadgeDisplay)
	}
	if s.PeriodicIntervalMinutes <= 0 {
		return errors.New("periodicInterval must be positive")
	}
	if s.ThresholdCheckIntervalMinutes <= 0 {
		return errors.New("thresholdCheckInterval must be positive")
	}
	if s.SessionThreshold < 0 || s.SessionThreshold > 100 {
		return fmt.Errorf("sessionThreshold must be within 0-100, got %d", s.SessionThreshold)
	}
	if s.WeeklyThreshold < 0 || s.WeeklyThreshold > 100 {
		return fmt.Errorf("weeklyThreshold must be within 0-100, got %d", s.WeeklyThreshold)
	}
	return nil
}
