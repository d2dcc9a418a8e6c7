package client

import (
	"fmt"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// Result is the reply to an action: refresh, settings update or test
// notification. A failed upstream fetch is a Result with Success false,
// not a Go error.
type Result struct {
	Success bool            `json:"success"`
	Usage   *usage.Snapshot `json:"usage,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Status is the daemon health reply.
type Status struct {
	Status string `json:"status"`
}

// Badge is the text and color currently shown.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Schedule is one active alarm.
type Schedule struct {
	Name          string `json:"name"`
	PeriodSeconds int64  `json:"period_seconds"`
}

func (s Schedule) Period() time.Duration {
	return time.Duration(s.PeriodSeconds) * time.Second
}

type settingsEnvelope struct {
	Settings usage.Settings `json:"settings"`
}

type notificationsEnvelope struct {
	Notifications []notify.Notification `json:"notifications"`
}

// APIError is returned for replies the daemon marks as failed outside the
// action contract.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}
