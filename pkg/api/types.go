package api

import (
	"encoding/json"

	"github.com/rmax-ai/usagewatch/pkg/engine"
	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// SettingsRequest matches the POST /v1/settings body. Settings is kept raw so
// fields missing from an older client fall back to the defaults.
type SettingsRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// ActionResponse is the body for POST /v1/refresh, /v1/settings and
// /v1/test-notification.
type ActionResponse struct {
	Success bool            `json:"success"`
	Usage   *usage.Snapshot `json:"usage,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SettingsResponse matches GET /v1/settings.
type SettingsResponse struct {
	Settings usage.Settings `json:"settings"`
}

// BadgeResponse matches GET /v1/badge.
type BadgeResponse struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// NotificationsResponse matches GET /v1/notifications, newest last.
type NotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

// ScheduleResponse is one entry of GET /v1/schedules.
type ScheduleResponse struct {
	Name          string `json:"name"`
	PeriodSeconds int64  `json:"period_seconds"`
}

// ErrorResponse is the body of every non-2xx reply that is not an action.
type ErrorResponse struct {
	Error string `json:"error"`
}

func actionFrom(resp engine.Response) ActionResponse {
	return ActionResponse{Success: resp.Success, Usage: resp.Usage, Error: resp.Error}
}
