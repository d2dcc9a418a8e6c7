// Package notify turns usage snapshots into badge and notification payloads
// and delivers them to one or more displays.
package notify

import (
	"context"
	"time"
)

// Kind distinguishes the two user-visible notification types.
type Kind string

const (
	KindPeriodic  Kind = "periodic"
	KindThreshold Kind = "threshold"
)

// Notification is a single user-visible message.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Badge is the compact indicator. An empty Text clears it and Color is
// then meaningless.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Cleared reports whether the badge should be hidden.
func (b Badge) Cleared() bool {
	return b.Text == ""
}

// Display is the delivery surface for badges and notifications.
type Display interface {
	SetBadge(ctx context.Context, b Badge) error
	Notify(ctx context.Context, n Notification) error
}
