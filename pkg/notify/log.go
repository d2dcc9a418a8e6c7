package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDisplay writes badges and notifications as structured log lines.
type LogDisplay struct {
	logger zerolog.Logger
}

func NewLogDisplay(logger zerolog.Logger) *LogDisplay {
	return &LogDisplay{logger: logger.With().Str("component", "display").Logger()}
}

func (d *LogDisplay) SetBadge(_ context.Context, b Badge) error {
	if b.Cleared() {
		d.logger.Info().Msg("badge cleared")
		return nil
	}
	d.logger.Info().Str("text", b.Text).Str("color", b.Color).Msg("badge updated")
	return nil
}

func (d *LogDisplay) Notify(_ context.Context, n Notification) error {
	ev := d.logger.Info()
	if n.Priority >= PriorityThreshold {
		ev = d.logger.Warn()
	}
	ev.Str("id", n.ID).
		Str("kind", string(n.Kind)).
		Str("title", n.Title).
		Int("priority", n.Priority).
		Msg(n.Message)
	return nil
}
