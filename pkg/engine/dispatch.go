package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// EventKind names a trigger delivered to Dispatch.
type EventKind string

const (
	EventInstall          EventKind = "install"
	EventStartup          EventKind = "startup"
	EventAlarm            EventKind = "alarm"
	EventRefresh          EventKind = "refresh"
	EventSettingsUpdated  EventKind = "settingsUpdated"
	EventGetUsage         EventKind = "getUsage"
	EventTestNotification EventKind = "testNotification"
)

// Event is one trigger. Alarm is set for EventAlarm and Settings for
// EventSettingsUpdated.
type Event struct {
	Kind     EventKind
	Alarm    string
	Settings *usage.Settings
}

// Response is returned to whoever delivered the event.
type Response struct {
	Success bool            `json:"success"`
	Usage   *usage.Snapshot `json:"usage,omitempty"`
	Error   string          `json:"error,omitempty"`
	// Cached is set for EventGetUsage.
	Cached *usage.CachedResult `json:"cached,omitempty"`
}

// ErrNoCachedUsage is reported by a test notification before the first
// successful fetch.
var ErrNoCachedUsage = errors.New("no cached usage")

// Dispatch is the single entry point for every trigger. It runs the event
// to completion before returning.
func (o *Orchestrator) Dispatch(ctx context.Context, ev Event) Response {
	switch ev.Kind {
	case EventInstall:
		return o.install(ctx)
	case EventStartup:
		return o.startup(ctx)
	case EventAlarm:
		return o.alarm(ctx, ev.Alarm)
	case EventRefresh:
		return fromResult(o.Run(ctx, RunOptions{Trigger: string(EventRefresh)}))
	case EventSettingsUpdated:
		if ev.Settings == nil {
			return Response{Error: "settings are required"}
		}
		return o.updateSettings(ctx, *ev.Settings)
	case EventGetUsage:
		return o.getUsage(ctx)
	case EventTestNotification:
		return o.testNotification(ctx)
	default:
		return Response{Error: fmt.Sprintf("unknown event %q", ev.Kind)}
	}
}

// HandleAlarm adapts Dispatch to the scheduler callback.
func (o *Orchestrator) HandleAlarm(ctx context.Context, name string) {
	o.Dispatch(ctx, Event{Kind: EventAlarm, Alarm: name})
}

func fromResult(r Result) Response {
	return Response{Success: r.Success, Usage: r.Usage, Error: r.Error}
}

// install writes default settings unless some already exist, re-arms every
// alert, fetches, and configures schedules from the effective settings.
func (o *Orchestrator) install(ctx context.Context) Response {
	settings, err := o.state.InitSettings(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to initialise settings")
	}
	if err := o.state.ResetAlertState(ctx); err != nil {
		o.logger.Error().Err(err).Msg("failed to reset alert state")
	}
	if err := o.state.MarkInstalled(ctx, o.now()); err != nil {
		o.logger.Error().Err(err).Msg("failed to record install")
	}

	res := o.Run(ctx, RunOptions{Trigger: string(EventInstall)})
	o.scheduler.Configure(settings)
	return fromResult(res)
}

func (o *Orchestrator) startup(ctx context.Context) Response {
	res := o.Run(ctx, RunOptions{Trigger: string(EventStartup)})

	settings, err := o.state.LoadSettings(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to load settings, using defaults")
	}
	o.scheduler.Configure(settings)
	return fromResult(res)
}

func (o *Orchestrator) alarm(ctx context.Context, name string) Response {
	switch name {
	case AlarmPeriodic:
		return fromResult(o.Run(ctx, RunOptions{Trigger: name, Periodic: true}))
	case AlarmThreshold:
		return fromResult(o.Run(ctx, RunOptions{Trigger: name, Threshold: true}))
	default:
		o.logger.Warn().Str("alarm", name).Msg("ignoring unknown alarm")
		return Response{Error: fmt.Sprintf("unknown alarm %q", name)}
	}
}

// updateSettings saves next, replaces the schedules and re-renders the badge
// from the cached snapshot. While threshold alerting is enabled every save is
// followed by an immediate threshold run, so a lowered threshold alerts at
// once. Enabling periodic notifications does not trigger a fetch.
func (o *Orchestrator) updateSettings(ctx context.Context, next usage.Settings) Response {
	next.ThresholdCheckIntervalMinutes = usage.DefaultThresholdCheckInterval
	if err := next.Validate(); err != nil {
		return Response{Error: err.Error()}
	}

	if err := o.state.SaveSettings(ctx, next); err != nil {
		o.logger.Error().Err(err).Msg("failed to save settings")
		return Response{Error: fmt.Sprintf("save settings: %v", err)}
	}

	o.scheduler.Configure(next)

	cached, err := o.state.CachedResult(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("failed to read cached usage")
	} else if cached.Usage != nil {
		o.setBadge(ctx, o.logger, *cached.Usage, next.BadgeDisplay)
	}

	if next.ThresholdEnabled {
		o.Run(ctx, RunOptions{Trigger: string(EventSettingsUpdated), Threshold: true})
	}

	return Response{Success: true}
}

func (o *Orchestrator) getUsage(ctx context.Context) Response {
	cached, err := o.state.CachedResult(ctx)
	if err != nil {
		return Response{Error: fmt.Sprintf("read cached usage: %v", err)}
	}
	return Response{Success: true, Usage: cached.Usage, Cached: &cached}
}

// testNotification sends a periodic-style notification from the cached
// snapshot. No state is written.
func (o *Orchestrator) testNotification(ctx context.Context) Response {
	cached, err := o.state.CachedResult(ctx)
	if err != nil {
		return Response{Error: fmt.Sprintf("read cached usage: %v", err)}
	}
	if cached.Usage == nil {
		return Response{Error: ErrNoCachedUsage.Error()}
	}
	o.deliver(ctx, o.logger, o.composer.PeriodicNotification(*cached.Usage))
	return Response{Success: true, Usage: cached.Usage}
}
