package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/notify"
	"github.com/rmax-ai/usagewatch/pkg/provider"
	"github.com/rmax-ai/usagewatch/pkg/usage"
	"github.com/rs/zerolog"
)

// StateStore is the persisted state the orchestrator reads and writes.
// store.State implements it.
type StateStore interface {
	LoadSettings(ctx context.Context) (usage.Settings, error)
	SaveSettings(ctx context.Context, s usage.Settings) error
	InitSettings(ctx context.Context) (usage.Settings, error)

	CachedResult(ctx context.Context) (usage.CachedResult, error)
	SaveSnapshot(ctx context.Context, snap usage.Snapshot, fetchedAt time.Time) error
	SaveError(ctx context.Context, msg string) error

	AlertState(ctx context.Context) (usage.AlertState, error)
	SetAlertState(ctx context.Context, state usage.AlertState) error
	ResetAlertState(ctx context.Context) error

	MarkInstalled(ctx context.Context, at time.Time) error
}

// ScheduleConfigurer replaces the active schedules from settings.
type ScheduleConfigurer interface {
	Configure(settings usage.Settings)
}

// RunOptions selects the optional steps of a run.
type RunOptions struct {
	Trigger   string
	Periodic  bool
	Threshold bool
}

// Result is the outcome of a single run.
type Result struct {
	Success bool            `json:"success"`
	Usage   *usage.Snapshot `json:"usage,omitempty"`
	Error   string          `json:"error,omitempty"`
	Alerts  []Alert         `json:"alerts,omitempty"`
}

// Orchestrator sequences fetch, persist, badge and notifications for every
// trigger. Runs are not serialised: overlapping runs each fetch and the last
// write wins.
type Orchestrator struct {
	client    provider.Client
	state     StateStore
	display   notify.Display
	composer  *notify.Composer
	scheduler ScheduleConfigurer
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOrchestrator wires the collaborators together.
func NewOrchestrator(client provider.Client, state StateStore, display notify.Display, composer *notify.Composer, scheduler ScheduleConfigurer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		state:     state,
		display:   display,
		composer:  composer,
		scheduler: scheduler,
		now:       time.Now,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// SetClock overrides the clock used for fetch timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Run performs one poll. A run that has started is not cancelled by ctx;
// only values are inherited from it.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) Result {
	ctx = context.WithoutCancel(ctx)
	if opts.Trigger == "" {
		opts.Trigger = "manual"
	}
	start := time.Now()
	defer func() {
		UsageRunDuration.WithLabelValues(opts.Trigger).Observe(time.Since(start).Seconds())
	}()
	logger := o.logger.With().Str("trigger", opts.Trigger).Logger()

	snap, err := o.fetch(ctx)
	if err != nil {
		UsageFetchTotal.WithLabelValues(string(provider.KindOf(err))).Inc()
		return o.fail(ctx, logger, err)
	}
	UsageFetchTotal.WithLabelValues("success").Inc()
	o.observe(snap)

	if err := o.state.SaveSnapshot(ctx, snap, o.now()); err != nil {
		return o.fail(ctx, logger, fmt.Errorf("persist usage: %w", err))
	}

	settings, err := o.state.LoadSettings(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
	}

	o.setBadge(ctx, logger, snap, settings.BadgeDisplay)

	if opts.Periodic && settings.PeriodicEnabled {
		o.deliver(ctx, logger, o.composer.PeriodicNotification(snap))
	}

	var alerts []Alert
	if opts.Threshold && settings.ThresholdEnabled {
		alerts = o.checkThresholds(ctx, logger, snap, settings)
	}

	logger.Debug().Int("alerts", len(alerts)).Msg("run complete")
	return Result{Success: true, Usage: &snap, Alerts: alerts}
}

func (o *Orchestrator) fetch(ctx context.Context) (usage.Snapshot, error) {
	orgID, err := o.client.ResolveOrg(ctx)
	if err != nil {
		return usage.Snapshot{}, err
	}
	return o.client.FetchUsage(ctx, orgID)
}

// fail records err as the cached error. The cached snapshot and the badge
// are left untouched.
func (o *Orchestrator) fail(ctx context.Context, logger zerolog.Logger, err error) Result {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	logger.Warn().Err(err).Str("kind", string(provider.KindOf(err))).Msg("usage fetch failed")
	if serr := o.state.SaveError(ctx, msg); serr != nil {
		logger.Error().Err(serr).Msg("failed to persist fetch error")
	}
	return Result{Success: false, Error: msg}
}

func (o *Orchestrator) checkThresholds(ctx context.Context, logger zerolog.Logger, snap usage.Snapshot, settings usage.Settings) []Alert {
	prior, err := o.state.AlertState(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load alert state, assuming all clear")
	}

	alerts, next := Evaluate(snap, settings, prior)
	for _, a := range alerts {
		UsageAlertsTotal.WithLabelValues(string(a.Quota)).Inc()
		logger.Info().
			Str("quota", string(a.Quota)).
			Float64("utilization", a.Utilization).
			Int("threshold", a.Threshold).
			Msg("threshold crossed")
		o.deliver(ctx, logger, o.composer.ThresholdNotification(a.Quota, a.Utilization, a.Threshold))
	}

	// Persisted even without alerts so a drop below threshold re-arms.
	if err := o.state.SetAlertState(ctx, next); err != nil {
		logger.Error().Err(err).Msg("failed to persist alert state")
	}
	return alerts
}

func (o *Orchestrator) setBadge(ctx context.Context, logger zerolog.Logger, snap usage.Snapshot, mode usage.BadgeDisplay) {
	if err := o.display.SetBadge(ctx, o.composer.Badge(snap, mode)); err != nil {
		logger.Warn().Err(err).Msg("failed to update badge")
	}
}

func (o *Orchestrator) deliver(ctx context.Context, logger zerolog.Logger, n notify.Notification) {
	UsageNotificationsTotal.WithLabelValues(string(n.Kind)).Inc()
	if err := o.display.Notify(ctx, n); err != nil {
		logger.Warn().Err(err).Str("kind", string(n.Kind)).Msg("failed to deliver notification")
	}
}

func (o *Orchestrator) observe(snap usage.Snapshot) {
	for _, q := range []usage.QuotaName{usage.QuotaSession, usage.QuotaWeekly, usage.QuotaWeeklySecondary} {
		if util, ok := snap.Quota(q).Util(); ok {
			UsageUtilization.WithLabelValues(string(q)).Set(util)
		}
	}
}

