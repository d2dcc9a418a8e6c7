package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
	"github.com/rs/zerolog"
)

// Schedule names.
const (
	AlarmPeriodic  = "periodicNotification"
	AlarmThreshold = "thresholdCheck"
)

// AlarmHandler is invoked on every tick of a named schedule.
type AlarmHandler func(ctx context.Context, name string)

// ScheduleInfo describes an active schedule.
type ScheduleInfo struct {
	Name   string        `json:"name"`
	Period time.Duration `json:"period"`
}

type schedule struct {
	period time.Duration
	stop   chan struct{}
}

// Scheduler keeps at most one timer per schedule name. Settings intervals
// are counted in unit (one minute in production).
type Scheduler struct {
	mu        sync.Mutex
	unit      time.Duration
	schedules map[string]*schedule
	handler   AlarmHandler
	baseCtx   context.Context
	started   bool
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

func NewScheduler(unit time.Duration, logger zerolog.Logger) *Scheduler {
	if unit <= 0 {
		unit = time.Minute
	}
	return &Scheduler{
		unit:      unit,
		schedules: make(map[string]*schedule),
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins firing handler for configured schedules. Schedules configured
// before Start are launched now. Runs use a context that is not cancelled
// when the schedule is replaced or stopped, so a started run completes.
func (s *Scheduler) Start(ctx context.Context, handler AlarmHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler = handler
	s.baseCtx = context.WithoutCancel(ctx)
	s.started = true
	for name, sch := range s.schedules {
		s.launch(name, sch)
	}
	s.logger.Info().Int("schedules", len(s.schedules)).Msg("scheduler started")
}

// Configure clears both named schedules and recreates the enabled ones.
// Calling it repeatedly with the same settings leaves exactly the same set.
func (s *Scheduler) Configure(settings usage.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()

	if settings.PeriodicEnabled {
		s.add(AlarmPeriodic, time.Duration(settings.PeriodicIntervalMinutes)*s.unit)
	}
	if settings.ThresholdEnabled {
		s.add(AlarmThreshold, time.Duration(settings.ThresholdCheckIntervalMinutes)*s.unit)
	}
}

// Stop cancels every schedule and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.clear()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Schedules lists the active schedules sorted by name.
func (s *Scheduler) Schedules() []ScheduleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduleInfo, 0, len(s.schedules))
	for name, sch := range s.schedules {
		out = append(out, ScheduleInfo{Name: name, Period: sch.period})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// clear must be called with mu held.
func (s *Scheduler) clear() {
	for name, sch := range s.schedules {
		close(sch.stop)
		delete(s.schedules, name)
	}
}

// add must be called with mu held.
func (s *Scheduler) add(name string, period time.Duration) {
	if period <= 0 {
		s.logger.Warn().Str("schedule", name).Dur("period", period).Msg("ignoring non-positive period")
		return
	}
	sch := &schedule{period: period, stop: make(chan struct{})}
	s.schedules[name] = sch
	s.logger.Debug().Str("schedule", name).Dur("period", period).Msg("schedule created")
	if s.started {
		s.launch(name, sch)
	}
}

// launch must be called with mu held.
func (s *Scheduler) launch(name string, sch *schedule) {
	handler := s.handler
	ctx := s.baseCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(sch.period)
		defer ticker.Stop()

		for {
			select {
			case <-sch.stop:
				return
			case <-ticker.C:
				// A tick racing with stop must not fire.
				select {
				case <-sch.stop:
					return
				default:
				}
				handler(ctx, name)
			}
		}
	}()
}
