// Package tracker wires the schedule engine to the store: it records refills,
// derives the feeder status and raises refill reminders on a schedule.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"catmate-tracker/config"
	"catmate-tracker/internal/model"
	"catmate-tracker/internal/notification"
	"catmate-tracker/internal/schedule"
	"catmate-tracker/internal/store"
)

// ErrRecentlyUpdated is returned by Refill when the last schedule is still
// inside the recent update window.
var ErrRecentlyUpdated = errors.New("meals were refilled recently")

// Dispatcher queues refill reminders.
type Dispatcher interface {
	Dispatch(r notification.Reminder) bool
}

// Broadcaster pushes status snapshots to live clients.
type Broadcaster interface {
	Broadcast(v any) error
}

// Service records refills and watches the feeder status.
type Service struct {
	cfg      *config.Config
	store    store.Store
	policy   schedule.Policy
	notifier Dispatcher
	hub      Broadcaster
	log      zerolog.Logger

	now   func() time.Time
	newID func() string

	mu           sync.Mutex
	lastReminded string

	// refillMu serialises the recent-update check with the write that follows it.
	refillMu sync.Mutex
}

// NewService creates a tracker. notifier and hub may be nil.
func NewService(cfg *config.Config, st store.Store, notifier Dispatcher, hub Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		policy:   schedule.NewPolicy(cfg.Schedule.Location),
		notifier: notifier,
		hub:      hub,
		log:      log.With().Str("component", "tracker").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Policy returns the schedule policy the tracker generates rotations with.
func (s *Service) Policy() schedule.Policy {
	return s.policy
}

// Refill generates a schedule anchored at now and appends it to the store.
// Unless force is set, it refuses while the last refill is recent.
func (s *Service) Refill(ctx context.Context, force bool) ([]model.MealScheduleRow, error) {
	s.refillMu.Lock()
	defer s.refillMu.Unlock()

	now := s.now().UTC()

	if !force {
		latest, err := s.store.LatestRows(ctx, 1)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to read last update")
			return nil, err
		}
		if len(latest) > 0 && schedule.RecentlyUpdated(latest[0].TimeStamp, now, s.cfg.Tracker.RecentUpdateWindow) {
			return nil, ErrRecentlyUpdated
		}
	}

	rows, err := s.policy.Rows(now, s.newID())
	if err != nil {
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}
	if err := s.store.AppendSchedule(ctx, rows); err != nil {
		s.log.Error().Err(err).Msg("failed to append schedule")
		return nil, err
	}

	s.log.Info().
		Str("schedule_id", rows[0].ScheduleID).
		Time("first_meal", rows[0].NextMeal).
		Time("last_meal", rows[len(rows)-1].NextMeal).
		Msg("new meals scheduled")
	s.publish(ctx)
	return rows, nil
}

// Replace generates a schedule anchored at now and makes it the only one stored.
func (s *Service) Replace(ctx context.Context) ([]model.MealScheduleRow, error) {
	s.refillMu.Lock()
	defer s.refillMu.Unlock()

	now := s.now().UTC()

	rows, err := s.policy.Rows(now, s.newID())
	if err != nil {
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}
	if err := s.store.ReplaceSchedule(ctx, rows); err != nil {
		s.log.Error().Err(err).Msg("failed to replace schedule")
		return nil, err
	}

	s.log.Warn().Str("schedule_id", rows[0].ScheduleID).Msg("meal history replaced")
	s.publish(ctx)
	return rows, nil
}

// Status reads the latest rows and derives the current feeder status. At
// least one full rotation is read so the newest schedule is always complete;
// only the last LatestLimit rows are returned in Status.Rows.
func (s *Service) Status(ctx context.Context) (Status, error) {
	now := s.now().UTC()
	limit := s.cfg.Tracker.LatestLimit
	rows, err := s.store.LatestRows(ctx, max(limit, schedule.Slots))
	if err != nil {
		return Status{}, err
	}

	st := s.deriveStatus(rows, now)
	if limit > 0 && len(st.Rows) > limit {
		st.Rows = st.Rows[len(st.Rows)-limit:]
	}
	return st, nil
}

// CheckOnce refreshes live clients and raises a reminder when the feeder
// needs a refill. Each schedule is reminded about at most once.
func (s *Service) CheckOnce(ctx context.Context) {
	st, err := s.Status(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("status check failed")
		return
	}
	s.broadcast(st)

	if !st.HasSchedule || !st.NeedsRefill || s.notifier == nil {
		return
	}

	s.mu.Lock()
	if s.lastReminded == st.ScheduleID {
		s.mu.Unlock()
		return
	}
	s.lastReminded = st.ScheduleID
	s.mu.Unlock()

	remaining := 0
	if st.RemainingMeals != nil && !st.Exhausted {
		remaining = *st.RemainingMeals
	}
	r := notification.Reminder{
		ScheduleID:     st.ScheduleID,
		RemainingMeals: remaining,
		Title:          "Catmate Tracker",
		Body:           st.Message,
	}
	if !s.notifier.Dispatch(r) {
		// Try again on the next tick.
		s.mu.Lock()
		s.lastReminded = ""
		s.mu.Unlock()
		return
	}
	s.log.Info().Str("schedule_id", st.ScheduleID).Int("remaining", remaining).Msg("refill reminder dispatched")
}

// Run performs a check right away and then on the configured cron schedule
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(s.cfg.Tracker.CheckSchedule, func() { s.CheckOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid tracker.check_schedule %q: %w", s.cfg.Tracker.CheckSchedule, err)
	}

	s.log.Info().Str("schedule", s.cfg.Tracker.CheckSchedule).Msg("starting refill checks")
	s.CheckOnce(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("refill checks stopped")
	return nil
}

func (s *Service) publish(ctx context.Context) {
	if s.hub == nil {
		return
	}
	st, err := s.Status(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not refresh live status")
		return
	}
	s.broadcast(st)
}

func (s *Service) broadcast(st Status) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(st); err != nil {
		s.log.Warn().Err(err).Msg("live broadcast failed")
	}
}
