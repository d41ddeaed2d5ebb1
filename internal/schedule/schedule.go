// Package schedule computes the feeder's meal rotation.
//
// The feeder rotates every 12 hours through 4 slots, so one refill covers a
// 2-day window. Meal boundaries are 07:00 and 19:00 on the wall clock of the
// configured location; every instant this package returns is in UTC.
package schedule

import (
	"errors"
	"sort"
	"time"

	"catmate-tracker/internal/model"
)

const (
	// Slots is the number of meals in one rotation.
	Slots = 4
	// Interval is the time between two consecutive meals.
	Interval = 12 * time.Hour

	morningHour = 7
	eveningHour = 19
)

var (
	ErrEmptyInput     = errors.New("no meal rows to compare against")
	ErrInvalidInstant = errors.New("invalid reference instant")
)

// Slot is one upcoming meal and the number of meals left in the feeder at that time.
type Slot struct {
	At        time.Time `json:"at"`
	Remaining int       `json:"remaining"`
}

// Policy holds the wall clock the 07:00/19:00 boundaries are evaluated in.
type Policy struct {
	Location *time.Location
}

// NewPolicy returns a Policy for loc, defaulting to UTC.
func NewPolicy(loc *time.Location) Policy {
	if loc == nil {
		loc = time.UTC
	}
	return Policy{Location: loc}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// NextMealAnchor returns the first meal of a schedule generated at now.
//
// Of today's two boundaries the later one (19:00) is taken, so a schedule
// generated before 07:00 still starts in the evening. If 19:00 has already
// passed, the anchor is 07:00 the next day. The result is always after now.
func (p Policy) NextMealAnchor(now time.Time) time.Time {
	local := now.In(p.location())
	y, m, d := local.Date()

	evening := time.Date(y, m, d, eveningHour, 0, 0, 0, local.Location())
	morning := time.Date(y, m, d, morningHour, 0, 0, 0, local.Location())

	anchor := evening
	if morning.After(anchor) {
		anchor = morning
	}
	if !anchor.After(now) {
		anchor = time.Date(y, m, d+1, morningHour, 0, 0, 0, local.Location())
	}
	return anchor.UTC()
}

// Generate returns the rotation anchored after now in ascending time order,
// with remaining counts 4, 3, 2, 1.
func (p Policy) Generate(now time.Time) ([]Slot, error) {
	if now.IsZero() {
		return nil, ErrInvalidInstant
	}

	anchor := p.NextMealAnchor(now)
	end := anchor.Add(Slots * Interval)

	slots := make([]Slot, 0, Slots)
	remaining := Slots
	for at := anchor; at.Before(end); at = at.Add(Interval) {
		slots = append(slots, Slot{At: at, Remaining: remaining})
		remaining--
	}
	return slots, nil
}

// Rows turns a freshly generated rotation into rows ready to be persisted.
func (p Policy) Rows(now time.Time, scheduleID string) ([]model.MealScheduleRow, error) {
	slots, err := p.Generate(now)
	if err != nil {
		return nil, err
	}

	stamp := now.UTC()
	rows := make([]model.MealScheduleRow, len(slots))
	for i, s := range slots {
		rows[i] = model.MealScheduleRow{
			ScheduleID:     scheduleID,
			TimeStamp:      stamp,
			NextMeal:       s.At,
			RemainingMeals: s.Remaining,
		}
	}
	return rows, nil
}

// RemainingMealsNear returns the remaining count of the row whose meal time is
// closest to now. Ties go to the earlier meal.
func RemainingMealsNear(rows []model.MealScheduleRow, now time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptyInput
	}

	sorted := make([]model.MealScheduleRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NextMeal.Before(sorted[j].NextMeal)
	})

	best := sorted[0]
	bestDiff := absDuration(best.NextMeal.Sub(now))
	for _, r := range sorted[1:] {
		if diff := absDuration(r.NextMeal.Sub(now)); diff < bestDiff {
			best, bestDiff = r, diff
		}
	}
	return best.RemainingMeals, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
