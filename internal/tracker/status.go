package tracker

import (
	"fmt"
	"time"

	"catmate-tracker/internal/model"
	"catmate-tracker/internal/schedule"
)

// Status is the dashboard's view of the feeder at one instant.
type Status struct {
	Now                time.Time               `json:"now"`
	LocalNow           string                  `json:"localNow"`
	HasSchedule        bool                    `json:"hasSchedule"`
	ScheduleID         string                  `json:"scheduleId,omitempty"`
	LastUpdate         *time.Time              `json:"lastUpdate,omitempty"`
	SinceUpdateSeconds int64                   `json:"sinceUpdateSeconds"`
	RecentlyUpdated    bool                    `json:"recentlyUpdated"`
	Window             string                  `json:"recentUpdateWindow"`
	RemainingMeals     *int                    `json:"remainingMeals,omitempty"`
	NextMeal           *time.Time              `json:"nextMeal,omitempty"`
	Exhausted          bool                    `json:"exhausted"`
	NeedsRefill        bool                    `json:"needsRefill"`
	Message            string                  `json:"message"`
	Rows               []model.MealScheduleRow `json:"rows"`
}

// deriveStatus builds a Status from the latest stored rows (oldest first).
func (s *Service) deriveStatus(rows []model.MealScheduleRow, now time.Time) Status {
	window := s.cfg.Tracker.RecentUpdateWindow
	st := Status{
		Now:      now,
		LocalNow: now.In(s.policy.Location).Format("2006-01-02 15:04"),
		Window:   window.String(),
		Rows:     rows,
	}
	if st.Rows == nil {
		st.Rows = []model.MealScheduleRow{}
	}

	if len(rows) == 0 {
		st.NeedsRefill = true
		st.Message = "No meals scheduled yet. Press refill after filling the catmate."
		return st
	}

	newest := rows[len(rows)-1]
	lastUpdate := newest.TimeStamp
	st.HasSchedule = true
	st.ScheduleID = newest.ScheduleID
	st.LastUpdate = &lastUpdate
	st.SinceUpdateSeconds = int64(schedule.SinceUpdate(lastUpdate, now) / time.Second)
	st.RecentlyUpdated = schedule.RecentlyUpdated(lastUpdate, now, window)

	current := make([]model.MealScheduleRow, 0, len(rows))
	for _, r := range rows {
		if r.ScheduleID == newest.ScheduleID {
			current = append(current, r)
		}
	}

	// current is never empty: it holds at least newest.
	remaining, _ := schedule.RemainingMealsNear(current, now)
	st.RemainingMeals = &remaining

	for _, r := range current {
		if r.NextMeal.After(now) {
			next := r.NextMeal
			st.NextMeal = &next
			break
		}
	}

	st.Exhausted = schedule.Exhausted(current[len(current)-1].NextMeal, now)
	st.NeedsRefill = st.Exhausted || remaining <= s.cfg.Tracker.ReminderThreshold

	switch {
	case st.RecentlyUpdated:
		st.Message = fmt.Sprintf("Meals have been refilled in the last %s", formatWindow(window))
	case st.Exhausted:
		st.Message = "The catmate is empty."
	case st.NeedsRefill:
		st.Message = fmt.Sprintf("Only %d meal(s) left in the catmate.", remaining)
	}
	return st
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
