package schedule

import "time"

// SinceUpdate is the time elapsed between the last schedule update and now.
func SinceUpdate(lastUpdate, now time.Time) time.Duration {
	return now.Sub(lastUpdate)
}

// RecentlyUpdated reports whether the last update falls inside window.
func RecentlyUpdated(lastUpdate, now time.Time, window time.Duration) bool {
	if lastUpdate.IsZero() {
		return false
	}
	return SinceUpdate(lastUpdate, now) < window
}

// Exhausted reports whether every meal of the rotation is already in the past.
func Exhausted(lastMeal, now time.Time) bool {
	return !lastMeal.After(now)
}
