package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catmate-tracker/internal/schedule"
)

type chartPoint struct {
	X time.Time `json:"x"`
	Y int       `json:"y"`
}

type chartResponse struct {
	Points   []chartPoint `json:"points"`
	Now      time.Time    `json:"now"`
	NowLabel string       `json:"nowLabel"`
	XRange   [2]time.Time `json:"xRange"`
	YRange   [2]float64   `json:"yRange"`
}

// GetChart handles GET /api/chart: remaining meals over time with a marker for now.
func (h *Handler) GetChart(c *gin.Context) {
	rows, err := h.store.LatestRows(c.Request.Context(), h.cfg.Tracker.LatestLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read meals for chart")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve meals"})
		return
	}

	loc := h.location()
	now := time.Now().In(loc)

	points := make([]chartPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, chartPoint{X: r.NextMeal.In(loc), Y: r.RemainingMeals})
	}

	c.JSON(http.StatusOK, chartResponse{
		Points:   points,
		Now:      now,
		NowLabel: now.Format("2006-01-02 15:04"),
		XRange:   [2]time.Time{now.Add(-12 * time.Hour), now.Add(24 * time.Hour)},
		YRange:   [2]float64{0, float64(schedule.Slots) + 0.5},
	})
}
