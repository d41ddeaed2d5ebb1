package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catmate-tracker/internal/model"
	"catmate-tracker/internal/parse"
	"catmate-tracker/internal/schedule"
	"catmate-tracker/internal/tracker"
)

// mealRowResponse is a stored row with its instants shown on the local clock.
type mealRowResponse struct {
	ID             int64     `json:"id"`
	ScheduleID     string    `json:"scheduleId"`
	TimeStamp      time.Time `json:"timeStamp"`
	NextMeal       time.Time `json:"nextMeal"`
	RemainingMeals int       `json:"remainingMeals"`
	Upcoming       bool      `json:"upcoming"`
}

func (h *Handler) toRowResponses(rows []model.MealScheduleRow, now time.Time) []mealRowResponse {
	loc := h.location()
	out := make([]mealRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, mealRowResponse{
			ID:             r.ID,
			ScheduleID:     r.ScheduleID,
			TimeStamp:      r.TimeStamp.In(loc),
			NextMeal:       r.NextMeal.In(loc),
			RemainingMeals: r.RemainingMeals,
			Upcoming:       r.NextMeal.After(now),
		})
	}
	return out
}

// GetMeals handles GET /api/meals: the latest stored rows, oldest first.
// Responses are cached, so Upcoming is as of the cached response and may lag
// by up to server.cache_ttl_seconds.
func (h *Handler) GetMeals(c *gin.Context) {
	limit := h.cfg.Tracker.LatestLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	rows, err := h.store.LatestRows(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read meals")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve meals"})
		return
	}
	c.JSON(http.StatusOK, h.toRowResponses(rows, time.Now()))
}

// RefillMeals handles POST /api/meals/refill.
func (h *Handler) RefillMeals(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		f, err := strconv.ParseBool(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		force = f
	}

	rows, err := h.tracker.Refill(c.Request.Context(), force)
	if errors.Is(err, tracker.ErrRecentlyUpdated) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to store the new schedule"})
		return
	}

	h.cache.Invalidate()
	c.JSON(http.StatusCreated, h.toRowResponses(rows, time.Now()))
}

// ReplaceMeals handles PUT /api/admin/meals. It wipes the history, so it is
// off unless admin.allow_replace is set.
func (h *Handler) ReplaceMeals(c *gin.Context) {
	if !h.cfg.Admin.AllowReplace {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "replacing the meal history is disabled"})
		return
	}

	rows, err := h.tracker.Replace(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to replace the schedule"})
		return
	}

	h.cache.Invalidate()
	c.JSON(http.StatusOK, h.toRowResponses(rows, time.Now()))
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	st, err := h.tracker.Status(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to derive status")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

type slotResponse struct {
	At        time.Time `json:"at"`
	Remaining int       `json:"remaining"`
}

// PreviewSchedule handles GET /api/schedule/preview. Nothing is stored.
func (h *Handler) PreviewSchedule(c *gin.Context) {
	now := time.Now().UTC()
	if raw := c.Query("at"); raw != "" {
		at, err := parse.ParseInstant(raw, h.location())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp. Use RFC3339 or 'YYYY-MM-DD HH:MM:SS'."})
			return
		}
		now = at
	}

	slots, err := h.tracker.Policy().Generate(now)
	if errors.Is(err, schedule.ErrInvalidInstant) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loc := h.location()
	resp := make([]slotResponse, len(slots))
	for i, s := range slots {
		resp[i] = slotResponse{At: s.At.In(loc), Remaining: s.Remaining}
	}
	c.JSON(http.StatusOK, gin.H{
		"from":  now.In(loc),
		"slots": resp,
	})
}
