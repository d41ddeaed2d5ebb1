package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"catmate-tracker/config"
	"catmate-tracker/internal/live"
	"catmate-tracker/internal/mw"
	"catmate-tracker/internal/store"
	"catmate-tracker/internal/tracker"
)

// maxLimit caps the number of rows a client can ask for at once.
const maxLimit = 100

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg     *config.Config
	tracker *tracker.Service
	store   store.Store
	subs    *store.Subscriptions
	hub     *live.Hub
	webpush *webpush.Options
	cache   *mw.ResponseCache
	log     zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, svc *tracker.Service, s store.Store, hub *live.Hub, webpushOptions *webpush.Options, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		tracker: svc,
		store:   s,
		subs:    store.NewSubscriptions(s.DB()),
		hub:     hub,
		webpush: webpushOptions,
		cache:   mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second),
		log:     log.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) location() *time.Location {
	if h.cfg.Schedule.Location == nil {
		return time.UTC
	}
	return h.cfg.Schedule.Location
}
