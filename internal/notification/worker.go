package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"catmate-tracker/internal/model"
)

// Reminder is a refill reminder for one generated schedule.
type Reminder struct {
	ScheduleID     string `json:"scheduleId"`
	RemainingMeals int    `json:"remainingMeals"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Reminder
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions disables delivery.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Reminder, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case r := <-wp.jobs:
			wp.log.Debug().Int("worker", id).Str("schedule_id", r.ScheduleID).Msg("processing reminder")
			wp.sendReminder(ctx, r)
		case <-ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a reminder. It never blocks: when the queue is full the
// reminder is dropped, the next check will raise it again.
func (wp *WorkerPool) Dispatch(r Reminder) bool {
	select {
	case wp.jobs <- r:
		return true
	default:
		wp.log.Warn().Str("schedule_id", r.ScheduleID).Msg("reminder queue full, dropping reminder")
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Reminder {
	return wp.jobs
}

func (wp *WorkerPool) sendReminder(ctx context.Context, r Reminder) {
	if wp.webpush == nil || wp.webpush.VAPIDPrivateKey == "" {
		wp.log.Info().Str("schedule_id", r.ScheduleID).Msg("web push not configured, skipping reminder")
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		wp.log.Error().Err(err).Msg("error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(r)
	if err != nil {
		wp.log.Error().Err(err).Msg("error encoding reminder")
		return
	}

	wp.log.Info().Int("subscriptions", len(subscriptions)).Str("schedule_id", r.ScheduleID).Msg("sending refill reminders")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
