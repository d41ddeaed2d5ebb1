package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catmate-tracker/internal/model"
)

// ErrSubscriptionNotFound is returned when no subscription matches an endpoint.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Subscriptions persists web push subscriptions for refill reminders.
type Subscriptions struct {
	db *gorm.DB
}

// NewSubscriptions creates a subscription store on db.
func NewSubscriptions(db *gorm.DB) *Subscriptions {
	return &Subscriptions{db: db}
}

// Save creates the subscription or refreshes its keys when the endpoint is
// already known.
func (s *Subscriptions) Save(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error
	return wrap("save subscription", err)
}

// Delete removes the subscription for endpoint. Unknown endpoints are not an error.
func (s *Subscriptions) Delete(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	return wrap("delete subscription", err)
}

// Get returns the subscription for endpoint, or ErrSubscriptionNotFound.
func (s *Subscriptions) Get(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, wrap("get subscription", err)
	}
	return &sub, nil
}
