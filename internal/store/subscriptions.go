package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/model"
)

// SaveSubscription creates or replaces a device subscription.
func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription) error {
	return s.write(ctx, func(tx *gorm.DB, o omitted) error {
		return tx.Omit(o.cols(tableSubscriptions)...).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "staff_name"}),
		}).Create(&sub).Error
	})
}

// GetSubscription looks a subscription up by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, errs.NotFound("subscription", endpoint)
	}
	if err != nil {
		return sub, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// DeleteSubscription removes a subscription. Removing an unknown endpoint is
// not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// SubscriptionsFor lists the devices registered by a staff member.
func (s *gormStore) SubscriptionsFor(ctx context.Context, staffName string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("staff_name = ?", staffName).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for %s: %w", staffName, err)
	}
	return subs, nil
}
