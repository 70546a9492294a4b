package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"filament-monitor-backend/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the interface for all database operations.
type Store interface {
	GetSetting(ctx context.Context, namespace, key string) (string, bool, error)
	SetSetting(ctx context.Context, namespace, key, value string) error

	RecordPrint(ctx context.Context, job *model.PrintJob) error
	RecordFault(ctx context.Context, fault *model.FilamentFault) error
	RecentPrints(ctx context.Context, limit int) ([]model.PrintJob, error)
	RecentFaults(ctx context.Context, limit int) ([]model.FilamentFault, error)

	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// GetSetting reports ok=false when the key has never been written.
func (s *gormStore) GetSetting(ctx context.Context, namespace, key string) (string, bool, error) {
	var setting model.Setting
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", namespace, key).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s/%s: %w", namespace, key, err)
	}
	return setting.Value, true, nil
}

func (s *gormStore) SetSetting(ctx context.Context, namespace, key, value string) error {
	setting := model.Setting{Namespace: namespace, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("failed to write setting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *gormStore) RecordPrint(ctx context.Context, job *model.PrintJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to record print %q: %w", job.Filename, err)
	}
	return nil
}

func (s *gormStore) RecordFault(ctx context.Context, fault *model.FilamentFault) error {
	if err := s.db.WithContext(ctx).Create(fault).Error; err != nil {
		return fmt.Errorf("failed to record %s fault: %w", fault.Status, err)
	}
	return nil
}

// RecentPrints returns up to limit prints, newest first.
func (s *gormStore) RecentPrints(ctx context.Context, limit int) ([]model.PrintJob, error) {
	var jobs []model.PrintJob
	if err := s.db.WithContext(ctx).Order("finished_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list prints: %w", err)
	}
	return jobs, nil
}

// RecentFaults returns up to limit faults, newest first.
func (s *gormStore) RecentFaults(ctx context.Context, limit int) ([]model.FilamentFault, error) {
	var faults []model.FilamentFault
	if err := s.db.WithContext(ctx).Order("observed_at DESC").Limit(limit).Find(&faults).Error; err != nil {
		return nil, fmt.Errorf("failed to list faults: %w", err)
	}
	return faults, nil
}

func (s *gormStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription creates the subscription or replaces its keys.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
