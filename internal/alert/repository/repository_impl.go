package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/beaconly/beacon/internal/alert/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, config *domain.AlertConfig) error {
	return db.WithContext(ctx).Create(config).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.AlertConfig, error) {
	var config domain.AlertConfig
	err := db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *repo) ListForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*domain.AlertConfig, error) {
	var configs []*domain.AlertConfig
	err := db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("created_at asc, id asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]*domain.AlertConfig, error) {
	var configs []*domain.AlertConfig
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) ListEnabledForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*domain.AlertConfig, error) {
	var configs []*domain.AlertConfig
	err := db.WithContext(ctx).
		Where("service_id = ? AND enabled = ?", serviceID, true).
		Order("created_at asc, id asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, config *domain.AlertConfig) error {
	return db.WithContext(ctx).Save(config).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&domain.AlertConfig{}).Error
}

func (r *repo) MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.AlertConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_notified_at": at, "updated_at": at}).Error
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.AlertEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListEventsForUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]*domain.AlertEvent, error) {
	var events []*domain.AlertEvent
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) ListEventsForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, limit int) ([]*domain.AlertEvent, error) {
	var events []*domain.AlertEvent
	err := db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
