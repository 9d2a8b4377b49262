package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/service/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, service *domain.ConnectedService) error {
	return db.WithContext(ctx).Create(service).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ConnectedService, error) {
	var service domain.ConnectedService
	err := db.WithContext(ctx).Where("id = ?", id).First(&service).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func (r *repo) FindByIDForUser(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*domain.ConnectedService, error) {
	var service domain.ConnectedService
	err := db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&service).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func (r *repo) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]*domain.ConnectedService, error) {
	var services []*domain.ConnectedService
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (r *repo) ListEnabled(ctx context.Context, db *gorm.DB) ([]*domain.ConnectedService, error) {
	var services []*domain.ConnectedService
	err := db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id asc").
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, service *domain.ConnectedService) error {
	return db.WithContext(ctx).Save(service).Error
}

func (r *repo) UpdateCounters(ctx context.Context, db *gorm.DB, id snowflake.ID, updates map[string]any) error {
	return db.WithContext(ctx).
		Model(&domain.ConnectedService{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) IncrementFailures(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int, error) {
	err := db.WithContext(ctx).
		Model(&domain.ConnectedService{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"last_polled_at":       at,
			"updated_at":           at,
		}).Error
	if err != nil {
		return 0, err
	}

	var count int
	err = db.WithContext(ctx).
		Model(&domain.ConnectedService{}).
		Select("consecutive_failures").
		Where("id = ?", id).
		Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) UpdateCredentials(ctx context.Context, db *gorm.DB, id snowflake.ID, blob string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.ConnectedService{}).
		Where("id = ?", id).
		Updates(map[string]any{"credentials": blob, "updated_at": at}).Error
}

func (r *repo) DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_id = ?", id).Delete(&domain.MetricSnapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id = ?", id).Delete(&alertdomain.AlertEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id = ?", id).Delete(&alertdomain.AlertConfig{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.ConnectedService{}).Error
	})
}

func (r *repo) InsertSnapshots(ctx context.Context, db *gorm.DB, snapshots []*domain.MetricSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(snapshots).Error
}

func (r *repo) LatestSnapshots(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, limit int) ([]*domain.MetricSnapshot, error) {
	var snapshots []*domain.MetricSnapshot
	err := db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("collected_at desc, id desc").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
