package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, config *AlertConfig) error
	FindByID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*AlertConfig, error)
	ListForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*AlertConfig, error)
	ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]*AlertConfig, error)
	ListEnabledForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]*AlertConfig, error)
	Update(ctx context.Context, db *gorm.DB, config *AlertConfig) error
	Delete(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) error
	MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error

	InsertEvent(ctx context.Context, db *gorm.DB, event *AlertEvent) error
	ListEventsForUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]*AlertEvent, error)
	ListEventsForService(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, limit int) ([]*AlertEvent, error)
}
