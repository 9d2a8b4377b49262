package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, service *ConnectedService) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConnectedService, error)
	FindByIDForUser(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*ConnectedService, error)
	ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]*ConnectedService, error)
	ListEnabled(ctx context.Context, db *gorm.DB) ([]*ConnectedService, error)
	Update(ctx context.Context, db *gorm.DB, service *ConnectedService) error
	// UpdateCounters applies targeted updates to the poll bookkeeping
	// columns, leaving the rest of the row untouched.
	UpdateCounters(ctx context.Context, db *gorm.DB, id snowflake.ID, updates map[string]any) error
	// IncrementFailures atomically bumps consecutive_failures and returns
	// the resulting count. Overlapping polls must never lose an increment.
	IncrementFailures(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int, error)
	// UpdateCredentials replaces only the encrypted credential blob, so a
	// token refresh cannot clobber concurrent counter updates.
	UpdateCredentials(ctx context.Context, db *gorm.DB, id snowflake.ID, blob string, at time.Time) error
	// DeleteCascade removes the service together with its snapshots,
	// alert configs and alert events.
	DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertSnapshots(ctx context.Context, db *gorm.DB, snapshots []*MetricSnapshot) error
	LatestSnapshots(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, limit int) ([]*MetricSnapshot, error)
}
