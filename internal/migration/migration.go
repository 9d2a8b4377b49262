package migration

import (
	"gorm.io/gorm"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
)

// RunMigrations creates or updates the core tables on startup so the
// service is usable out of the box for local and self-hosted deployments.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&servicedomain.ConnectedService{},
		&servicedomain.MetricSnapshot{},
		&alertdomain.AlertConfig{},
		&alertdomain.AlertEvent{},
	)
}
