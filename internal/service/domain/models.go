package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ConnectedService is one provider account a user connected for
// monitoring. Credentials holds the encrypted credential blob; it is
// never returned to clients.
type ConnectedService struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID              string       `gorm:"not null;index" json:"user_id"`
	UserEmail           string       `gorm:"not null" json:"-"`
	ProviderID          string       `gorm:"not null" json:"provider_id"`
	Label               string       `json:"label,omitempty"`
	Credentials         string       `gorm:"not null" json:"-"`
	Enabled             bool         `gorm:"not null;default:true" json:"enabled"`
	AuthExpired         bool         `gorm:"not null;default:false" json:"auth_expired"`
	ConsecutiveFailures int          `gorm:"not null;default:0" json:"consecutive_failures"`
	ScheduleID          *string      `json:"schedule_id,omitempty"`
	LastPolledAt        *time.Time   `json:"last_polled_at,omitempty"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ConnectedService) TableName() string { return "connected_services" }

// MetricSnapshot is one reading of one collector at one point in time.
// Numeric collectors set Value; status collectors set ValueText.
type MetricSnapshot struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ServiceID   snowflake.ID `gorm:"not null;index:idx_snapshots_service_time" json:"service_id"`
	CollectorID string       `gorm:"not null" json:"collector_id"`
	Value       *float64     `json:"value,omitempty"`
	ValueText   *string      `json:"value_text,omitempty"`
	Unit        string       `json:"unit,omitempty"`
	Status      string       `gorm:"not null" json:"status"`
	CollectedAt time.Time    `gorm:"not null;index:idx_snapshots_service_time" json:"collected_at"`
}

func (MetricSnapshot) TableName() string { return "metric_snapshots" }
