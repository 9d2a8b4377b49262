package domain

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/beaconly/beacon/internal/provider"
)

// AlertConfig is one user-defined threshold rule against a single
// collector of a connected service. Exactly one of ThresholdNumeric and
// ThresholdText is set.
type AlertConfig struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	ServiceID        snowflake.ID       `gorm:"not null;index" json:"service_id"`
	UserID           string             `gorm:"not null;index" json:"user_id"`
	CollectorID      string             `gorm:"not null" json:"collector_id"`
	Condition        provider.Condition `gorm:"not null" json:"condition"`
	ThresholdNumeric *float64           `json:"threshold_numeric,omitempty"`
	ThresholdText    *string            `json:"threshold_text,omitempty"`
	Message          string             `json:"message,omitempty"`
	Enabled          bool               `gorm:"not null;default:true" json:"enabled"`
	LastNotifiedAt   *time.Time         `json:"last_notified_at,omitempty"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AlertConfig) TableName() string { return "alert_configs" }

// Threshold renders the configured threshold for display.
func (a AlertConfig) Threshold() string {
	if a.ThresholdNumeric != nil {
		return strconv.FormatFloat(*a.ThresholdNumeric, 'f', -1, 64)
	}
	if a.ThresholdText != nil {
		return *a.ThresholdText
	}
	return ""
}

// AlertEvent records one firing of an alert config.
type AlertEvent struct {
	ID            snowflake.ID       `gorm:"primaryKey" json:"id"`
	AlertConfigID snowflake.ID       `gorm:"not null;index" json:"alert_config_id"`
	ServiceID     snowflake.ID       `gorm:"not null;index" json:"service_id"`
	UserID        string             `gorm:"not null;index" json:"user_id"`
	CollectorID   string             `gorm:"not null" json:"collector_id"`
	Condition     provider.Condition `gorm:"not null" json:"condition"`
	Threshold     string             `json:"threshold"`
	Value         *float64           `json:"value,omitempty"`
	ValueText     *string            `json:"value_text,omitempty"`
	Message       string             `json:"message,omitempty"`
	CreatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AlertEvent) TableName() string { return "alert_events" }
