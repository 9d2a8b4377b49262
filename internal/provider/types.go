package provider

import "context"

// MetricType classifies the value a collector reports.
type MetricType string

const (
	MetricTypeCurrency   MetricType = "currency"
	MetricTypePercentage MetricType = "percentage"
	MetricTypeCount      MetricType = "count"
	MetricTypeStatus     MetricType = "status"
	MetricTypeBoolean    MetricType = "boolean"
)

// Category groups providers in the connect catalog.
type Category string

const (
	CategoryAI             Category = "ai"
	CategoryMonitoring     Category = "monitoring"
	CategoryEmail          Category = "email"
	CategoryHosting        Category = "hosting"
	CategoryPayment        Category = "payment"
	CategoryInfrastructure Category = "infrastructure"
	CategoryOther          Category = "other"
)

// AuthType describes how a provider is connected.
type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeOAuth2 AuthType = "oauth2"
	AuthTypeHybrid AuthType = "hybrid"
	AuthTypeToken  AuthType = "token"
)

// Condition is an alert comparison operator.
type Condition string

const (
	ConditionLT       Condition = "lt"
	ConditionGT       Condition = "gt"
	ConditionEQ       Condition = "eq"
	ConditionStatusIs Condition = "status_is"
)

// HealthStatus is the adapter's judgement of a snapshot.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusWarning   HealthStatus = "warning"
	StatusCritical  HealthStatus = "critical"
	StatusUnknown   HealthStatus = "unknown"
	StatusSimulated HealthStatus = "simulated"
)

// AuthFailedValue is the machine-readable text value adapters report on
// 401/403 responses so the orchestrator can detect credential rot.
const AuthFailedValue = "auth_failed"

// Credentials are the decrypted credential fields passed to an adapter.
type Credentials map[string]string

// CredentialField describes one field of a provider's credential schema.
type CredentialField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Type        string `json:"type"` // text, password or url
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Thresholds are optional health hints rendered by the dashboard.
type Thresholds struct {
	Warning   float64 `json:"warning"`
	Critical  float64 `json:"critical"`
	Direction string  `json:"direction"` // below or above
	Max       float64 `json:"max,omitempty"`
}

// Collector is a named metric a provider adapter can report. Collectors are
// compiled into the adapter, never persisted.
type Collector struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	MetricType      MetricType  `json:"metric_type"`
	Unit            string      `json:"unit"`
	RefreshInterval int         `json:"refresh_interval"` // seconds, must be >= 60
	Endpoint        string      `json:"endpoint,omitempty"`
	Description     string      `json:"description,omitempty"`
	DisplayHint     string      `json:"display_hint,omitempty"`
	Thresholds      *Thresholds `json:"thresholds,omitempty"`
	Trend           bool        `json:"trend,omitempty"`
}

// AlertTemplate is a suggested default rule used to pre-fill the dashboard.
// Templates are never evaluated server-side.
type AlertTemplate struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	CollectorID             string    `json:"collector_id"`
	Condition               Condition `json:"condition"`
	DefaultThresholdNumeric *float64  `json:"default_threshold_numeric,omitempty"`
	DefaultThresholdText    *string   `json:"default_threshold_text,omitempty"`
	Message                 string    `json:"message"`
}

// SnapshotInput is one normalized observation returned by an adapter.
// Exactly one of Value/ValueText is meaningful per the collector's metric
// type; both may be nil when the provider could not be reached.
type SnapshotInput struct {
	CollectorID string
	Value       *float64
	ValueText   *string
	Unit        string
	Status      HealthStatus
}

// FetchFunc calls the provider's API and returns one SnapshotInput per
// collector it supports. Ordinary HTTP failures must degrade to
// StatusUnknown and auth failures to StatusCritical/AuthFailedValue;
// returning an error is reserved for genuinely unexpected conditions.
type FetchFunc func(ctx context.Context, creds Credentials) ([]SnapshotInput, error)

// Adapter is a compiled-in integration for one third-party API.
type Adapter struct {
	ID               string
	Name             string
	Category         Category
	AuthType         AuthType
	CredentialFields []CredentialField
	Collectors       []Collector
	AlertTemplates   []AlertTemplate
	Fetch            FetchFunc
}

// Float returns a SnapshotInput pointer for a numeric value.
func Float(v float64) *float64 { return &v }

// Text returns a SnapshotInput pointer for a text value.
func Text(v string) *string { return &v }
