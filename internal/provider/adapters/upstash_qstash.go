package adapters

import (
	"context"
	"math"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const qstashAPIURL = "https://qstash.upstash.io"

// UpstashQStash reports message delivery counts and monthly quota pressure.
func UpstashQStash(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "upstash-qstash",
		Name:     "Upstash QStash",
		Category: provider.CategoryInfrastructure,
		AuthType: provider.AuthTypeToken,
		CredentialFields: []provider.CredentialField{
			{Key: "token", Label: "QStash Token", Type: "password", Required: true, Placeholder: "qstash_..."},
		},
		Collectors: []provider.Collector{
			{ID: "messages_delivered", Name: "Messages Delivered", MetricType: provider.MetricTypeCount, Unit: "messages", RefreshInterval: 300, Trend: true},
			{ID: "messages_failed", Name: "Messages Failed", MetricType: provider.MetricTypeCount, Unit: "messages", RefreshInterval: 300},
			{ID: "monthly_quota_used", Name: "Quota Used", MetricType: provider.MetricTypePercentage, Unit: "%", RefreshInterval: 300, DisplayHint: "progress",
				Thresholds: &provider.Thresholds{Warning: 80, Critical: 95, Direction: "above", Max: 100}},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "high-quota", Name: "High Quota", CollectorID: "monthly_quota_used", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(80), Message: "QStash quota > 80%"},
			{ID: "failed-msgs", Name: "Failed Messages", CollectorID: "messages_failed", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(10), Message: "More than 10 failed messages"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchUpstashQStash(ctx, client, baseURL, creds["token"])
		},
	}
}

func fetchUpstashQStash(ctx context.Context, client *http.Client, baseURL, token string) ([]provider.SnapshotInput, error) {
	degraded := []provider.SnapshotInput{
		unknown("messages_delivered", "messages"),
		unknown("messages_failed", "messages"),
		unknown("monthly_quota_used", "%"),
	}

	var body struct {
		MessagesDelivered float64 `json:"messagesDelivered"`
		MessagesFailed    float64 `json:"messagesFailed"`
		MonthlyLimit      float64 `json:"monthlyLimit"`
	}
	code, err := getJSON(ctx, client, baseURL+"/v2/stats", &body, bearer(token))
	if err != nil {
		return degraded, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("messages_delivered", "messages"),
			authFailed("messages_failed", "messages"),
			authFailed("monthly_quota_used", "%"),
		}, nil
	}
	if code < 200 || code >= 300 {
		return degraded, nil
	}

	monthlyLimit := body.MonthlyLimit
	if monthlyLimit == 0 {
		monthlyLimit = 500
	}
	quotaUsed := math.Round(body.MessagesDelivered / monthlyLimit * 100)

	status := provider.StatusHealthy
	switch {
	case quotaUsed > 95:
		status = provider.StatusCritical
	case quotaUsed > 80 || body.MessagesFailed > 10:
		status = provider.StatusWarning
	}

	return []provider.SnapshotInput{
		{CollectorID: "messages_delivered", Value: provider.Float(body.MessagesDelivered), Unit: "messages", Status: status},
		{CollectorID: "messages_failed", Value: provider.Float(body.MessagesFailed), Unit: "messages", Status: status},
		{CollectorID: "monthly_quota_used", Value: provider.Float(quotaUsed), Unit: "%", Status: status},
	}, nil
}
