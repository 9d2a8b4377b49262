package adapters

import (
	"context"
	"encoding/base64"
	"math"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const upstashAPIURL = "https://api.upstash.com"

// UpstashRedis reports daily command volume and memory pressure for one
// database from the management stats endpoint.
func UpstashRedis(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "upstash-redis",
		Name:     "Upstash Redis",
		Category: provider.CategoryInfrastructure,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "email", Label: "Upstash Email", Type: "text", Required: true, Placeholder: "you@example.com"},
			{Key: "apiKey", Label: "API Key", Type: "password", Required: true, Placeholder: "upstash_redis_..."},
			{Key: "databaseId", Label: "Database ID", Type: "text", Required: true, Placeholder: "xxxxxxxx-xxxx-..."},
		},
		Collectors: []provider.Collector{
			{ID: "daily_commands", Name: "Daily Commands", MetricType: provider.MetricTypeCount, Unit: "commands", RefreshInterval: 300, Trend: true},
			{ID: "memory_usage", Name: "Memory Usage", MetricType: provider.MetricTypePercentage, Unit: "%", RefreshInterval: 300, DisplayHint: "progress",
				Thresholds: &provider.Thresholds{Warning: 80, Critical: 95, Direction: "above", Max: 100}},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "high-memory", Name: "High Memory", CollectorID: "memory_usage", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(80), Message: "Redis memory > 80%"},
			{ID: "high-commands", Name: "High Commands", CollectorID: "daily_commands", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(8000), Message: "Daily commands > 8000"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchUpstashRedis(ctx, client, baseURL, creds["email"], creds["apiKey"], creds["databaseId"])
		},
	}
}

func fetchUpstashRedis(ctx context.Context, client *http.Client, baseURL, email, apiKey, databaseID string) ([]provider.SnapshotInput, error) {
	degraded := []provider.SnapshotInput{
		unknown("daily_commands", "commands"),
		unknown("memory_usage", "%"),
	}

	auth := base64.StdEncoding.EncodeToString([]byte(email + ":" + apiKey))

	var body struct {
		Result struct {
			DailyRequests float64 `json:"dailyrequests"`
			UsedMemory    float64 `json:"used_memory"`
			MaxMemory     float64 `json:"maxmemory"`
		} `json:"result"`
	}
	code, err := getJSON(ctx, client, baseURL+"/v2/redis/stats/"+databaseID, &body,
		header{key: "Authorization", value: "Basic " + auth})
	if err != nil {
		return degraded, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("daily_commands", "commands"),
			authFailed("memory_usage", "%"),
		}, nil
	}
	if code < 200 || code >= 300 {
		return degraded, nil
	}

	dailyCommands := body.Result.DailyRequests
	var memoryUsage float64
	if body.Result.MaxMemory > 0 {
		memoryUsage = math.Round(body.Result.UsedMemory / body.Result.MaxMemory * 100)
	}

	status := provider.StatusHealthy
	switch {
	case memoryUsage > 95:
		status = provider.StatusCritical
	case memoryUsage > 80 || dailyCommands > 8000:
		status = provider.StatusWarning
	}

	return []provider.SnapshotInput{
		{CollectorID: "daily_commands", Value: provider.Float(dailyCommands), Unit: "commands", Status: status},
		{CollectorID: "memory_usage", Value: provider.Float(memoryUsage), Unit: "%", Status: status},
	}, nil
}
