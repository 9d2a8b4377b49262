package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const openrouterAPIURL = "https://openrouter.ai"

// OpenRouter reports the remaining prepaid credit balance.
func OpenRouter(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "openrouter",
		Name:     "OpenRouter",
		Category: provider.CategoryAI,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "apiKey", Label: "API Key", Type: "password", Required: true},
		},
		Collectors: []provider.Collector{
			{ID: "credit_balance", Name: "Credit Balance", MetricType: provider.MetricTypeCurrency, Unit: "USD", RefreshInterval: 300,
				Description: "Remaining OpenRouter API credits", DisplayHint: "currency", Trend: true,
				Thresholds: &provider.Thresholds{Warning: 2, Critical: 0.5, Direction: "below"}},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "low-credits", Name: "Low Credits", CollectorID: "credit_balance", Condition: provider.ConditionLT,
				DefaultThresholdNumeric: provider.Float(10), Message: "OpenRouter credits below $10"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchOpenRouter(ctx, client, baseURL, creds["apiKey"])
		},
	}
}

func fetchOpenRouter(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]provider.SnapshotInput, error) {
	var body struct {
		Data struct {
			TotalCredits float64 `json:"total_credits"`
			TotalUsage   float64 `json:"total_usage"`
		} `json:"data"`
	}

	code, err := getJSON(ctx, client, baseURL+"/api/v1/credits", &body, bearer(apiKey))
	if err != nil {
		return []provider.SnapshotInput{unknown("credit_balance", "USD")}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{authFailed("credit_balance", "USD")}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{unknown("credit_balance", "USD")}, nil
	}

	remaining := roundCents(body.Data.TotalCredits - body.Data.TotalUsage)

	status := provider.StatusHealthy
	if remaining < 5 {
		status = provider.StatusWarning
	}

	return []provider.SnapshotInput{
		{CollectorID: "credit_balance", Value: provider.Float(remaining), Unit: "USD", Status: status},
	}, nil
}
