package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beaconly/beacon/internal/provider"
)

const openaiAPIURL = "https://api.openai.com"

// OpenAI reports remaining credit grants and month-to-date usage from the
// dashboard billing endpoints.
func OpenAI(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "openai",
		Name:     "OpenAI",
		Category: provider.CategoryAI,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "apiKey", Label: "API Key", Type: "password", Required: true, Placeholder: "sk-..."},
		},
		Collectors: []provider.Collector{
			{ID: "credit_balance", Name: "Credit Balance", MetricType: provider.MetricTypeCurrency, Unit: "USD", RefreshInterval: 300, DisplayHint: "currency", Trend: true},
			{ID: "monthly_usage", Name: "Monthly Usage", MetricType: provider.MetricTypeCurrency, Unit: "USD", RefreshInterval: 300, DisplayHint: "currency", Trend: true},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "low-credits", Name: "Low Credits", CollectorID: "credit_balance", Condition: provider.ConditionLT,
				DefaultThresholdNumeric: provider.Float(5), Message: "OpenAI credits below $5"},
			{ID: "high-usage", Name: "High Usage", CollectorID: "monthly_usage", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(50), Message: "OpenAI monthly usage > $50"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchOpenAI(ctx, client, baseURL, creds["apiKey"])
		},
	}
}

func fetchOpenAI(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]provider.SnapshotInput, error) {
	degraded := []provider.SnapshotInput{
		unknown("credit_balance", "USD"),
		unknown("monthly_usage", "USD"),
	}

	var grantsBody struct {
		Grants struct {
			Data []struct {
				GrantAmount float64 `json:"grant_amount"`
				UsedAmount  float64 `json:"used_amount"`
			} `json:"data"`
		} `json:"grants"`
	}
	code, err := getJSON(ctx, client, baseURL+"/v1/dashboard/billing/credit_grants", &grantsBody, bearer(apiKey))
	if err != nil {
		return degraded, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("credit_balance", "USD"),
			authFailed("monthly_usage", "USD"),
		}, nil
	}
	if code < 200 || code >= 300 {
		return degraded, nil
	}

	now := time.Now().UTC()
	startDate := fmt.Sprintf("%04d-%02d-01", now.Year(), now.Month())
	endDate := fmt.Sprintf("%04d-%02d-%02d", now.Year(), now.Month(), now.Day())

	var usageBody struct {
		TotalUsage float64 `json:"total_usage"` // cents
	}
	usageURL := fmt.Sprintf("%s/v1/dashboard/billing/usage?start_date=%s&end_date=%s", baseURL, startDate, endDate)
	code, err = getJSON(ctx, client, usageURL, &usageBody, bearer(apiKey))
	if err != nil {
		return degraded, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("credit_balance", "USD"),
			authFailed("monthly_usage", "USD"),
		}, nil
	}
	if code < 200 || code >= 300 {
		return degraded, nil
	}

	var creditBalance float64
	for _, g := range grantsBody.Grants.Data {
		creditBalance += g.GrantAmount - g.UsedAmount
	}
	monthlyUsage := usageBody.TotalUsage / 100

	status := provider.StatusHealthy
	if creditBalance < 5 || monthlyUsage > 50 {
		status = provider.StatusWarning
	}

	return []provider.SnapshotInput{
		{CollectorID: "credit_balance", Value: provider.Float(creditBalance), Unit: "USD", Status: status},
		{CollectorID: "monthly_usage", Value: provider.Float(monthlyUsage), Unit: "USD", Status: status},
	}, nil
}
