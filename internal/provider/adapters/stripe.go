package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const stripeAPIURL = "https://api.stripe.com"

// Stripe reports the available USD account balance.
func Stripe(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "stripe",
		Name:     "Stripe",
		Category: provider.CategoryPayment,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "apiKey", Label: "Restricted API Key", Type: "password", Required: true, Placeholder: "rk_live_..."},
		},
		Collectors: []provider.Collector{
			{ID: "account_balance", Name: "Account Balance", MetricType: provider.MetricTypeCurrency, Unit: "USD", RefreshInterval: 300,
				Description: "Available Stripe account balance in USD", DisplayHint: "currency", Trend: true,
				Thresholds: &provider.Thresholds{Warning: 100, Critical: 20, Direction: "below"}},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "low-balance", Name: "Low Balance", CollectorID: "account_balance", Condition: provider.ConditionLT,
				DefaultThresholdNumeric: provider.Float(100), Message: "Stripe balance below $100"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchStripe(ctx, client, baseURL, creds["apiKey"])
		},
	}
}

func fetchStripe(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]provider.SnapshotInput, error) {
	var body struct {
		Available []struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"available"`
	}

	code, err := getJSON(ctx, client, baseURL+"/v1/balance", &body, bearer(apiKey))
	if err != nil {
		return []provider.SnapshotInput{unknown("account_balance", "USD")}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{authFailed("account_balance", "USD")}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{unknown("account_balance", "USD")}, nil
	}

	var balance float64
	for _, a := range body.Available {
		if a.Currency == "usd" {
			balance = float64(a.Amount) / 100
			break
		}
	}

	status := provider.StatusHealthy
	switch {
	case balance < 20:
		status = provider.StatusCritical
	case balance < 100:
		status = provider.StatusWarning
	}

	return []provider.SnapshotInput{
		{CollectorID: "account_balance", Value: provider.Float(balance), Unit: "USD", Status: status},
	}, nil
}
