package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const resendAPIURL = "https://api.resend.com"

// Resend reports API connection status by listing domains.
func Resend(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "resend",
		Name:     "Resend",
		Category: provider.CategoryEmail,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "apiKey", Label: "API Key", Type: "password", Required: true},
		},
		Collectors: []provider.Collector{
			{ID: "connection_status", Name: "Connection Status", MetricType: provider.MetricTypeStatus, Unit: "", RefreshInterval: 300,
				Description: "Resend API connection status", DisplayHint: "status-badge"},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "resend-disconnected", Name: "Resend Disconnected", CollectorID: "connection_status", Condition: provider.ConditionStatusIs,
				DefaultThresholdText: provider.Text(provider.AuthFailedValue), Message: "Resend API key is invalid or expired"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchConnectionStatus(ctx, client, baseURL+"/domains", bearer(creds["apiKey"]))
		},
	}
}

// fetchConnectionStatus implements the shared probe shape used by the
// status-only adapters: 401/403 is credential rot, any 2xx means connected,
// everything else is no signal.
func fetchConnectionStatus(ctx context.Context, client *http.Client, url string, auth header) ([]provider.SnapshotInput, error) {
	code, err := getJSON(ctx, client, url, nil, auth)
	if err != nil {
		return []provider.SnapshotInput{unknown("connection_status", "")}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{authFailed("connection_status", "")}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{unknown("connection_status", "")}, nil
	}
	return []provider.SnapshotInput{
		{CollectorID: "connection_status", ValueText: provider.Text("connected"), Unit: "", Status: provider.StatusHealthy},
	}, nil
}
