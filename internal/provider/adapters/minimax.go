package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const minimaxAPIURL = "https://api.minimax.io"

// MiniMax reports API connection status by listing models.
func MiniMax(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "minimax",
		Name:     "MiniMax",
		Category: provider.CategoryAI,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "apiKey", Label: "API Key", Type: "password", Required: true},
		},
		Collectors: []provider.Collector{
			{ID: "connection_status", Name: "Connection Status", MetricType: provider.MetricTypeStatus, Unit: "", RefreshInterval: 300,
				Description: "MiniMax API connection status", DisplayHint: "status-badge"},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "minimax-disconnected", Name: "MiniMax Disconnected", CollectorID: "connection_status", Condition: provider.ConditionStatusIs,
				DefaultThresholdText: provider.Text(provider.AuthFailedValue), Message: "MiniMax API key is invalid or expired"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchConnectionStatus(ctx, client, baseURL+"/v1/models", bearer(creds["apiKey"]))
		},
	}
}
