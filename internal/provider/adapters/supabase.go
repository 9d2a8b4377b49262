package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const supabaseAPIURL = "https://api.supabase.com"

// Supabase reports account connection status by listing projects with the
// OAuth access token.
func Supabase(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:               "supabase",
		Name:             "Supabase",
		Category:         provider.CategoryInfrastructure,
		AuthType:         provider.AuthTypeOAuth2,
		CredentialFields: []provider.CredentialField{},
		Collectors: []provider.Collector{
			{ID: "connection_status", Name: "Connection Status", MetricType: provider.MetricTypeStatus, Unit: "", RefreshInterval: 300,
				Description: "Supabase account connection status", DisplayHint: "status-badge"},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "supabase-disconnected", Name: "Supabase Disconnected", CollectorID: "connection_status", Condition: provider.ConditionStatusIs,
				DefaultThresholdText: provider.Text(provider.AuthFailedValue), Message: "Supabase OAuth token is invalid or expired"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			token := tokenFrom(creds, "serviceRoleKey")
			return fetchConnectionStatus(ctx, client, baseURL+"/v1/projects", bearer(token))
		},
	}
}
