package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/beaconly/beacon/internal/provider"
)

const sentryAPIURL = "https://sentry.io"

// Sentry reports the organization's error event count for the current
// calendar month from the stats_v2 endpoint.
func Sentry(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "sentry",
		Name:     "Sentry",
		Category: provider.CategoryMonitoring,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "authToken", Label: "Auth Token", Type: "password", Required: true},
			{Key: "orgSlug", Label: "Organization Slug", Type: "text", Required: true},
		},
		Collectors: []provider.Collector{
			{ID: "error_count", Name: "Error Count (This Month)", MetricType: provider.MetricTypeCount, Unit: "events", RefreshInterval: 300, Trend: true},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "high-error-count", Name: "High Error Count", CollectorID: "error_count", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(8000), Message: "Sentry errors exceed 8000 this month"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchSentry(ctx, client, baseURL, tokenFrom(creds, "authToken"), creds["orgSlug"])
		},
	}
}

func fetchSentry(ctx context.Context, client *http.Client, baseURL, authToken, orgSlug string) ([]provider.SnapshotInput, error) {
	// Auth probe first so an invalid token is distinguishable from a stats
	// endpoint hiccup.
	code, err := getJSON(ctx, client, baseURL+"/api/0/organizations/", nil, bearer(authToken))
	if err != nil {
		return []provider.SnapshotInput{unknown("error_count", "events")}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{authFailed("error_count", "events")}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{unknown("error_count", "events")}, nil
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	statsURL := fmt.Sprintf(
		"%s/api/0/organizations/%s/stats_v2/?field=sum(quantity)&groupBy=outcome&category=error&start=%s&end=%s",
		baseURL,
		url.PathEscape(orgSlug),
		url.QueryEscape(monthStart.Format(time.RFC3339)),
		url.QueryEscape(now.Format(time.RFC3339)),
	)

	var body struct {
		Groups []struct {
			Totals map[string]float64 `json:"totals"`
		} `json:"groups"`
	}
	code, err = getJSON(ctx, client, statsURL, &body, bearer(authToken))
	if err != nil {
		return []provider.SnapshotInput{unknown("error_count", "events")}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{authFailed("error_count", "events")}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{unknown("error_count", "events")}, nil
	}

	var total float64
	for _, g := range body.Groups {
		total += g.Totals["sum(quantity)"]
	}

	return []provider.SnapshotInput{
		{CollectorID: "error_count", Value: provider.Float(total), Unit: "events", Status: provider.StatusHealthy},
	}, nil
}
