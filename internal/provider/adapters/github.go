package adapters

import (
	"context"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const githubAPIURL = "https://api.github.com"

// GitHub reports Actions minutes usage from the billing endpoint.
func GitHub(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "github",
		Name:     "GitHub",
		Category: provider.CategoryHosting,
		AuthType: provider.AuthTypeOAuth2,
		CredentialFields: []provider.CredentialField{
			{Key: "token", Label: "Personal Access Token", Type: "password", Required: true, Placeholder: "ghp_..."},
		},
		Collectors: []provider.Collector{
			{ID: "actions_minutes_used", Name: "Actions Minutes Used", MetricType: provider.MetricTypeCount, Unit: "minutes", RefreshInterval: 300, Trend: true,
				Thresholds: &provider.Thresholds{Warning: 80, Critical: 95, Direction: "above", Max: 100}},
			{ID: "actions_minutes_limit", Name: "Actions Minutes Limit", MetricType: provider.MetricTypeCount, Unit: "minutes", RefreshInterval: 300},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "actions-usage", Name: "High Actions Usage", CollectorID: "actions_minutes_used", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(1600), Message: "GitHub Actions usage > 80%"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchGitHub(ctx, client, baseURL, tokenFrom(creds, "token"))
		},
	}
}

func fetchGitHub(ctx context.Context, client *http.Client, baseURL, token string) ([]provider.SnapshotInput, error) {
	var body struct {
		TotalMinutesUsed float64 `json:"total_minutes_used"`
		IncludedMinutes  float64 `json:"included_minutes"`
	}

	code, err := getJSON(ctx, client, baseURL+"/user/settings/billing/actions", &body,
		bearer(token),
		header{key: "X-GitHub-Api-Version", value: "2022-11-28"},
		header{key: "Accept", value: "application/vnd.github+json"},
	)
	if err != nil {
		return []provider.SnapshotInput{
			unknown("actions_minutes_used", "minutes"),
			unknown("actions_minutes_limit", "minutes"),
		}, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("actions_minutes_used", "minutes"),
			authFailed("actions_minutes_limit", "minutes"),
		}, nil
	}
	if code < 200 || code >= 300 {
		return []provider.SnapshotInput{
			unknown("actions_minutes_used", "minutes"),
			unknown("actions_minutes_limit", "minutes"),
		}, nil
	}

	status := provider.StatusHealthy
	if body.IncludedMinutes > 0 {
		pct := body.TotalMinutesUsed / body.IncludedMinutes * 100
		switch {
		case pct > 95:
			status = provider.StatusCritical
		case pct > 80:
			status = provider.StatusWarning
		}
	}

	return []provider.SnapshotInput{
		{CollectorID: "actions_minutes_used", Value: provider.Float(body.TotalMinutesUsed), Unit: "minutes", Status: status},
		{CollectorID: "actions_minutes_limit", Value: provider.Float(body.IncludedMinutes), Unit: "minutes", Status: status},
	}, nil
}
