package adapters

import (
	"context"
	"fmt"
	"net/http"

	"github.com/beaconly/beacon/internal/provider"
)

const vercelAPIURL = "https://api.vercel.com"

// Vercel reports project counts and the state of the most recent deployment
// across all projects.
func Vercel(client *http.Client, baseURL string) provider.Adapter {
	return provider.Adapter{
		ID:       "vercel",
		Name:     "Vercel",
		Category: provider.CategoryHosting,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "token", Label: "API Token", Type: "password", Required: true, Placeholder: "vercel_..."},
		},
		Collectors: []provider.Collector{
			{ID: "total_projects", Name: "Total Projects", MetricType: provider.MetricTypeCount, Unit: "", RefreshInterval: 300,
				Description: "Number of Vercel projects in your account", DisplayHint: "number"},
			{ID: "projects_failing", Name: "Projects Failing", MetricType: provider.MetricTypeCount, Unit: "", RefreshInterval: 300,
				Description: "Projects with a failed latest deployment", DisplayHint: "number", Trend: true,
				Thresholds: &provider.Thresholds{Warning: 1, Critical: 3, Direction: "above", Max: 100}},
			{ID: "latest_deployment", Name: "Latest Deployment", MetricType: provider.MetricTypeStatus, Unit: "", RefreshInterval: 300,
				Description: "State of the most recent deployment across all projects", DisplayHint: "status-badge"},
		},
		AlertTemplates: []provider.AlertTemplate{
			{ID: "projects-failing", Name: "Projects Failing", CollectorID: "projects_failing", Condition: provider.ConditionGT,
				DefaultThresholdNumeric: provider.Float(0), Message: "One or more Vercel projects have a failed deployment"},
			{ID: "deploy-failed", Name: "Deployment Failed", CollectorID: "latest_deployment", Condition: provider.ConditionStatusIs,
				DefaultThresholdText: provider.Text("ERROR"), Message: "Latest deployment failed"},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return fetchVercel(ctx, client, baseURL, tokenFrom(creds, "token"))
		},
	}
}

type vercelDeployment struct {
	ReadyState string `json:"readyState"`
	CreatedAt  int64  `json:"createdAt"`
}

func fetchVercel(ctx context.Context, client *http.Client, baseURL, token string) ([]provider.SnapshotInput, error) {
	degraded := []provider.SnapshotInput{
		unknown("total_projects", ""),
		unknown("projects_failing", ""),
		unknown("latest_deployment", ""),
	}

	teamID := vercelTeamID(ctx, client, baseURL, token)

	projectsURL := baseURL + "/v9/projects?limit=100"
	if teamID != "" {
		projectsURL = fmt.Sprintf("%s/v9/projects?teamId=%s&limit=100", baseURL, teamID)
	}

	var body struct {
		Projects []struct {
			LatestDeployments []vercelDeployment `json:"latestDeployments"`
		} `json:"projects"`
	}
	code, err := getJSON(ctx, client, projectsURL, &body, bearer(token))
	if err != nil {
		return degraded, nil
	}
	if isAuthStatus(code) {
		return []provider.SnapshotInput{
			authFailed("total_projects", ""),
			authFailed("projects_failing", ""),
			authFailed("latest_deployment", ""),
		}, nil
	}
	if code < 200 || code >= 300 {
		return degraded, nil
	}

	totalProjects := len(body.Projects)
	projectsFailing := 0
	var latest *vercelDeployment
	for _, p := range body.Projects {
		if len(p.LatestDeployments) == 0 {
			continue
		}
		dep := p.LatestDeployments[0]
		if dep.ReadyState == "ERROR" {
			projectsFailing++
		}
		if latest == nil || dep.CreatedAt > latest.CreatedAt {
			d := dep
			latest = &d
		}
	}

	status := provider.StatusHealthy
	switch {
	case projectsFailing >= 3:
		status = provider.StatusCritical
	case projectsFailing >= 1:
		status = provider.StatusWarning
	case totalProjects == 0:
		status = provider.StatusUnknown
	}

	var latestState *string
	if latest != nil {
		latestState = provider.Text(latest.ReadyState)
	}

	return []provider.SnapshotInput{
		{CollectorID: "total_projects", Value: provider.Float(float64(totalProjects)), Unit: "", Status: status},
		{CollectorID: "projects_failing", Value: provider.Float(float64(projectsFailing)), Unit: "", Status: status},
		{CollectorID: "latest_deployment", ValueText: latestState, Unit: "", Status: status},
	}, nil
}

// vercelTeamID resolves the user's default team, falling back to the first
// team the token can see. Failures here are soft: projects are then listed
// without a team scope.
func vercelTeamID(ctx context.Context, client *http.Client, baseURL, token string) string {
	var userBody struct {
		User struct {
			DefaultTeamID string `json:"defaultTeamId"`
		} `json:"user"`
	}
	code, err := getJSON(ctx, client, baseURL+"/v2/user", &userBody, bearer(token))
	if err == nil && code >= 200 && code < 300 && userBody.User.DefaultTeamID != "" {
		return userBody.User.DefaultTeamID
	}

	var teamsBody struct {
		Teams []struct {
			ID string `json:"id"`
		} `json:"teams"`
	}
	code, err = getJSON(ctx, client, baseURL+"/v2/teams", &teamsBody, bearer(token))
	if err == nil && code >= 200 && code < 300 && len(teamsBody.Teams) > 0 {
		return teamsBody.Teams[0].ID
	}
	return ""
}
