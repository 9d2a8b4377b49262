// Package adapters holds the compiled-in provider integrations. Each file
// owns one provider: its endpoint URLs, credential schema, collectors,
// response parsing and health heuristics.
package adapters

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/beaconly/beacon/internal/provider"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// fetchTimeout bounds every outbound provider call. There is no retry or
// backoff inside a single poll; a timeout surfaces as a degraded snapshot.
const fetchTimeout = 10 * time.Second

// Module provides the default registry with every adapter registered.
var Module = fx.Module("provider.adapters",
	fx.Provide(NewDefaultRegistry),
)

// NewDefaultRegistry builds the closed provider set.
func NewDefaultRegistry(log *zap.Logger) *provider.Registry {
	client := &http.Client{Timeout: fetchTimeout}
	return provider.NewRegistry(log,
		GitHub(client, githubAPIURL),
		Stripe(client, stripeAPIURL),
		Vercel(client, vercelAPIURL),
		OpenAI(client, openaiAPIURL),
		OpenRouter(client, openrouterAPIURL),
		Sentry(client, sentryAPIURL),
		Resend(client, resendAPIURL),
		MiniMax(client, minimaxAPIURL),
		Supabase(client, supabaseAPIURL),
		UpstashRedis(client, upstashAPIURL),
		UpstashQStash(client, qstashAPIURL),
	)
}

type header struct {
	key   string
	value string
}

// getJSON performs one GET and decodes a 2xx JSON body into out (out may be
// nil). It returns the HTTP status code; a zero code means the request never
// completed (network error or timeout).
func getJSON(ctx context.Context, client *http.Client, url string, out any, headers ...header) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}

	res, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, nil
	}
	if out == nil {
		return res.StatusCode, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return res.StatusCode, err
	}
	return res.StatusCode, nil
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func bearer(token string) header {
	return header{key: "Authorization", value: "Bearer " + token}
}

// unknown builds the degraded snapshot for one collector: no signal, never
// an error.
func unknown(collectorID, unit string) provider.SnapshotInput {
	return provider.SnapshotInput{
		CollectorID: collectorID,
		Unit:        unit,
		Status:      provider.StatusUnknown,
	}
}

// authFailed builds the credential-rot sentinel snapshot for one collector.
func authFailed(collectorID, unit string) provider.SnapshotInput {
	return provider.SnapshotInput{
		CollectorID: collectorID,
		ValueText:   provider.Text(provider.AuthFailedValue),
		Unit:        unit,
		Status:      provider.StatusCritical,
	}
}

// tokenFrom prefers an OAuth access token over a static credential field.
func tokenFrom(creds provider.Credentials, fallbackKeys ...string) string {
	if v := creds["access_token"]; v != "" {
		return v
	}
	for _, k := range fallbackKeys {
		if v := creds[k]; v != "" {
			return v
		}
	}
	return ""
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
