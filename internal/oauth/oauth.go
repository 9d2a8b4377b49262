package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/provider"
)

// refreshThreshold is how close to expiry an access token may get before
// a poll refreshes it first.
const refreshThreshold = 600 * time.Second

var (
	ErrUnsupportedProvider = errors.New("unsupported_provider")
	ErrExchangeFailed      = errors.New("exchange_failed")
	ErrNoRefreshToken      = errors.New("no_refresh_token")
)

// Tokens is the result of a code exchange or token refresh. ExpiresAt is
// unix seconds; zero means the token does not expire.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    int64
}

// MergeInto folds the tokens into a stored credential set, keeping any
// provider-specific keys already present.
func (t Tokens) MergeInto(creds provider.Credentials) provider.Credentials {
	merged := provider.Credentials{}
	for k, v := range creds {
		merged[k] = v
	}
	merged["access_token"] = t.AccessToken
	if t.RefreshToken != "" {
		merged["refresh_token"] = t.RefreshToken
	}
	if t.ExpiresAt > 0 {
		merged["expires_at"] = strconv.FormatInt(t.ExpiresAt, 10)
	}
	if t.TokenType != "" {
		merged["token_type"] = t.TokenType
	}
	if t.Scope != "" {
		merged["scope"] = t.Scope
	}
	return merged
}

type endpoint struct {
	authorizeURL    string
	tokenURL        string
	scopes          []string
	supportsRefresh bool
	// basicAuth sends client credentials in the Authorization header
	// instead of the form body.
	basicAuth bool
}

// Service drives the authorization-code flow for providers connected via
// OAuth instead of a pasted API key.
type Service struct {
	http      *http.Client
	log       *zap.Logger
	clk       clock.Clock
	appURL    string
	endpoints map[string]endpoint
	clients   map[string][2]string // provider id -> {client id, client secret}
}

func New(cfg config.Config, log *zap.Logger, clk clock.Clock) *Service {
	return &Service{
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log.Named("oauth"),
		clk:    clk,
		appURL: strings.TrimRight(cfg.AppURL, "/"),
		endpoints: map[string]endpoint{
			"github": {
				authorizeURL: "https://github.com/login/oauth/authorize",
				tokenURL:     "https://github.com/login/oauth/access_token",
				scopes:       []string{"read:user"},
			},
			"vercel": {
				authorizeURL: "https://vercel.com/oauth/authorize",
				tokenURL:     "https://api.vercel.com/v2/oauth/access_token",
			},
			"sentry": {
				authorizeURL:    "https://sentry.io/oauth/authorize/",
				tokenURL:        "https://sentry.io/oauth/token/",
				scopes:          []string{"org:read", "project:read"},
				supportsRefresh: true,
			},
			"supabase": {
				authorizeURL:    "https://api.supabase.com/v1/oauth/authorize",
				tokenURL:        "https://api.supabase.com/v1/oauth/token",
				supportsRefresh: true,
				basicAuth:       true,
			},
		},
		clients: map[string][2]string{
			"github":   {cfg.OAuth.GitHubClientID, cfg.OAuth.GitHubClientSecret},
			"vercel":   {cfg.OAuth.VercelClientID, cfg.OAuth.VercelClientSecret},
			"sentry":   {cfg.OAuth.SentryClientID, cfg.OAuth.SentryClientSecret},
			"supabase": {cfg.OAuth.SupabaseClientID, cfg.OAuth.SupabaseClientSecret},
		},
	}
}

// Supports reports whether the provider is connected through OAuth.
func (s *Service) Supports(providerID string) bool {
	_, ok := s.endpoints[providerID]
	return ok
}

// SupportsRefresh reports whether the provider issues refresh tokens.
func (s *Service) SupportsRefresh(providerID string) bool {
	ep, ok := s.endpoints[providerID]
	return ok && ep.supportsRefresh
}

func (s *Service) redirectURL(providerID string) string {
	return fmt.Sprintf("%s/api/oauth/%s/callback", s.appURL, providerID)
}

// AuthorizeURL builds the provider consent URL for one connect attempt.
func (s *Service) AuthorizeURL(providerID, state string) (string, error) {
	ep, ok := s.endpoints[providerID]
	if !ok {
		return "", ErrUnsupportedProvider
	}
	client := s.clients[providerID]

	q := url.Values{}
	q.Set("client_id", client[0])
	q.Set("redirect_uri", s.redirectURL(providerID))
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(ep.scopes) > 0 {
		q.Set("scope", strings.Join(ep.scopes, " "))
	}
	return ep.authorizeURL + "?" + q.Encode(), nil
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, providerID, code string) (Tokens, error) {
	ep, ok := s.endpoints[providerID]
	if !ok {
		return Tokens{}, ErrUnsupportedProvider
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.redirectURL(providerID))

	return s.tokenRequest(ctx, providerID, ep, form)
}

// Refresh trades a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, providerID, refreshToken string) (Tokens, error) {
	ep, ok := s.endpoints[providerID]
	if !ok || !ep.supportsRefresh {
		return Tokens{}, ErrUnsupportedProvider
	}
	if refreshToken == "" {
		return Tokens{}, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tokens, err := s.tokenRequest(ctx, providerID, ep, form)
	if err != nil {
		return Tokens{}, err
	}
	// Some providers omit the refresh token on rotation; keep the old one.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// NeedsRefresh reports whether stored credentials expire soon enough that
// a poll should refresh them first.
func (s *Service) NeedsRefresh(creds provider.Credentials) bool {
	raw, ok := creds["expires_at"]
	if !ok || raw == "" {
		return false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || expiresAt == 0 {
		return false
	}
	return time.Unix(expiresAt, 0).Sub(s.clk.Now()) < refreshThreshold
}

func (s *Service) tokenRequest(ctx context.Context, providerID string, ep endpoint, form url.Values) (Tokens, error) {
	client := s.clients[providerID]

	if !ep.basicAuth {
		form.Set("client_id", client[0])
		form.Set("client_secret", client[1])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Tokens{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if ep.basicAuth {
		req.SetBasicAuth(client[0], client[1])
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return Tokens{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.log.Warn("token exchange rejected",
			zap.String("provider_id", providerID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return Tokens{}, fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		ExpiresIn    int64  `json:"expires_in"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Tokens{}, err
	}
	// GitHub returns 200 with an error field for bad codes.
	if body.Error != "" || body.AccessToken == "" {
		return Tokens{}, fmt.Errorf("%w: %s", ErrExchangeFailed, body.Error)
	}

	tokens := Tokens{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
		Scope:        body.Scope,
	}
	if body.ExpiresIn > 0 {
		tokens.ExpiresAt = s.clk.Now().Add(time.Duration(body.ExpiresIn) * time.Second).Unix()
	}
	return tokens, nil
}
