package domain

import (
	"context"
	"errors"

	"github.com/beaconly/beacon/internal/provider"
)

type ConnectRequest struct {
	ProviderID  string
	Label       string
	Credentials map[string]string
}

type ReauthRequest struct {
	ID          string
	Credentials map[string]string
}

type ValidateRequest struct {
	ProviderID  string
	Credentials map[string]string
}

type ValidateResult struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
}

type Service interface {
	Connect(context.Context, ConnectRequest) (ConnectedService, error)
	// Reauth replaces stored credentials, clears the auth-expired flag
	// and re-enables the service.
	Reauth(context.Context, ReauthRequest) (ConnectedService, error)
	Validate(context.Context, ValidateRequest) (ValidateResult, error)
	List(ctx context.Context) ([]ConnectedService, error)
	Get(ctx context.Context, id string) (ConnectedService, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (ConnectedService, error)
	Disconnect(ctx context.Context, id string) error
	// DecryptCredentials is used by the polling pipeline; it never
	// crosses the API boundary.
	DecryptCredentials(service ConnectedService) (provider.Credentials, error)
	LatestSnapshots(ctx context.Context, id string, limit int) ([]MetricSnapshot, error)
}

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidProvider    = errors.New("invalid_provider")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNotFound           = errors.New("not_found")
)
