package domain

import (
	"context"
	"errors"

	"github.com/beaconly/beacon/internal/provider"
)

type CreateAlertRequest struct {
	ServiceID        string
	CollectorID      string
	Condition        provider.Condition
	ThresholdNumeric *float64
	ThresholdText    *string
	Message          string
}

type UpdateAlertRequest struct {
	ID               string
	Condition        *provider.Condition
	ThresholdNumeric *float64
	ThresholdText    *string
	Message          *string
	Enabled          *bool
}

type Service interface {
	Create(context.Context, CreateAlertRequest) (AlertConfig, error)
	Update(context.Context, UpdateAlertRequest) (AlertConfig, error)
	Delete(ctx context.Context, id string) error
	ListForService(ctx context.Context, serviceID string) ([]AlertConfig, error)
	List(ctx context.Context) ([]AlertConfig, error)
	ListEvents(ctx context.Context, limit int) ([]AlertEvent, error)
	ListEventsForService(ctx context.Context, serviceID string, limit int) ([]AlertEvent, error)
}

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidCondition = errors.New("invalid_condition")
	ErrInvalidThreshold = errors.New("invalid_threshold")
	ErrInvalidCollector = errors.New("invalid_collector")
	ErrNotFound         = errors.New("not_found")
)
