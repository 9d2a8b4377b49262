package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const minRefreshInterval = 60

var validMetricTypes = map[MetricType]bool{
	MetricTypeCurrency:   true,
	MetricTypePercentage: true,
	MetricTypeCount:      true,
	MetricTypeStatus:     true,
	MetricTypeBoolean:    true,
}

// Registry is the closed set of provider adapters, constructed once at
// process start and passed to the dispatcher and orchestrator.
type Registry struct {
	log      *zap.Logger
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry from the given adapters. Registering an
// invalid adapter is a programming error and panics at startup.
func NewRegistry(log *zap.Logger, adapters ...Adapter) *Registry {
	r := &Registry{
		log:      log.Named("provider.registry"),
		adapters: make(map[string]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register validates and adds one adapter. Invalid adapters panic: the
// provider set is compiled in, so a bad definition can never be a runtime
// user error.
func (r *Registry) Register(a Adapter) {
	if err := validateAdapter(a); err != nil {
		panic(fmt.Sprintf("provider: invalid adapter %q: %v", a.ID, err))
	}
	if _, exists := r.adapters[a.ID]; exists {
		panic(fmt.Sprintf("provider: duplicate adapter id %q", a.ID))
	}
	r.adapters[a.ID] = a
	r.order = append(r.order, a.ID)
}

// Get returns the adapter for a provider id.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Collector resolves a collector declared by the given provider.
func (r *Registry) Collector(providerID, collectorID string) (Collector, bool) {
	a, ok := r.adapters[providerID]
	if !ok {
		return Collector{}, false
	}
	for _, c := range a.Collectors {
		if c.ID == collectorID {
			return c, true
		}
	}
	return Collector{}, false
}

// FetchMetrics dispatches a metric collection to the matching adapter.
// Unknown or retired providers log a warning and return an empty result so
// one stale service can never break the polling loop for others.
func (r *Registry) FetchMetrics(ctx context.Context, providerID string, creds Credentials) ([]SnapshotInput, error) {
	a, ok := r.adapters[providerID]
	if !ok {
		r.log.Warn("unknown provider, skipping collection", zap.String("provider_id", providerID))
		return []SnapshotInput{}, nil
	}
	return a.Fetch(ctx, creds)
}

// ValidateCredentials performs a live fetch to validate credentials at
// connect time. Credentials are valid when the provider answered with any
// status other than unknown and did not report an auth failure.
func (r *Registry) ValidateCredentials(ctx context.Context, providerID string, creds Credentials) (bool, HealthStatus, error) {
	a, ok := r.adapters[providerID]
	if !ok {
		return false, StatusUnknown, ErrUnknownProvider
	}

	snapshots, err := a.Fetch(ctx, creds)
	if err != nil || len(snapshots) == 0 {
		return false, StatusUnknown, nil
	}

	status := snapshots[0].Status
	if status == StatusUnknown {
		return false, status, nil
	}
	for _, s := range snapshots {
		if s.ValueText != nil && *s.ValueText == AuthFailedValue {
			return false, status, nil
		}
	}
	return true, status, nil
}

func validateAdapter(a Adapter) error {
	if a.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if a.Fetch == nil {
		return fmt.Errorf("fetch function must not be nil")
	}
	if len(a.Collectors) == 0 {
		return fmt.Errorf("adapter must declare at least one collector")
	}
	for i, c := range a.Collectors {
		if c.RefreshInterval < minRefreshInterval {
			return fmt.Errorf("collectors[%d].refresh_interval must be >= %d seconds, got %d", i, minRefreshInterval, c.RefreshInterval)
		}
		if !validMetricTypes[c.MetricType] {
			return fmt.Errorf("collectors[%d].metric_type %q is not valid", i, c.MetricType)
		}
	}
	return nil
}
