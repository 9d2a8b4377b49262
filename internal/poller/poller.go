// Package poller drives the polling pipeline: decrypt credentials, fetch
// metrics through the provider registry, persist snapshots, evaluate
// alert configs and fan out notifications.
package poller

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/alert/engine"
	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/crypto"
	"github.com/beaconly/beacon/internal/notification"
	"github.com/beaconly/beacon/internal/oauth"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/telemetry"
	"github.com/beaconly/beacon/internal/usercontext"
)

// maxFailures is how many consecutive failed polls a service survives
// before it is marked auth-expired and disabled.
const maxFailures = 5

// maxConcurrentPolls bounds the sweep fan-out.
const maxConcurrentPolls = 8

const simulatedStatus = "simulated"

type Outcome string

const (
	OutcomeInvalid    Outcome = "invalid"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeBadRequest Outcome = "bad_request"
	OutcomeFailed     Outcome = "failed"
	OutcomePolled     Outcome = "polled"
)

// Result summarizes one poll of one service.
type Result struct {
	ServiceID   string  `json:"service_id"`
	Outcome     Outcome `json:"outcome"`
	Snapshots   int     `json:"snapshots"`
	AlertsFired int     `json:"alerts_fired"`
	// Disabled is set when this poll crossed the failure threshold and
	// turned the service off.
	Disabled bool `json:"disabled,omitempty"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Services servicedomain.Repository
	Alerts   alertdomain.Repository
	Registry *provider.Registry
	Key      crypto.Key
	OAuth    *oauth.Service
	Sender   *notification.Sender
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Poller struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clk      clock.Clock
	services servicedomain.Repository
	alerts   alertdomain.Repository
	registry *provider.Registry
	key      crypto.Key
	oauth    *oauth.Service
	sender   *notification.Sender
	metrics  *telemetry.Metrics
}

func New(p Params) *Poller {
	return &Poller{
		db:       p.DB,
		log:      p.Log.Named("poller"),
		genID:    p.GenID,
		clk:      p.Clock,
		services: p.Services,
		alerts:   p.Alerts,
		registry: p.Registry,
		key:      p.Key,
		oauth:    p.OAuth,
		sender:   p.Sender,
		metrics:  p.Metrics,
	}
}

// PollService runs one full poll cycle for a single service.
func (p *Poller) PollService(ctx context.Context, serviceID string) Result {
	id, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil {
		return p.finish(Result{ServiceID: serviceID, Outcome: OutcomeInvalid})
	}

	service, err := p.services.FindByID(ctx, p.db, id)
	if err != nil {
		p.log.Error("service lookup failed", zap.String("service_id", serviceID), zap.Error(err))
		return p.finish(Result{ServiceID: serviceID, Outcome: OutcomeFailed})
	}
	if service == nil {
		return p.finish(Result{ServiceID: serviceID, Outcome: OutcomeNotFound})
	}
	if !service.Enabled {
		return p.finish(Result{ServiceID: serviceID, Outcome: OutcomeSkipped})
	}

	started := p.clk.Now()
	result := p.poll(ctx, service)
	if p.metrics != nil {
		p.metrics.ObservePollDuration(service.ProviderID, p.clk.Now().Sub(started).Seconds())
	}
	return p.finish(result)
}

// PollAll sweeps every enabled service with bounded concurrency.
func (p *Poller) PollAll(ctx context.Context) []Result {
	services, err := p.services.ListEnabled(ctx, p.db)
	if err != nil {
		p.log.Error("enabled service listing failed", zap.Error(err))
		return nil
	}

	workers := pool.NewWithResults[Result]().WithMaxGoroutines(maxConcurrentPolls)
	for _, service := range services {
		id := service.ID.String()
		workers.Go(func() Result {
			return p.PollService(ctx, id)
		})
	}
	return workers.Wait()
}

// Simulate injects one synthetic reading for an owned service and
// evaluates its alerts, skipping cooldown so the user always sees the
// outcome. The reading is persisted with a dedicated status so real and
// simulated history stay distinguishable.
func (p *Poller) Simulate(ctx context.Context, serviceID, collectorID string, value *float64, valueText *string) (Result, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return Result{}, servicedomain.ErrUnauthenticated
	}

	id, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil {
		return Result{}, servicedomain.ErrInvalidID
	}
	service, err := p.services.FindByIDForUser(ctx, p.db, user.ID, id)
	if err != nil {
		return Result{}, err
	}
	if service == nil {
		return Result{}, servicedomain.ErrNotFound
	}

	collector, ok := p.registry.Collector(service.ProviderID, collectorID)
	if !ok {
		return Result{}, alertdomain.ErrInvalidCollector
	}

	now := p.clk.Now()
	snapshot := &servicedomain.MetricSnapshot{
		ID:          p.genID.Generate(),
		ServiceID:   service.ID,
		CollectorID: collectorID,
		Value:       value,
		ValueText:   valueText,
		Unit:        collector.Unit,
		Status:      simulatedStatus,
		CollectedAt: now,
	}
	if err := p.services.InsertSnapshots(ctx, p.db, []*servicedomain.MetricSnapshot{snapshot}); err != nil {
		return Result{}, err
	}

	fired := p.evaluateAlerts(ctx, service, []*servicedomain.MetricSnapshot{snapshot}, true)
	return Result{
		ServiceID:   serviceID,
		Outcome:     OutcomePolled,
		Snapshots:   1,
		AlertsFired: fired,
	}, nil
}

func (p *Poller) poll(ctx context.Context, service *servicedomain.ConnectedService) Result {
	result := Result{ServiceID: service.ID.String()}

	// A service pointing at a retired provider is a configuration
	// problem, not a credential one: no failure accounting.
	if _, ok := p.registry.Get(service.ProviderID); !ok {
		p.log.Warn("service references unknown provider",
			zap.String("service_id", service.ID.String()),
			zap.String("provider_id", service.ProviderID),
		)
		result.Outcome = OutcomeBadRequest
		return result
	}

	creds, err := p.decrypt(service)
	if err != nil {
		p.log.Warn("credential decryption failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		result.Outcome = OutcomeFailed
		result.Disabled = p.recordFailure(ctx, service)
		return result
	}

	creds = p.maybeRefreshTokens(ctx, service, creds)

	// Adapters degrade transient upstream trouble (network errors, 5xx,
	// timeouts) to unknown readings themselves; an error here means the
	// adapter hit something genuinely unexpected and counts as a failure.
	inputs, err := p.registry.FetchMetrics(ctx, service.ProviderID, creds)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Disabled = p.recordFailure(ctx, service)
		return result
	}

	now := p.clk.Now()
	snapshots := make([]*servicedomain.MetricSnapshot, 0, len(inputs))
	authFailed := false
	for _, in := range inputs {
		if in.ValueText != nil && *in.ValueText == provider.AuthFailedValue {
			authFailed = true
		}
		snapshots = append(snapshots, &servicedomain.MetricSnapshot{
			ID:          p.genID.Generate(),
			ServiceID:   service.ID,
			CollectorID: in.CollectorID,
			Value:       in.Value,
			ValueText:   in.ValueText,
			Unit:        in.Unit,
			Status:      string(in.Status),
			CollectedAt: now,
		})
	}

	// Snapshot persistence failures are logged, never fatal: a full
	// metric store must not stop alert evaluation.
	if err := p.services.InsertSnapshots(ctx, p.db, snapshots); err != nil {
		p.log.Error("snapshot insert failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
	} else if p.metrics != nil {
		p.metrics.RecordSnapshots(len(snapshots))
	}

	if authFailed {
		result.Outcome = OutcomeFailed
		result.Snapshots = len(snapshots)
		result.Disabled = p.recordFailure(ctx, service)
		if !result.Disabled {
			result.AlertsFired = p.evaluateAlerts(ctx, service, snapshots, false)
		}
		return result
	}

	// Empty and all-unknown cycles are successes: not every poll yields
	// data, and degraded readings are retried silently next cycle.
	err = p.services.UpdateCounters(ctx, p.db, service.ID, map[string]any{
		"consecutive_failures": 0,
		"auth_expired":         false,
		"last_polled_at":       now,
		"updated_at":           now,
	})
	if err != nil {
		p.log.Error("poll bookkeeping update failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
	}

	result.Outcome = OutcomePolled
	result.Snapshots = len(snapshots)
	result.AlertsFired = p.evaluateAlerts(ctx, service, snapshots, false)
	return result
}

// recordFailure bumps the consecutive failure counter with an atomic
// column increment and disables the service once it crosses the
// threshold. Returns true when this call disabled the service.
func (p *Poller) recordFailure(ctx context.Context, service *servicedomain.ConnectedService) bool {
	now := p.clk.Now()
	count, err := p.services.IncrementFailures(ctx, p.db, service.ID, now)
	if err != nil {
		p.log.Error("failure bookkeeping update failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		return false
	}
	service.ConsecutiveFailures = count

	if count < maxFailures {
		return false
	}

	err = p.services.UpdateCounters(ctx, p.db, service.ID, map[string]any{
		"auth_expired": true,
		"enabled":      false,
		"updated_at":   now,
	})
	if err != nil {
		p.log.Error("service disable update failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		return false
	}
	p.log.Warn("service disabled after repeated failures",
		zap.String("service_id", service.ID.String()),
		zap.String("provider_id", service.ProviderID),
		zap.Int("consecutive_failures", count),
	)
	return true
}

func (p *Poller) evaluateAlerts(ctx context.Context, service *servicedomain.ConnectedService, snapshots []*servicedomain.MetricSnapshot, skipCooldown bool) int {
	configs, err := p.alerts.ListEnabledForService(ctx, p.db, service.ID)
	if err != nil {
		p.log.Error("alert config listing failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		return 0
	}
	if len(configs) == 0 {
		return 0
	}

	now := p.clk.Now()
	fired := 0
	var wg conc.WaitGroup
	for _, config := range configs {
		for _, snapshot := range snapshots {
			sample := engine.Sample{
				CollectorID: snapshot.CollectorID,
				Value:       snapshot.Value,
				ValueText:   snapshot.ValueText,
			}
			if !engine.ShouldFire(now, *config, sample, skipCooldown) {
				continue
			}

			event := &alertdomain.AlertEvent{
				ID:            p.genID.Generate(),
				AlertConfigID: config.ID,
				ServiceID:     service.ID,
				UserID:        service.UserID,
				CollectorID:   config.CollectorID,
				Condition:     config.Condition,
				Threshold:     config.Threshold(),
				Value:         snapshot.Value,
				ValueText:     snapshot.ValueText,
				Message:       config.Message,
				CreatedAt:     now,
			}
			if err := p.alerts.InsertEvent(ctx, p.db, event); err != nil {
				p.log.Error("alert event insert failed",
					zap.String("alert_config_id", config.ID.String()),
					zap.Error(err),
				)
				continue
			}
			if err := p.alerts.MarkNotified(ctx, p.db, config.ID, now); err != nil {
				p.log.Error("alert cooldown update failed",
					zap.String("alert_config_id", config.ID.String()),
					zap.Error(err),
				)
			}

			fired++
			if p.metrics != nil {
				p.metrics.RecordAlertFired()
			}

			if service.UserEmail == "" {
				continue
			}
			email := p.buildEmail(service, config, snapshot)
			wg.Go(func() {
				p.sender.SendAlertEmail(ctx, email)
			})
		}
	}
	wg.Wait()
	return fired
}

func (p *Poller) buildEmail(service *servicedomain.ConnectedService, config *alertdomain.AlertConfig, snapshot *servicedomain.MetricSnapshot) notification.AlertEmail {
	providerName := service.ProviderID
	metricName := config.CollectorID
	if adapter, ok := p.registry.Get(service.ProviderID); ok {
		providerName = adapter.Name
	}
	if collector, ok := p.registry.Collector(service.ProviderID, config.CollectorID); ok {
		metricName = collector.Name
	}

	value := ""
	switch {
	case snapshot.Value != nil:
		value = strconv.FormatFloat(*snapshot.Value, 'f', -1, 64)
	case snapshot.ValueText != nil:
		value = *snapshot.ValueText
	}

	return notification.AlertEmail{
		To:           service.UserEmail,
		ServiceID:    service.ID.String(),
		ServiceLabel: service.Label,
		ProviderName: providerName,
		MetricName:   metricName,
		Condition:    config.Condition,
		Threshold:    config.Threshold(),
		Value:        value,
		Message:      config.Message,
	}
}

func (p *Poller) maybeRefreshTokens(ctx context.Context, service *servicedomain.ConnectedService, creds provider.Credentials) provider.Credentials {
	if !p.oauth.SupportsRefresh(service.ProviderID) || !p.oauth.NeedsRefresh(creds) {
		return creds
	}

	tokens, err := p.oauth.Refresh(ctx, service.ProviderID, creds["refresh_token"])
	if err != nil {
		// The poll continues with the stale token; a 401 downstream is
		// recorded through the normal failure path.
		p.log.Warn("token refresh failed",
			zap.String("service_id", service.ID.String()),
			zap.Error(err),
		)
		return creds
	}

	refreshed := tokens.MergeInto(creds)
	if blob, err := p.encrypt(refreshed); err == nil {
		service.Credentials = blob
		if err := p.services.UpdateCredentials(ctx, p.db, service.ID, blob, p.clk.Now()); err != nil {
			p.log.Error("refreshed credential persistence failed",
				zap.String("service_id", service.ID.String()),
				zap.Error(err),
			)
		}
	}
	return refreshed
}

func (p *Poller) finish(result Result) Result {
	if p.metrics != nil {
		p.metrics.RecordPoll(string(result.Outcome))
	}
	return result
}

func (p *Poller) decrypt(service *servicedomain.ConnectedService) (provider.Credentials, error) {
	plaintext, err := crypto.Decrypt(service.Credentials, p.key)
	if err != nil {
		return nil, err
	}
	var creds provider.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, &crypto.DecryptionError{Reason: "credential payload is not valid JSON"}
	}
	return creds, nil
}

func (p *Poller) encrypt(creds provider.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(payload, p.key)
}
