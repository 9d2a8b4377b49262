package poller

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	alertrepo "github.com/beaconly/beacon/internal/alert/repository"
	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/crypto"
	"github.com/beaconly/beacon/internal/migration"
	"github.com/beaconly/beacon/internal/notification"
	"github.com/beaconly/beacon/internal/oauth"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	servicerepo "github.com/beaconly/beacon/internal/service/repository"
	"github.com/beaconly/beacon/internal/usercontext"
	"github.com/beaconly/beacon/pkg/db"
)

type capturedEmail struct {
	to      string
	subject string
}

type captureProvider struct {
	mu     sync.Mutex
	emails []capturedEmail
}

func (c *captureProvider) Send(ctx context.Context, to, subject, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails = append(c.emails, capturedEmail{to: to, subject: subject})
	return nil
}

func (c *captureProvider) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.emails)
}

func (c *captureProvider) last() capturedEmail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emails[len(c.emails)-1]
}

func stubAdapter() provider.Adapter {
	return provider.Adapter{
		ID:       "stub",
		Name:     "Stub",
		Category: provider.CategoryInfrastructure,
		AuthType: provider.AuthTypeAPIKey,
		CredentialFields: []provider.CredentialField{
			{Key: "token", Label: "Token", Type: "password", Required: true},
		},
		Collectors: []provider.Collector{
			{ID: "balance", Name: "Balance", MetricType: provider.MetricTypeCurrency, Unit: "USD", RefreshInterval: 300},
			{ID: "connection_status", Name: "Connection Status", MetricType: provider.MetricTypeStatus, RefreshInterval: 300},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			switch creds["token"] {
			case "bad":
				return []provider.SnapshotInput{
					{CollectorID: "balance", ValueText: provider.Text(provider.AuthFailedValue), Status: provider.StatusCritical},
					{CollectorID: "connection_status", ValueText: provider.Text(provider.AuthFailedValue), Status: provider.StatusCritical},
				}, nil
			case "down":
				return []provider.SnapshotInput{
					{CollectorID: "balance", Status: provider.StatusUnknown},
				}, nil
			case "empty":
				return nil, nil
			case "broken":
				return nil, context.DeadlineExceeded
			case "low":
				return []provider.SnapshotInput{
					{CollectorID: "balance", Value: provider.Float(3.5), Unit: "USD", Status: provider.StatusWarning},
				}, nil
			default:
				return []provider.SnapshotInput{
					{CollectorID: "balance", Value: provider.Float(250), Unit: "USD", Status: provider.StatusHealthy},
				}, nil
			}
		},
	}
}

type fixture struct {
	poller   *Poller
	db       *gorm.DB
	clk      *clock.FakeClock
	node     *snowflake.Node
	services servicedomain.Repository
	alerts   alertdomain.Repository
	emails   *captureProvider
	key      crypto.Key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(conn))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	key, err := crypto.ParseKey(hex.EncodeToString([]byte(strings.Repeat("p", 32))))
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	services := servicerepo.Provide()
	alerts := alertrepo.Provide()
	emails := &captureProvider{}

	cfg := config.Config{AppURL: "https://beacon.example.com"}
	sender := notification.NewSender(notification.Params{
		Config:   cfg,
		Log:      zap.NewNop(),
		Provider: emails,
	})

	p := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Services: services,
		Alerts:   alerts,
		Registry: provider.NewRegistry(zap.NewNop(), stubAdapter()),
		Key:      crypto.Key(key),
		OAuth:    oauth.New(cfg, zap.NewNop(), clk),
		Sender:   sender,
	})

	return &fixture{
		poller:   p,
		db:       conn,
		clk:      clk,
		node:     node,
		services: services,
		alerts:   alerts,
		emails:   emails,
		key:      crypto.Key(key),
	}
}

func (f *fixture) connectService(t *testing.T, token string) *servicedomain.ConnectedService {
	t.Helper()

	payload, err := json.Marshal(provider.Credentials{"token": token})
	require.NoError(t, err)
	blob, err := crypto.Encrypt(payload, f.key)
	require.NoError(t, err)

	service := &servicedomain.ConnectedService{
		ID:          f.node.Generate(),
		UserID:      "user-1",
		UserEmail:   "ops@example.com",
		ProviderID:  "stub",
		Label:       "Stub Prod",
		Credentials: blob,
		Enabled:     true,
		CreatedAt:   f.clk.Now(),
		UpdatedAt:   f.clk.Now(),
	}
	require.NoError(t, f.services.Insert(context.Background(), f.db, service))
	return service
}

func (f *fixture) addAlert(t *testing.T, service *servicedomain.ConnectedService, collectorID string, condition provider.Condition, numeric *float64, text *string) *alertdomain.AlertConfig {
	t.Helper()

	config := &alertdomain.AlertConfig{
		ID:               f.node.Generate(),
		ServiceID:        service.ID,
		UserID:           service.UserID,
		CollectorID:      collectorID,
		Condition:        condition,
		ThresholdNumeric: numeric,
		ThresholdText:    text,
		Enabled:          true,
		CreatedAt:        f.clk.Now(),
		UpdatedAt:        f.clk.Now(),
	}
	require.NoError(t, f.alerts.Insert(context.Background(), f.db, config))
	return config
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *servicedomain.ConnectedService {
	t.Helper()
	service, err := f.services.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, service)
	return service
}

func TestPollServiceHappyPath(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "ok")
	service.ConsecutiveFailures = 2
	require.NoError(t, f.services.Update(context.Background(), f.db, service))

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomePolled, result.Outcome)
	assert.Equal(t, 1, result.Snapshots)
	assert.Zero(t, result.AlertsFired)

	reloaded := f.reload(t, service.ID)
	assert.Zero(t, reloaded.ConsecutiveFailures, "success resets the failure counter")
	require.NotNil(t, reloaded.LastPolledAt)
	assert.Equal(t, f.clk.Now(), reloaded.LastPolledAt.UTC())

	snapshots, err := f.services.LatestSnapshots(context.Background(), f.db, service.ID, 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "balance", snapshots[0].CollectorID)
	assert.Equal(t, 250.0, *snapshots[0].Value)
	assert.Equal(t, "healthy", snapshots[0].Status)
}

func TestPollServiceFiresAlertWithCooldown(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "low")
	config := f.addAlert(t, service, "balance", provider.ConditionLT, provider.Float(5), nil)

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomePolled, result.Outcome)
	assert.Equal(t, 1, result.AlertsFired)
	require.Equal(t, 1, f.emails.count())
	assert.Equal(t, "ops@example.com", f.emails.last().to)
	assert.Contains(t, f.emails.last().subject, "Balance dropped below 5")

	events, err := f.alerts.ListEventsForService(context.Background(), f.db, service.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, config.ID, events[0].AlertConfigID)
	require.NotNil(t, events[0].Value)
	assert.Equal(t, 3.5, *events[0].Value)

	// Thirty minutes later the config is still cooling down.
	f.clk.Advance(30 * time.Minute)
	result = f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomePolled, result.Outcome)
	assert.Zero(t, result.AlertsFired)
	assert.Equal(t, 1, f.emails.count())

	// Past the one hour cooldown it fires again.
	f.clk.Advance(45 * time.Minute)
	result = f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, 1, result.AlertsFired)
	assert.Equal(t, 2, f.emails.count())
}

func TestPollServiceAuthFailureDisablesAfterThreshold(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "bad")
	f.addAlert(t, service, "connection_status", provider.ConditionStatusIs, nil, provider.Text(provider.AuthFailedValue))

	var result Result
	for i := 1; i <= maxFailures; i++ {
		result = f.poller.PollService(context.Background(), service.ID.String())
		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.Equal(t, i, f.reload(t, service.ID).ConsecutiveFailures)
	}

	assert.True(t, result.Disabled)
	reloaded := f.reload(t, service.ID)
	assert.True(t, reloaded.AuthExpired)
	assert.False(t, reloaded.Enabled)

	// Auth-failed readings are still persisted and can fire status alerts
	// while the service is alive.
	assert.Equal(t, 1, f.emails.count())
	assert.Contains(t, f.emails.last().subject, "status changed to auth_failed")

	// Once disabled, further polls skip.
	result = f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomeSkipped, result.Outcome)
}

func TestPollServiceUnknownReadingsAreSilentRetries(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "down")

	// Transient upstream trouble is degraded to unknown by the adapter
	// and never counts toward the reauth threshold, no matter how long
	// the outage lasts.
	for i := 0; i < maxFailures+1; i++ {
		result := f.poller.PollService(context.Background(), service.ID.String())
		assert.Equal(t, OutcomePolled, result.Outcome)
		assert.Equal(t, 1, result.Snapshots)
	}

	reloaded := f.reload(t, service.ID)
	assert.Zero(t, reloaded.ConsecutiveFailures)
	assert.False(t, reloaded.AuthExpired)
	assert.True(t, reloaded.Enabled)

	snapshots, err := f.services.LatestSnapshots(context.Background(), f.db, service.ID, 1)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "unknown", snapshots[0].Status)
}

func TestPollServiceEmptyResultIsSuccess(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "empty")
	service.ConsecutiveFailures = 3
	require.NoError(t, f.services.Update(context.Background(), f.db, service))

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomePolled, result.Outcome)
	assert.Zero(t, result.Snapshots, "not every poll produces data")
	assert.Zero(t, f.reload(t, service.ID).ConsecutiveFailures)
}

func TestPollServiceAdapterErrorCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "broken")

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, f.reload(t, service.ID).ConsecutiveFailures)
}

func TestPollServiceUnknownProviderIsBadRequest(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "ok")
	service.ProviderID = "retired"
	require.NoError(t, f.services.Update(context.Background(), f.db, service))

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomeBadRequest, result.Outcome)

	reloaded := f.reload(t, service.ID)
	assert.Zero(t, reloaded.ConsecutiveFailures, "configuration problems are not credential failures")
	assert.False(t, reloaded.AuthExpired)
	assert.True(t, reloaded.Enabled)
}

func TestRecordFailureIncrementsAtomically(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "bad")

	// Two overlapping polls hold equally stale in-memory copies; both
	// increments must land.
	staleA := f.reload(t, service.ID)
	staleB := f.reload(t, service.ID)
	f.poller.recordFailure(context.Background(), staleA)
	f.poller.recordFailure(context.Background(), staleB)
	assert.Equal(t, 2, f.reload(t, service.ID).ConsecutiveFailures)

	// Bookkeeping writes only their own columns: credentials rotated by a
	// concurrent refresh survive a stale-copy failure update.
	require.NoError(t, f.services.UpdateCredentials(context.Background(), f.db, service.ID, "rotated-blob", f.clk.Now()))
	f.poller.recordFailure(context.Background(), staleA)
	assert.Equal(t, "rotated-blob", f.reload(t, service.ID).Credentials)
}

func TestPollServiceDecryptFailureCountsAsFailure(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "ok")
	service.Credentials = "not-a-valid-blob"
	require.NoError(t, f.services.Update(context.Background(), f.db, service))

	result := f.poller.PollService(context.Background(), service.ID.String())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, 1, f.reload(t, service.ID).ConsecutiveFailures)
}

func TestPollServiceLookupOutcomes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, OutcomeInvalid, f.poller.PollService(context.Background(), "garbage").Outcome)
	assert.Equal(t, OutcomeNotFound, f.poller.PollService(context.Background(), "123456789").Outcome)

	service := f.connectService(t, "ok")
	service.Enabled = false
	require.NoError(t, f.services.Update(context.Background(), f.db, service))
	assert.Equal(t, OutcomeSkipped, f.poller.PollService(context.Background(), service.ID.String()).Outcome)
}

func TestPollAllSweepsEnabledServices(t *testing.T) {
	f := newFixture(t)
	a := f.connectService(t, "ok")
	b := f.connectService(t, "low")
	disabled := f.connectService(t, "ok")
	disabled.Enabled = false
	require.NoError(t, f.services.Update(context.Background(), f.db, disabled))

	results := f.poller.PollAll(context.Background())
	require.Len(t, results, 2)

	polled := map[string]Outcome{}
	for _, r := range results {
		polled[r.ServiceID] = r.Outcome
	}
	assert.Equal(t, OutcomePolled, polled[a.ID.String()])
	assert.Equal(t, OutcomePolled, polled[b.ID.String()])
}

func TestSimulateSkipsCooldownAndChecksOwnership(t *testing.T) {
	f := newFixture(t)
	service := f.connectService(t, "ok")
	config := f.addAlert(t, service, "balance", provider.ConditionLT, provider.Float(5), nil)

	recent := f.clk.Now().Add(-10 * time.Minute)
	config.LastNotifiedAt = &recent
	require.NoError(t, f.alerts.Update(context.Background(), f.db, config))

	owner := usercontext.WithUser(context.Background(), usercontext.User{ID: "user-1", Email: "ops@example.com"})
	result, err := f.poller.Simulate(owner, service.ID.String(), "balance", provider.Float(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlertsFired, "simulation ignores cooldown")

	snapshots, err := f.services.LatestSnapshots(context.Background(), f.db, service.ID, 1)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, "simulated", snapshots[0].Status)

	stranger := usercontext.WithUser(context.Background(), usercontext.User{ID: "user-2"})
	_, err = f.poller.Simulate(stranger, service.ID.String(), "balance", provider.Float(2), nil)
	assert.ErrorIs(t, err, servicedomain.ErrNotFound)

	_, err = f.poller.Simulate(owner, service.ID.String(), "missing_metric", provider.Float(2), nil)
	assert.ErrorIs(t, err, alertdomain.ErrInvalidCollector)

	_, err = f.poller.Simulate(context.Background(), service.ID.String(), "balance", provider.Float(2), nil)
	assert.ErrorIs(t, err, servicedomain.ErrUnauthenticated)
}
