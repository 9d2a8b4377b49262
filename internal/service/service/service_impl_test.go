package service

import (
	"context"
	"encoding/hex"
	"strings"
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
	"github.com/beaconly/beacon/internal/crypto"
	"github.com/beaconly/beacon/internal/migration"
	"github.com/beaconly/beacon/internal/provider"
	"github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/service/repository"
	"github.com/beaconly/beacon/internal/usercontext"
	"github.com/beaconly/beacon/pkg/db"
)

type fakeSchedules struct {
	registered []string
	cancelled  []string
	failNext   bool
}

func (f *fakeSchedules) Register(ctx context.Context, serviceID string) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", assert.AnError
	}
	f.registered = append(f.registered, serviceID)
	return "scd_" + serviceID, nil
}

func (f *fakeSchedules) Cancel(ctx context.Context, scheduleID string) error {
	f.cancelled = append(f.cancelled, scheduleID)
	return nil
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
			{ID: "stub_metric", Name: "Stub Metric", MetricType: provider.MetricTypeCount, Unit: "items", RefreshInterval: 300},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			switch creds["token"] {
			case "bad":
				return []provider.SnapshotInput{
					{CollectorID: "stub_metric", ValueText: provider.Text(provider.AuthFailedValue), Status: provider.StatusCritical},
				}, nil
			case "down":
				return []provider.SnapshotInput{
					{CollectorID: "stub_metric", Status: provider.StatusUnknown},
				}, nil
			default:
				return []provider.SnapshotInput{
					{CollectorID: "stub_metric", Value: provider.Float(7), Unit: "items", Status: provider.StatusHealthy},
				}, nil
			}
		},
	}
}

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	repo      domain.Repository
	alertRepo alertdomain.Repository
	schedules *fakeSchedules
	clk       *clock.FakeClock
	key       crypto.Key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	key, err := crypto.ParseKey(hex.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	schedules := &fakeSchedules{}
	repo := repository.Provide()

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repo,
		Registry:  provider.NewRegistry(zap.NewNop(), stubAdapter()),
		Key:       crypto.Key(key),
		Schedules: schedules,
	})

	return &fixture{
		svc:       svc,
		db:        conn,
		repo:      repo,
		alertRepo: alertrepo.Provide(),
		schedules: schedules,
		clk:       clk,
		key:       crypto.Key(key),
	}
}

func authedCtx(userID string) context.Context {
	return usercontext.WithUser(context.Background(), usercontext.User{ID: userID, Email: userID + "@example.com"})
}

func TestConnectStoresEncryptedCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	connected, err := f.svc.Connect(ctx, domain.ConnectRequest{
		ProviderID:  "stub",
		Label:       "My Stub",
		Credentials: map[string]string{"token": "sk_live_secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", connected.UserID)
	assert.True(t, connected.Enabled)
	assert.NotContains(t, connected.Credentials, "sk_live_secret")

	require.NotNil(t, connected.ScheduleID)
	assert.Equal(t, "scd_"+connected.ID.String(), *connected.ScheduleID)

	creds, err := f.svc.DecryptCredentials(connected)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_secret", creds["token"])
}

func TestConnectRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	_, err := f.svc.Connect(ctx, domain.ConnectRequest{ProviderID: "nope", Credentials: map[string]string{"token": "x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	_, err = f.svc.Connect(ctx, domain.ConnectRequest{ProviderID: "stub", Credentials: map[string]string{}})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Connect(ctx, domain.ConnectRequest{ProviderID: "stub", Credentials: map[string]string{"token": "bad"}})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Connect(ctx, domain.ConnectRequest{ProviderID: "stub", Credentials: map[string]string{"token": "down"}})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Connect(context.Background(), domain.ConnectRequest{ProviderID: "stub", Credentials: map[string]string{"token": "x"}})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestConnectSurvivesScheduleFailure(t *testing.T) {
	f := newFixture(t)
	f.schedules.failNext = true

	connected, err := f.svc.Connect(authedCtx("user-1"), domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "ok"},
	})
	require.NoError(t, err)
	assert.Nil(t, connected.ScheduleID)
}

func TestReauthResetsFailureState(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	connected, err := f.svc.Connect(ctx, domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "old"},
	})
	require.NoError(t, err)

	// Simulate the poller having expired the credentials.
	connected.AuthExpired = true
	connected.Enabled = false
	connected.ConsecutiveFailures = 5
	require.NoError(t, f.repo.Update(ctx, f.db, &connected))

	refreshed, err := f.svc.Reauth(ctx, domain.ReauthRequest{
		ID:          connected.ID.String(),
		Credentials: map[string]string{"token": "fresh"},
	})
	require.NoError(t, err)
	assert.False(t, refreshed.AuthExpired)
	assert.True(t, refreshed.Enabled)
	assert.Zero(t, refreshed.ConsecutiveFailures)

	creds, err := f.svc.DecryptCredentials(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "fresh", creds["token"])
}

func TestGetAndListScopedToUser(t *testing.T) {
	f := newFixture(t)

	mine, err := f.svc.Connect(authedCtx("user-1"), domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "a"},
	})
	require.NoError(t, err)

	_, err = f.svc.Connect(authedCtx("user-2"), domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "b"},
	})
	require.NoError(t, err)

	services, err := f.svc.List(authedCtx("user-1"))
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, mine.ID, services[0].ID)

	_, err = f.svc.Get(authedCtx("user-2"), mine.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(authedCtx("user-1"), "not-a-snowflake")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestDisconnectCascades(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	connected, err := f.svc.Connect(ctx, domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "ok"},
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.InsertSnapshots(ctx, f.db, []*domain.MetricSnapshot{
		{ID: connected.ID + 1, ServiceID: connected.ID, CollectorID: "stub_metric", Status: "healthy", CollectedAt: f.clk.Now()},
	}))
	require.NoError(t, f.alertRepo.Insert(ctx, f.db, &alertdomain.AlertConfig{
		ID:               connected.ID + 2,
		ServiceID:        connected.ID,
		UserID:           "user-1",
		CollectorID:      "stub_metric",
		Condition:        provider.ConditionGT,
		ThresholdNumeric: provider.Float(5),
		Enabled:          true,
		CreatedAt:        f.clk.Now(),
		UpdatedAt:        f.clk.Now(),
	}))

	require.NoError(t, f.svc.Disconnect(ctx, connected.ID.String()))
	assert.Equal(t, []string{"scd_" + connected.ID.String()}, f.schedules.cancelled)

	_, err = f.svc.Get(ctx, connected.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var snapshotCount, alertCount int64
	require.NoError(t, f.db.Model(&domain.MetricSnapshot{}).Where("service_id = ?", connected.ID).Count(&snapshotCount).Error)
	require.NoError(t, f.db.Model(&alertdomain.AlertConfig{}).Where("service_id = ?", connected.ID).Count(&alertCount).Error)
	assert.Zero(t, snapshotCount)
	assert.Zero(t, alertCount)
}

func TestLatestSnapshotsOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	connected, err := f.svc.Connect(ctx, domain.ConnectRequest{
		ProviderID:  "stub",
		Credentials: map[string]string{"token": "ok"},
	})
	require.NoError(t, err)

	base := f.clk.Now()
	var rows []*domain.MetricSnapshot
	for i := 0; i < 3; i++ {
		rows = append(rows, &domain.MetricSnapshot{
			ID:          connected.ID + snowflake.ID(i+1),
			ServiceID:   connected.ID,
			CollectorID: "stub_metric",
			Value:       provider.Float(float64(i)),
			Status:      "healthy",
			CollectedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, f.repo.InsertSnapshots(ctx, f.db, rows))

	snapshots, err := f.svc.LatestSnapshots(ctx, connected.ID.String(), 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2.0, *snapshots[0].Value)
	assert.Equal(t, 1.0, *snapshots[1].Value)
}

func TestValidateEndpointSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	result, err := f.svc.Validate(ctx, domain.ValidateRequest{ProviderID: "stub", Credentials: map[string]string{"token": "ok"}})
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "healthy", result.Status)

	result, err = f.svc.Validate(ctx, domain.ValidateRequest{ProviderID: "stub", Credentials: map[string]string{"token": "bad"}})
	require.NoError(t, err)
	assert.False(t, result.Valid)

	_, err = f.svc.Validate(ctx, domain.ValidateRequest{ProviderID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)
}
