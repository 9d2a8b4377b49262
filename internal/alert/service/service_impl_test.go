package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/alert/repository"
	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/migration"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	servicerepo "github.com/beaconly/beacon/internal/service/repository"
	"github.com/beaconly/beacon/internal/usercontext"
	"github.com/beaconly/beacon/pkg/db"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	clk   *clock.FakeClock
	owned servicedomain.ConnectedService
}

func stubAdapter() provider.Adapter {
	return provider.Adapter{
		ID:       "stub",
		Name:     "Stub",
		Category: provider.CategoryInfrastructure,
		AuthType: provider.AuthTypeAPIKey,
		Collectors: []provider.Collector{
			{ID: "stub_metric", Name: "Stub Metric", MetricType: provider.MetricTypeCount, Unit: "items", RefreshInterval: 300},
			{ID: "connection_status", Name: "Connection Status", MetricType: provider.MetricTypeStatus, RefreshInterval: 300},
		},
		Fetch: func(ctx context.Context, creds provider.Credentials) ([]provider.SnapshotInput, error) {
			return []provider.SnapshotInput{{CollectorID: "stub_metric", Value: provider.Float(1), Status: provider.StatusHealthy}}, nil
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(conn))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	serviceRepo := servicerepo.Provide()

	owned := servicedomain.ConnectedService{
		ID:          node.Generate(),
		UserID:      "user-1",
		ProviderID:  "stub",
		Credentials: "encrypted",
		Enabled:     true,
		CreatedAt:   clk.Now(),
		UpdatedAt:   clk.Now(),
	}
	require.NoError(t, serviceRepo.Insert(context.Background(), conn, &owned))

	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		ServiceRepo: serviceRepo,
		Registry:    provider.NewRegistry(zap.NewNop(), stubAdapter()),
	})

	return &fixture{svc: svc, db: conn, clk: clk, owned: owned}
}

func authedCtx(userID string) context.Context {
	return usercontext.WithUser(context.Background(), usercontext.User{ID: userID, Email: userID + "@example.com"})
}

func TestCreateAlert(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	config, err := f.svc.Create(ctx, domain.CreateAlertRequest{
		ServiceID:        f.owned.ID.String(),
		CollectorID:      "stub_metric",
		Condition:        provider.ConditionGT,
		ThresholdNumeric: provider.Float(100),
		Message:          "too many items",
	})
	require.NoError(t, err)
	assert.True(t, config.Enabled)
	assert.Equal(t, "100", config.Threshold())

	configs, err := f.svc.ListForService(ctx, f.owned.ID.String())
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, config.ID, configs[0].ID)
}

func TestCreateAlertValidation(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")
	base := domain.CreateAlertRequest{
		ServiceID:   f.owned.ID.String(),
		CollectorID: "stub_metric",
	}

	// lt/gt need a numeric threshold, never both kinds.
	req := base
	req.Condition = provider.ConditionLT
	req.ThresholdText = provider.Text("5")
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	req = base
	req.Condition = provider.ConditionGT
	req.ThresholdNumeric = provider.Float(5)
	req.ThresholdText = provider.Text("5")
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	// status_is needs a text threshold.
	req = base
	req.CollectorID = "connection_status"
	req.Condition = provider.ConditionStatusIs
	req.ThresholdNumeric = provider.Float(1)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	// eq accepts exactly one threshold kind.
	req = base
	req.Condition = provider.ConditionEQ
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	req = base
	req.Condition = provider.Condition("between")
	req.ThresholdNumeric = provider.Float(1)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)

	req = base
	req.CollectorID = "missing_metric"
	req.Condition = provider.ConditionGT
	req.ThresholdNumeric = provider.Float(1)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCollector)

	req = base
	req.Condition = provider.ConditionGT
	req.ThresholdNumeric = provider.Float(1)
	_, err = f.svc.Create(authedCtx("user-2"), req)
	assert.ErrorIs(t, err, domain.ErrNotFound, "other users cannot attach alerts")
}

func TestUpdateAlertSwitchesThresholdKind(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	config, err := f.svc.Create(ctx, domain.CreateAlertRequest{
		ServiceID:        f.owned.ID.String(),
		CollectorID:      "connection_status",
		Condition:        provider.ConditionEQ,
		ThresholdNumeric: provider.Float(1),
	})
	require.NoError(t, err)

	condition := provider.ConditionStatusIs
	updated, err := f.svc.Update(ctx, domain.UpdateAlertRequest{
		ID:            config.ID.String(),
		Condition:     &condition,
		ThresholdText: provider.Text("auth_failed"),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.ThresholdNumeric)
	require.NotNil(t, updated.ThresholdText)
	assert.Equal(t, "auth_failed", *updated.ThresholdText)

	disabled := false
	updated, err = f.svc.Update(ctx, domain.UpdateAlertRequest{ID: config.ID.String(), Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)

	_, err = f.svc.Update(ctx, domain.UpdateAlertRequest{
		ID:               config.ID.String(),
		ThresholdNumeric: provider.Float(1),
		ThresholdText:    provider.Text("x"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}

func TestDeleteAlert(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")

	config, err := f.svc.Create(ctx, domain.CreateAlertRequest{
		ServiceID:        f.owned.ID.String(),
		CollectorID:      "stub_metric",
		Condition:        provider.ConditionGT,
		ThresholdNumeric: provider.Float(10),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(authedCtx("user-2"), config.ID.String()), domain.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, config.ID.String()))
	assert.ErrorIs(t, f.svc.Delete(ctx, config.ID.String()), domain.ErrNotFound)
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	ctx := authedCtx("user-1")
	repo := repository.Provide()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.InsertEvent(context.Background(), f.db, &domain.AlertEvent{
			ID:            f.owned.ID + snowflake.ID(i+1),
			AlertConfigID: f.owned.ID,
			ServiceID:     f.owned.ID,
			UserID:        "user-1",
			CollectorID:   "stub_metric",
			Condition:     provider.ConditionGT,
			Threshold:     "10",
			Value:         provider.Float(float64(20 + i)),
			CreatedAt:     f.clk.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := f.svc.ListEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 22.0, *events[0].Value, "newest first")

	events, err = f.svc.ListEventsForService(ctx, f.owned.ID.String(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = f.svc.ListEventsForService(authedCtx("user-2"), f.owned.ID.String(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
