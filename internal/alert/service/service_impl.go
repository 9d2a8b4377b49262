package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/usercontext"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ServiceRepo servicedomain.Repository
	Registry    *provider.Registry
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clk         clock.Clock
	repo        domain.Repository
	serviceRepo servicedomain.Repository
	registry    *provider.Registry
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("alert.service"),
		genID:       p.GenID,
		clk:         p.Clock,
		repo:        p.Repo,
		serviceRepo: p.ServiceRepo,
		registry:    p.Registry,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAlertRequest) (domain.AlertConfig, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return domain.AlertConfig{}, domain.ErrUnauthenticated
	}

	serviceID, err := snowflake.ParseString(strings.TrimSpace(req.ServiceID))
	if err != nil {
		return domain.AlertConfig{}, domain.ErrInvalidID
	}
	connected, err := s.serviceRepo.FindByIDForUser(ctx, s.db, user.ID, serviceID)
	if err != nil {
		return domain.AlertConfig{}, err
	}
	if connected == nil {
		return domain.AlertConfig{}, domain.ErrNotFound
	}

	if _, ok := s.registry.Collector(connected.ProviderID, req.CollectorID); !ok {
		return domain.AlertConfig{}, domain.ErrInvalidCollector
	}
	if err := validateThreshold(req.Condition, req.ThresholdNumeric, req.ThresholdText); err != nil {
		return domain.AlertConfig{}, err
	}

	now := s.clk.Now()
	config := domain.AlertConfig{
		ID:               s.genID.Generate(),
		ServiceID:        serviceID,
		UserID:           user.ID,
		CollectorID:      req.CollectorID,
		Condition:        req.Condition,
		ThresholdNumeric: req.ThresholdNumeric,
		ThresholdText:    req.ThresholdText,
		Message:          strings.TrimSpace(req.Message),
		Enabled:          true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &config); err != nil {
		return domain.AlertConfig{}, err
	}
	return config, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAlertRequest) (domain.AlertConfig, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return domain.AlertConfig{}, domain.ErrUnauthenticated
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.AlertConfig{}, domain.ErrInvalidID
	}
	config, err := s.repo.FindByID(ctx, s.db, user.ID, id)
	if err != nil {
		return domain.AlertConfig{}, err
	}
	if config == nil {
		return domain.AlertConfig{}, domain.ErrNotFound
	}

	if req.ThresholdNumeric != nil && req.ThresholdText != nil {
		return domain.AlertConfig{}, domain.ErrInvalidThreshold
	}

	if req.Condition != nil {
		config.Condition = *req.Condition
	}
	// Switching threshold kinds clears the other side.
	if req.ThresholdNumeric != nil {
		config.ThresholdNumeric = req.ThresholdNumeric
		config.ThresholdText = nil
	}
	if req.ThresholdText != nil {
		config.ThresholdText = req.ThresholdText
		config.ThresholdNumeric = nil
	}
	if req.Message != nil {
		config.Message = strings.TrimSpace(*req.Message)
	}
	if req.Enabled != nil {
		config.Enabled = *req.Enabled
	}

	if err := validateThreshold(config.Condition, config.ThresholdNumeric, config.ThresholdText); err != nil {
		return domain.AlertConfig{}, err
	}

	config.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, s.db, config); err != nil {
		return domain.AlertConfig{}, err
	}
	return *config, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}
	config, err := s.repo.FindByID(ctx, s.db, user.ID, parsed)
	if err != nil {
		return err
	}
	if config == nil {
		return domain.ErrNotFound
	}
	return s.repo.Delete(ctx, s.db, user.ID, parsed)
}

func (s *Service) ListForService(ctx context.Context, serviceID string) ([]domain.AlertConfig, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	connected, err := s.serviceRepo.FindByIDForUser(ctx, s.db, user.ID, parsed)
	if err != nil {
		return nil, err
	}
	if connected == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListForService(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	return dereference(items), nil
}

func (s *Service) List(ctx context.Context) ([]domain.AlertConfig, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	items, err := s.repo.ListForUser(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	return dereference(items), nil
}

func (s *Service) ListEvents(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	items, err := s.repo.ListEventsForUser(ctx, s.db, user.ID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return dereference(items), nil
}

func (s *Service) ListEventsForService(ctx context.Context, serviceID string, limit int) ([]domain.AlertEvent, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(serviceID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	connected, err := s.serviceRepo.FindByIDForUser(ctx, s.db, user.ID, parsed)
	if err != nil {
		return nil, err
	}
	if connected == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListEventsForService(ctx, s.db, parsed, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return dereference(items), nil
}

// validateThreshold enforces that exactly one threshold kind is set and
// that it matches the condition: lt/gt are numeric comparisons, status_is
// is a text comparison, eq accepts either.
func validateThreshold(condition provider.Condition, numeric *float64, text *string) error {
	switch condition {
	case provider.ConditionLT, provider.ConditionGT:
		if numeric == nil || text != nil {
			return domain.ErrInvalidThreshold
		}
	case provider.ConditionEQ:
		if (numeric == nil) == (text == nil) {
			return domain.ErrInvalidThreshold
		}
	case provider.ConditionStatusIs:
		if text == nil || numeric != nil {
			return domain.ErrInvalidThreshold
		}
	default:
		return domain.ErrInvalidCondition
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

func dereference[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
