package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/beaconly/beacon/internal/clock"
	"github.com/beaconly/beacon/internal/crypto"
	"github.com/beaconly/beacon/internal/provider"
	"github.com/beaconly/beacon/internal/schedule"
	"github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/usercontext"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Registry  *provider.Registry
	Key       crypto.Key
	Schedules schedule.Client
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clk       clock.Clock
	repo      domain.Repository
	registry  *provider.Registry
	key       crypto.Key
	schedules schedule.Client
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("service.service"),
		genID:     p.GenID,
		clk:       p.Clock,
		repo:      p.Repo,
		registry:  p.Registry,
		key:       p.Key,
		schedules: p.Schedules,
	}
}

func (s *Service) Connect(ctx context.Context, req domain.ConnectRequest) (domain.ConnectedService, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return domain.ConnectedService{}, domain.ErrUnauthenticated
	}

	adapter, ok := s.registry.Get(req.ProviderID)
	if !ok {
		return domain.ConnectedService{}, domain.ErrInvalidProvider
	}
	creds := provider.Credentials(req.Credentials)
	if err := checkRequiredFields(adapter, creds); err != nil {
		return domain.ConnectedService{}, err
	}

	valid, status, err := s.registry.ValidateCredentials(ctx, req.ProviderID, creds)
	if err != nil {
		return domain.ConnectedService{}, domain.ErrInvalidProvider
	}
	if !valid {
		s.log.Info("credential validation failed",
			zap.String("provider_id", req.ProviderID),
			zap.String("status", string(status)),
		)
		return domain.ConnectedService{}, domain.ErrInvalidCredentials
	}

	blob, err := s.encryptCredentials(creds)
	if err != nil {
		return domain.ConnectedService{}, err
	}

	now := s.clk.Now()
	connected := domain.ConnectedService{
		ID:          s.genID.Generate(),
		UserID:      user.ID,
		UserEmail:   user.Email,
		ProviderID:  req.ProviderID,
		Label:       strings.TrimSpace(req.Label),
		Credentials: blob,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &connected); err != nil {
		return domain.ConnectedService{}, err
	}

	// Schedule registration is best effort. Without a remote schedule the
	// embedded sweep still polls the service.
	if scheduleID, err := s.schedules.Register(ctx, connected.ID.String()); err == nil && scheduleID != "" {
		connected.ScheduleID = &scheduleID
		connected.UpdatedAt = s.clk.Now()
		if err := s.repo.Update(ctx, s.db, &connected); err != nil {
			s.log.Warn("failed to persist schedule id", zap.Error(err))
		}
	}

	return connected, nil
}

func (s *Service) Reauth(ctx context.Context, req domain.ReauthRequest) (domain.ConnectedService, error) {
	connected, err := s.findOwned(ctx, req.ID)
	if err != nil {
		return domain.ConnectedService{}, err
	}

	adapter, ok := s.registry.Get(connected.ProviderID)
	if !ok {
		return domain.ConnectedService{}, domain.ErrInvalidProvider
	}
	creds := provider.Credentials(req.Credentials)
	if err := checkRequiredFields(adapter, creds); err != nil {
		return domain.ConnectedService{}, err
	}

	valid, _, err := s.registry.ValidateCredentials(ctx, connected.ProviderID, creds)
	if err != nil {
		return domain.ConnectedService{}, domain.ErrInvalidProvider
	}
	if !valid {
		return domain.ConnectedService{}, domain.ErrInvalidCredentials
	}

	blob, err := s.encryptCredentials(creds)
	if err != nil {
		return domain.ConnectedService{}, err
	}

	connected.Credentials = blob
	connected.AuthExpired = false
	connected.Enabled = true
	connected.ConsecutiveFailures = 0
	connected.UpdatedAt = s.clk.Now()

	if err := s.repo.Update(ctx, s.db, connected); err != nil {
		return domain.ConnectedService{}, err
	}
	return *connected, nil
}

func (s *Service) Validate(ctx context.Context, req domain.ValidateRequest) (domain.ValidateResult, error) {
	if _, ok := usercontext.UserFromContext(ctx); !ok {
		return domain.ValidateResult{}, domain.ErrUnauthenticated
	}

	valid, status, err := s.registry.ValidateCredentials(ctx, req.ProviderID, provider.Credentials(req.Credentials))
	if err != nil {
		return domain.ValidateResult{}, domain.ErrInvalidProvider
	}
	return domain.ValidateResult{Valid: valid, Status: string(status)}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.ConnectedService, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	items, err := s.repo.ListForUser(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}

	services := make([]domain.ConnectedService, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		services = append(services, *item)
	}
	return services, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.ConnectedService, error) {
	connected, err := s.findOwned(ctx, id)
	if err != nil {
		return domain.ConnectedService{}, err
	}
	return *connected, nil
}

func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (domain.ConnectedService, error) {
	connected, err := s.findOwned(ctx, id)
	if err != nil {
		return domain.ConnectedService{}, err
	}

	connected.Enabled = enabled
	if enabled {
		connected.ConsecutiveFailures = 0
	}
	connected.UpdatedAt = s.clk.Now()

	if err := s.repo.Update(ctx, s.db, connected); err != nil {
		return domain.ConnectedService{}, err
	}
	return *connected, nil
}

func (s *Service) Disconnect(ctx context.Context, id string) error {
	connected, err := s.findOwned(ctx, id)
	if err != nil {
		return err
	}

	if connected.ScheduleID != nil {
		if err := s.schedules.Cancel(ctx, *connected.ScheduleID); err != nil {
			s.log.Warn("schedule cancellation failed",
				zap.String("service_id", connected.ID.String()),
				zap.Error(err),
			)
		}
	}

	return s.repo.DeleteCascade(ctx, s.db, connected.ID)
}

func (s *Service) DecryptCredentials(service domain.ConnectedService) (provider.Credentials, error) {
	plaintext, err := crypto.Decrypt(service.Credentials, s.key)
	if err != nil {
		return nil, err
	}
	var creds provider.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, &crypto.DecryptionError{Reason: "credential payload is not valid JSON"}
	}
	return creds, nil
}

func (s *Service) LatestSnapshots(ctx context.Context, id string, limit int) ([]domain.MetricSnapshot, error) {
	connected, err := s.findOwned(ctx, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 500 {
		limit = 50
	}
	items, err := s.repo.LatestSnapshots(ctx, s.db, connected.ID, limit)
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.MetricSnapshot, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		snapshots = append(snapshots, *item)
	}
	return snapshots, nil
}

func (s *Service) findOwned(ctx context.Context, id string) (*domain.ConnectedService, error) {
	user, ok := usercontext.UserFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	connected, err := s.repo.FindByIDForUser(ctx, s.db, user.ID, parsed)
	if err != nil {
		return nil, err
	}
	if connected == nil {
		return nil, domain.ErrNotFound
	}
	return connected, nil
}

func (s *Service) encryptCredentials(creds provider.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(payload, s.key)
}

func checkRequiredFields(adapter provider.Adapter, creds provider.Credentials) error {
	for _, field := range adapter.CredentialFields {
		if !field.Required {
			continue
		}
		if strings.TrimSpace(creds[field.Key]) == "" {
			return domain.ErrInvalidCredentials
		}
	}
	return nil
}
