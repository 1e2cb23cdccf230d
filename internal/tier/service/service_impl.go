package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/observability/metrics"
	"github.com/smallbiznis/proppass/internal/role"
	"github.com/smallbiznis/proppass/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tier.service"),
		repo: p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

// GetAccountLimits resolves caps from the account's active subscription, then
// the active "free" product, then DefaultCaps.
func (s *Service) GetAccountLimits(ctx context.Context, accountID snowflake.ID) (domain.Caps, error) {
	if accountID == 0 {
		return domain.Caps{}, domain.ErrInvalidAccount
	}

	active, err := s.repo.ActiveSubscriptionCaps(ctx, s.db, accountID)
	if err != nil {
		return domain.Caps{}, err
	}
	if active != nil {
		return active.Caps, nil
	}

	free, err := s.repo.FreeProductCaps(ctx, s.db)
	if err != nil {
		return domain.Caps{}, err
	}
	if free != nil {
		return free.Caps, nil
	}

	s.log.Debug("no subscription or free product, using default caps", zap.String("account_id", accountID.String()))
	return domain.DefaultCaps, nil
}

func (s *Service) CanCreateProperty(ctx context.Context, accountID snowflake.ID) (domain.Admission, error) {
	caps, err := s.GetAccountLimits(ctx, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	count, err := s.repo.CountProperties(ctx, s.db, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	return s.admit(domain.ResourceProperty, count, caps.MaxProperties), nil
}

func (s *Service) CanAddContact(ctx context.Context, accountID snowflake.ID) (domain.Admission, error) {
	caps, err := s.GetAccountLimits(ctx, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	count, err := s.repo.CountContacts(ctx, s.db, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	return s.admit(domain.ResourceContact, count, caps.MaxContacts), nil
}

func (s *Service) CanInviteViewer(ctx context.Context, accountID, propertyID snowflake.ID) (domain.Admission, error) {
	if propertyID == 0 {
		return domain.Admission{}, domain.ErrInvalidProperty
	}
	caps, err := s.GetAccountLimits(ctx, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	count, err := s.repo.CountPropertyMembers(ctx, s.db, propertyID, role.Viewer.String())
	if err != nil {
		return domain.Admission{}, err
	}
	return s.admit(domain.ResourceViewer, count, caps.MaxViewers), nil
}

func (s *Service) CanAddTeamMember(ctx context.Context, accountID, propertyID snowflake.ID) (domain.Admission, error) {
	if propertyID == 0 {
		return domain.Admission{}, domain.ErrInvalidProperty
	}
	caps, err := s.GetAccountLimits(ctx, accountID)
	if err != nil {
		return domain.Admission{}, err
	}
	count, err := s.repo.CountPropertyMembers(ctx, s.db, propertyID, "")
	if err != nil {
		return domain.Admission{}, err
	}
	return s.admit(domain.ResourceTeamMember, count, caps.MaxTeamMembers), nil
}

func (s *Service) admit(resource domain.Resource, current int64, max int) domain.Admission {
	adm := domain.NewAdmission(current, max)
	if !adm.Allowed {
		metrics.RecordCapDenied(string(resource))
	}
	return adm
}
