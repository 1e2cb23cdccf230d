package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/proppass/internal/clock"
	membershipdomain "github.com/smallbiznis/proppass/internal/membership/domain"
	"github.com/smallbiznis/proppass/internal/property/domain"
	"github.com/smallbiznis/proppass/internal/role"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
	"github.com/smallbiznis/proppass/pkg/optional"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	MembershipRepo membershipdomain.Repository
	Tier           tierdomain.Service
	Guard          tierdomain.Guard
	PassportNumber domain.PassportNumber `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	membershipRepo membershipdomain.Repository
	tier           tierdomain.Service
	guard          tierdomain.Guard
	passportNumber domain.PassportNumber
}

func New(p Params) domain.Service {
	passportNumber := p.PassportNumber
	if passportNumber == nil {
		passportNumber = domain.RandomPassportNumber
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("property.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		membershipRepo: p.MembershipRepo,
		tier:           p.Tier,
		guard:          p.Guard,
		passportNumber: passportNumber,
	}
}

// Create admits the property against the account's cap and records the
// creator as owner, all under the account lock.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Property, error) {
	if req.AccountID == 0 {
		return domain.Property{}, domain.ErrInvalidAccount
	}
	if req.CreatedBy == 0 {
		return domain.Property{}, domain.ErrInvalidCreator
	}

	now := s.clock.Now()
	property := domain.Property{
		ID:           s.genID.Generate(),
		ExternalID:   ulid.Make().String(),
		AccountID:    req.AccountID,
		PassportID:   domain.PassportID(req.State, req.Zip, s.passportNumber()),
		Name:         nonEmpty(req.Name),
		AddressLine1: nonEmpty(req.AddressLine1),
		AddressLine2: nonEmpty(req.AddressLine2),
		City:         nonEmpty(req.City),
		State:        nonEmpty(strings.ToUpper(req.State)),
		Zip:          nonEmpty(req.Zip),
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	property.Slug = propertySlug(property)

	err := s.guard.WithAccountLock(ctx, req.AccountID, func(tx *gorm.DB) error {
		adm, err := s.tier.WithTx(tx).CanCreateProperty(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if err := tierdomain.Require(tierdomain.ResourceProperty, adm); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &property); err != nil {
			return err
		}
		return s.membershipRepo.Upsert(ctx, tx, []membershipdomain.Membership{{
			PropertyID: property.ID,
			UserID:     req.CreatedBy,
			Role:       role.Owner,
			CreatedAt:  now,
			UpdatedAt:  now,
		}})
	})
	if err != nil {
		return domain.Property{}, err
	}

	s.log.Info("property created",
		zap.String("property_id", property.ID.String()),
		zap.String("account_id", property.AccountID.String()),
		zap.String("passport_id", property.PassportID),
	)
	return property, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Property, error) {
	if id == 0 {
		return domain.Property{}, domain.ErrInvalidID
	}
	property, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Property{}, err
	}
	if property == nil {
		return domain.Property{}, domain.ErrNotFound
	}
	return *property, nil
}

// Update writes only the fields present in req.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (domain.Property, error) {
	if req.ID == 0 {
		return domain.Property{}, domain.ErrInvalidID
	}
	if v, ok := req.State.Get(); ok {
		req.State = optionalUpper(v)
	}

	cols := req.Columns()
	if len(cols) == 0 {
		return s.Get(ctx, req.ID)
	}
	cols["updated_at"] = s.clock.Now()

	rows, err := s.repo.Update(ctx, s.db, req.ID, cols)
	if err != nil {
		return domain.Property{}, err
	}
	if rows == 0 {
		return domain.Property{}, domain.ErrNotFound
	}
	return s.Get(ctx, req.ID)
}

func (s *Service) ListByAccount(ctx context.Context, accountID snowflake.ID) ([]domain.Property, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	return s.repo.ListByAccount(ctx, s.db, accountID)
}

func propertySlug(p domain.Property) string {
	var parts []string
	for _, v := range []*string{p.Name, p.AddressLine1, p.City} {
		if v != nil {
			parts = append(parts, *v)
		}
	}
	if s := slug.Make(strings.Join(parts, " ")); s != "" {
		return s
	}
	return strings.ToLower(p.PassportID)
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalUpper(v string) optional.String {
	return optional.Of(strings.ToUpper(strings.TrimSpace(v)))
}
