package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/account/domain"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/role"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Tier  tierdomain.Service
	Guard tierdomain.Guard
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	tier  tierdomain.Service
	guard tierdomain.Guard
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		tier:  p.Tier,
		guard: p.Guard,
	}
}

// Create inserts the account and makes the caller its owner.
func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Account{}, domain.ErrInvalidName
	}
	if req.OwnerID == 0 {
		return domain.Account{}, domain.ErrInvalidOwner
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &account); err != nil {
			return err
		}
		return s.repo.UpsertMember(ctx, tx, &domain.Member{
			AccountID: account.ID,
			UserID:    req.OwnerID,
			Role:      role.Owner,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return domain.Account{}, err
	}

	s.log.Info("account created", zap.String("account_id", account.ID.String()))
	return account, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	if id == 0 {
		return domain.Account{}, domain.ErrInvalidAccount
	}
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) MemberRole(ctx context.Context, accountID, userID snowflake.ID) (role.Membership, bool, error) {
	member, err := s.repo.FindMember(ctx, s.db, accountID, userID)
	if err != nil {
		return "", false, err
	}
	if member == nil {
		return "", false, nil
	}
	return member.Role, true, nil
}

// AddContact inserts a contact under the account's cap lock.
func (s *Service) AddContact(ctx context.Context, req domain.AddContactRequest) (domain.Contact, error) {
	if req.AccountID == 0 {
		return domain.Contact{}, domain.ErrInvalidAccount
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Contact{}, domain.ErrInvalidName
	}

	contact := domain.Contact{
		ID:        s.genID.Generate(),
		AccountID: req.AccountID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		if !strings.Contains(email, "@") {
			return domain.Contact{}, domain.ErrInvalidEmail
		}
		contact.Email = &email
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		contact.Phone = &phone
	}

	err := s.guard.WithAccountLock(ctx, req.AccountID, func(tx *gorm.DB) error {
		adm, err := s.tier.WithTx(tx).CanAddContact(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if err := tierdomain.Require(tierdomain.ResourceContact, adm); err != nil {
			return err
		}
		return s.repo.InsertContact(ctx, tx, &contact)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

func (s *Service) ListContacts(ctx context.Context, accountID snowflake.ID) ([]domain.Contact, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	return s.repo.ListContacts(ctx, s.db, accountID)
}
