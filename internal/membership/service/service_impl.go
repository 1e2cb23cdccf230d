package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/membership/domain"
	"github.com/smallbiznis/proppass/internal/observability/metrics"
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
	Clock clock.Clock
	Repo  domain.Repository
	Tier  tierdomain.Service
	Guard tierdomain.Guard
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	tier  tierdomain.Service
	guard tierdomain.Guard
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("membership.service"),
		clock: p.Clock,
		repo:  p.Repo,
		tier:  p.Tier,
		guard: p.Guard,
	}
}

// AddUsers upserts explicit memberships. Users that are not yet members count
// against the account's team cap; role changes for existing members do not.
func (s *Service) AddUsers(ctx context.Context, propertyID snowflake.ID, members []domain.Member) (domain.AddResult, error) {
	if propertyID == 0 {
		return domain.AddResult{}, domain.ErrInvalidProperty
	}
	deduped, err := dedupe(members)
	if err != nil {
		return domain.AddResult{}, err
	}
	if len(deduped) == 0 {
		return domain.AddResult{}, domain.ErrEmptyMembers
	}

	accountID, err := s.repo.PropertyAccount(ctx, s.db, propertyID)
	if err != nil {
		return domain.AddResult{}, err
	}
	if accountID == 0 {
		return domain.AddResult{}, domain.ErrPropertyNotFound
	}

	var result domain.AddResult
	err = s.guard.WithAccountLock(ctx, accountID, func(tx *gorm.DB) error {
		existing, err := s.repo.ListUserIDs(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		present := make(map[snowflake.ID]struct{}, len(existing))
		for _, id := range existing {
			present[id] = struct{}{}
		}
		newcomers := 0
		for _, m := range deduped {
			if _, ok := present[m.UserID]; !ok {
				newcomers++
			}
		}

		if newcomers > 0 {
			caps, err := s.tier.WithTx(tx).GetAccountLimits(ctx, accountID)
			if err != nil {
				return err
			}
			current := int64(len(existing))
			if current+int64(newcomers) > int64(caps.MaxTeamMembers) {
				metrics.RecordCapDenied(string(tierdomain.ResourceTeamMember))
				return &tierdomain.CapExceededError{
					Resource:  tierdomain.ResourceTeamMember,
					Admission: tierdomain.NewAdmission(current, caps.MaxTeamMembers),
				}
			}
		}

		now := s.clock.Now()
		rows := make([]domain.Membership, 0, len(deduped))
		for _, m := range deduped {
			rows = append(rows, domain.Membership{
				PropertyID: propertyID,
				UserID:     m.UserID,
				Role:       role.ParseMembership(m.Role),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		if err := s.repo.Upsert(ctx, tx, rows); err != nil {
			return err
		}

		list, err := s.repo.List(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		result = domain.AddResult{Added: newcomers, PropertyUsers: list}
		return nil
	})
	if err != nil {
		return domain.AddResult{}, err
	}
	return result, nil
}

// SyncTeam makes the property's membership set equal to desired in one
// transaction. Members that remain keep their created_at.
func (s *Service) SyncTeam(ctx context.Context, propertyID snowflake.ID, desired []domain.Member) ([]domain.Membership, error) {
	if propertyID == 0 {
		return nil, domain.ErrInvalidProperty
	}
	deduped, err := dedupe(desired)
	if err != nil {
		return nil, err
	}

	var out []domain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.ListUserIDs(ctx, tx, propertyID)
		if err != nil {
			return err
		}

		keep := make(map[snowflake.ID]struct{}, len(deduped))
		for _, m := range deduped {
			keep[m.UserID] = struct{}{}
		}
		var toRemove []snowflake.ID
		for _, id := range current {
			if _, ok := keep[id]; !ok {
				toRemove = append(toRemove, id)
			}
		}
		if err := s.repo.Delete(ctx, tx, propertyID, toRemove); err != nil {
			return err
		}

		if len(deduped) == 0 {
			out = []domain.Membership{}
			return nil
		}

		now := s.clock.Now()
		rows := make([]domain.Membership, 0, len(deduped))
		for _, m := range deduped {
			rows = append(rows, domain.Membership{
				PropertyID: propertyID,
				UserID:     m.UserID,
				Role:       role.NormalizeTeam(m.Role),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		if err := s.repo.Upsert(ctx, tx, rows); err != nil {
			return err
		}

		out, err = s.repo.List(ctx, tx, propertyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTeamSync()
	s.log.Info("property team synchronized",
		zap.String("property_id", propertyID.String()),
		zap.Int("members", len(out)),
	)
	return out, nil
}

func (s *Service) List(ctx context.Context, propertyID snowflake.ID) ([]domain.Membership, error) {
	if propertyID == 0 {
		return nil, domain.ErrInvalidProperty
	}
	rows, err := s.repo.List(ctx, s.db, propertyID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Membership{}
	}
	return rows, nil
}

func (s *Service) RoleOf(ctx context.Context, propertyID, userID snowflake.ID) (role.Membership, bool, error) {
	row, err := s.repo.Find(ctx, s.db, propertyID, userID)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, nil
	}
	return row.Role, true, nil
}

// dedupe collapses duplicate user ids, keeping the last occurrence's role and
// the position of its first appearance.
func dedupe(members []domain.Member) ([]domain.Member, error) {
	index := make(map[snowflake.ID]int, len(members))
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.UserID == 0 {
			return nil, domain.ErrInvalidUser
		}
		if i, ok := index[m.UserID]; ok {
			out[i] = m
			continue
		}
		index[m.UserID] = len(out)
		out = append(out, m)
	}
	return out, nil
}
