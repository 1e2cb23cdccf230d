package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/proppass/internal/account/domain"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/invitation/domain"
	"github.com/smallbiznis/proppass/internal/invitation/event"
	membershipdomain "github.com/smallbiznis/proppass/internal/membership/domain"
	"github.com/smallbiznis/proppass/internal/observability/metrics"
	"github.com/smallbiznis/proppass/internal/role"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
	"github.com/smallbiznis/proppass/internal/token"
	userdomain "github.com/smallbiznis/proppass/internal/user/domain"
	"github.com/smallbiznis/proppass/internal/user/password"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultTTL     = 48 * time.Hour
	sweepBatchSize = 100
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Config         config.Config
	Repo           domain.Repository
	Publisher      event.Publisher
	UserRepo       userdomain.Repository
	Hasher         password.Hasher
	AccountRepo    accountdomain.Repository
	MembershipRepo membershipdomain.Repository
	Tier           tierdomain.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	ttl            time.Duration
	repo           domain.Repository
	publisher      event.Publisher
	userRepo       userdomain.Repository
	hasher         password.Hasher
	accountRepo    accountdomain.Repository
	membershipRepo membershipdomain.Repository
	tier           tierdomain.Service
}

func New(p Params) domain.Service {
	ttl := time.Duration(p.Config.InvitationTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("invitation.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		ttl:            ttl,
		repo:           p.Repo,
		publisher:      p.Publisher,
		userRepo:       p.UserRepo,
		hasher:         p.Hasher,
		accountRepo:    p.AccountRepo,
		membershipRepo: p.MembershipRepo,
		tier:           p.Tier,
	}
}

// Create validates the request, checks the property caps and stores a pending
// invitation. The raw token is returned once and only its digest is kept.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.CreateResult, error) {
	if req.InvitedBy == 0 {
		return domain.CreateResult{}, domain.ErrInvalidInviter
	}
	if req.AccountID == 0 {
		return domain.CreateResult{}, domain.ErrInvalidAccount
	}
	email, err := userdomain.NormalizeEmail(req.Email)
	if err != nil {
		return domain.CreateResult{}, domain.ErrInvalidEmail
	}
	scope, err := parseScope(req.Scope)
	if err != nil {
		return domain.CreateResult{}, err
	}
	intended, err := role.ParseMembershipStrict(req.Role)
	if err != nil || intended == role.Owner {
		return domain.CreateResult{}, domain.ErrInvalidRole
	}

	account, err := s.accountRepo.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return domain.CreateResult{}, err
	}
	if account == nil {
		return domain.CreateResult{}, domain.ErrAccountNotFound
	}

	var propertyID *snowflake.ID
	if scope == domain.ScopeProperty {
		if req.PropertyID == nil || *req.PropertyID == 0 {
			return domain.CreateResult{}, domain.ErrInvalidProperty
		}
		if err := s.admit(ctx, req.AccountID, *req.PropertyID, intended); err != nil {
			return domain.CreateResult{}, err
		}
		id := *req.PropertyID
		propertyID = &id
	}

	raw, hash, err := token.Mint()
	if err != nil {
		return domain.CreateResult{}, err
	}

	now := s.clock.Now()
	inv := domain.Invitation{
		ID:         s.genID.Generate(),
		TokenHash:  hash,
		Scope:      scope,
		InvitedBy:  req.InvitedBy,
		Email:      email,
		AccountID:  req.AccountID,
		PropertyID: propertyID,
		Role:       intended,
		State:      domain.StatePending,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &inv); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, tx, event.TopicCreated, inv, 0)
	})
	if err != nil {
		return domain.CreateResult{}, err
	}

	metrics.RecordInvitation(string(scope), string(domain.StatePending))
	s.log.Info("invitation created",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("scope", string(scope)),
		zap.String("account_id", inv.AccountID.String()),
		zap.String("role", string(intended)),
	)
	return domain.CreateResult{Invitation: inv, Token: raw}, nil
}

// admit applies the property caps. Account-scoped invitations are not capped.
func (s *Service) admit(ctx context.Context, accountID, propertyID snowflake.ID, intended role.Membership) error {
	owner, err := s.membershipRepo.PropertyAccount(ctx, s.db, propertyID)
	if err != nil {
		return err
	}
	if owner == 0 {
		return domain.ErrPropertyMissing
	}
	if owner != accountID {
		return domain.ErrInvalidProperty
	}

	if intended == role.Viewer {
		adm, err := s.tier.CanInviteViewer(ctx, accountID, propertyID)
		if err != nil {
			return err
		}
		return tierdomain.Require(tierdomain.ResourceViewer, adm)
	}
	adm, err := s.tier.CanAddTeamMember(ctx, accountID, propertyID)
	if err != nil {
		return err
	}
	return tierdomain.Require(tierdomain.ResourceTeamMember, adm)
}

// Accept redeems a pending invitation exactly once. Every way a token can
// fail to redeem yields ErrAcceptInvalid.
func (s *Service) Accept(ctx context.Context, req domain.AcceptRequest) (domain.AcceptResult, error) {
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		return domain.AcceptResult{}, domain.ErrAcceptInvalid
	}

	inv, err := s.repo.FindByHash(ctx, s.db, token.Hash(raw))
	if err != nil {
		return domain.AcceptResult{}, err
	}
	if inv == nil || inv.State != domain.StatePending {
		return domain.AcceptResult{}, domain.ErrAcceptInvalid
	}
	if req.InvitationID != 0 && req.InvitationID != inv.ID {
		return domain.AcceptResult{}, domain.ErrAcceptInvalid
	}

	now := s.clock.Now()
	if inv.EffectiveState(now) == domain.StateExpired {
		s.expire(ctx, *inv, now)
		return domain.AcceptResult{}, domain.ErrAcceptInvalid
	}

	var digest *string
	if req.Password != nil {
		hashed, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return domain.AcceptResult{}, err
		}
		digest = &hashed
	}

	var userID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.upsertUser(ctx, tx, *inv, req.Name, digest, now)
		if err != nil {
			return err
		}
		userID = id

		if err := s.grant(ctx, tx, *inv, userID, now); err != nil {
			return err
		}

		ok, err := s.repo.Transition(ctx, tx, inv.ID, domain.StatePending, domain.StateAccepted, &now, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAcceptInvalid
		}

		inv.State = domain.StateAccepted
		inv.ConsumedAt = &now
		return s.publisher.Publish(ctx, tx, event.TopicAccepted, *inv, userID)
	})
	if err != nil {
		return domain.AcceptResult{}, err
	}

	metrics.RecordInvitation(string(inv.Scope), string(domain.StateAccepted))
	s.log.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return domain.AcceptResult{Success: true, UserID: userID}, nil
}

func (s *Service) upsertUser(ctx context.Context, tx *gorm.DB, inv domain.Invitation, name string, digest *string, now time.Time) (snowflake.ID, error) {
	existing, err := s.userRepo.FindByEmail(ctx, tx, inv.Email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if err := s.userRepo.Activate(ctx, tx, existing.ID, digest, now); err != nil {
			return 0, err
		}
		return existing.ID, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = inv.Email[:strings.LastIndex(inv.Email, "@")]
	}
	user := userdomain.User{
		ID:           s.genID.Generate(),
		Email:        inv.Email,
		PasswordHash: digest,
		Name:         name,
		Role:         role.UserRoleFor(inv.Role),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Insert(ctx, tx, &user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (s *Service) grant(ctx context.Context, tx *gorm.DB, inv domain.Invitation, userID snowflake.ID, now time.Time) error {
	switch inv.Scope {
	case domain.ScopeAccount:
		return s.accountRepo.UpsertMember(ctx, tx, &accountdomain.Member{
			AccountID: inv.AccountID,
			UserID:    userID,
			Role:      inv.Role,
			CreatedAt: now,
			UpdatedAt: now,
		})
	case domain.ScopeProperty:
		if inv.PropertyID == nil {
			return domain.ErrInvalidProperty
		}
		return s.membershipRepo.Upsert(ctx, tx, []membershipdomain.Membership{{
			PropertyID: *inv.PropertyID,
			UserID:     userID,
			Role:       inv.Role,
			CreatedAt:  now,
			UpdatedAt:  now,
		}})
	default:
		return domain.ErrInvalidScope
	}
}

// expire materializes a lapsed pending invitation. Failures are logged only;
// the caller already treats the invitation as expired.
func (s *Service) expire(ctx context.Context, inv domain.Invitation, now time.Time) {
	if _, err := s.expireOne(ctx, inv, now); err != nil {
		s.log.Warn("failed to expire invitation", zap.String("invitation_id", inv.ID.String()), zap.Error(err))
	}
}

func (s *Service) expireOne(ctx context.Context, inv domain.Invitation, now time.Time) (bool, error) {
	var moved bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Transition(ctx, tx, inv.ID, domain.StatePending, domain.StateExpired, nil, now)
		if err != nil || !ok {
			return err
		}
		moved = true
		inv.State = domain.StateExpired
		return s.publisher.Publish(ctx, tx, event.TopicExpired, inv, 0)
	})
	if err != nil {
		return false, err
	}
	if moved {
		metrics.RecordInvitation(string(inv.Scope), string(domain.StateExpired))
	}
	return moved, nil
}

func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = sweepBatchSize
	}
	now := s.clock.Now()
	overdue, err := s.repo.ListOverdue(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}

	var swept int
	for _, inv := range overdue {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		moved, err := s.expireOne(ctx, inv, now)
		if err != nil {
			return swept, err
		}
		if moved {
			swept++
		}
	}
	return swept, nil
}

// Decline is performed by the invitee, proven by the raw token or the
// invited email address.
func (s *Service) Decline(ctx context.Context, req domain.DeclineRequest) (domain.State, error) {
	if req.ID == 0 {
		return "", domain.ErrInvalidID
	}
	return s.finish(ctx, req.ID, domain.StateDeclined, event.TopicDeclined, func(inv domain.Invitation) error {
		if req.Token != "" && token.Verify(req.Token, inv.TokenHash) {
			return nil
		}
		if email, err := userdomain.NormalizeEmail(req.Email); err == nil && email == inv.Email {
			return nil
		}
		return domain.ErrNotInvitee
	})
}

func (s *Service) Revoke(ctx context.Context, id snowflake.ID) (domain.State, error) {
	if id == 0 {
		return "", domain.ErrInvalidID
	}
	return s.finish(ctx, id, domain.StateRevoked, event.TopicRevoked, nil)
}

// finish moves a pending invitation to target. A terminal invitation is left
// as is and its current state returned.
func (s *Service) finish(ctx context.Context, id snowflake.ID, target domain.State, topic string, authorize func(domain.Invitation) error) (domain.State, error) {
	var (
		result  domain.State
		changed bool
		inv     *domain.Invitation
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.ErrNotFound
		}
		if authorize != nil {
			if err := authorize(*inv); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		next, nextTopic := target, topic
		switch effective := inv.EffectiveState(now); {
		case effective == domain.StateExpired && inv.State == domain.StatePending:
			next, nextTopic = domain.StateExpired, event.TopicExpired
		case effective.Terminal():
			result = effective
			return nil
		}

		ok, err := s.repo.Transition(ctx, tx, id, domain.StatePending, next, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			result = current.State
			return nil
		}

		inv.State = next
		result = next
		changed = true
		return s.publisher.Publish(ctx, tx, nextTopic, *inv, 0)
	})
	if err != nil {
		return "", err
	}

	if changed {
		metrics.RecordInvitation(string(inv.Scope), string(result))
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Invitation, error) {
	if id == 0 {
		return domain.Invitation{}, domain.ErrInvalidID
	}
	inv, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invitation{}, err
	}
	if inv == nil {
		return domain.Invitation{}, domain.ErrNotFound
	}
	inv.State = inv.EffectiveState(s.clock.Now())
	return *inv, nil
}

func (s *Service) ListSent(ctx context.Context, inviterID snowflake.ID, state string) ([]domain.Invitation, error) {
	if inviterID == 0 {
		return nil, domain.ErrInvalidInviter
	}
	return s.list(ctx, domain.ListQuery{InvitedBy: inviterID}, state)
}

func (s *Service) ListByAccount(ctx context.Context, accountID snowflake.ID, state string) ([]domain.Invitation, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	return s.list(ctx, domain.ListQuery{AccountID: accountID}, state)
}

func (s *Service) ListByProperty(ctx context.Context, propertyID snowflake.ID, state string) ([]domain.Invitation, error) {
	if propertyID == 0 {
		return nil, domain.ErrInvalidProperty
	}
	return s.list(ctx, domain.ListQuery{PropertyID: propertyID}, state)
}

// list reports effective states and filters on them, so a lapsed pending row
// is listed as expired. Such rows are expired in storage as a side effect.
func (s *Service) list(ctx context.Context, query domain.ListQuery, rawState string) ([]domain.Invitation, error) {
	var want domain.State
	if strings.TrimSpace(rawState) != "" {
		state, err := domain.ParseState(strings.ToLower(strings.TrimSpace(rawState)))
		if err != nil {
			return nil, err
		}
		want = state
		switch want {
		case domain.StatePending, domain.StateExpired:
			query.States = []domain.State{domain.StatePending, domain.StateExpired}
		default:
			query.States = []domain.State{want}
		}
	}

	rows, err := s.repo.List(ctx, s.db, query)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var overdue []domain.Invitation
	out := make([]domain.Invitation, 0, len(rows))
	for _, inv := range rows {
		effective := inv.EffectiveState(now)
		if effective != inv.State {
			overdue = append(overdue, inv)
			inv.State = effective
		}
		if want != "" && inv.State != want {
			continue
		}
		out = append(out, inv)
	}

	for _, inv := range overdue {
		s.expire(ctx, inv, now)
	}
	return out, nil
}

func parseScope(raw string) (domain.Scope, error) {
	switch domain.Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.ScopeAccount:
		return domain.ScopeAccount, nil
	case domain.ScopeProperty:
		return domain.ScopeProperty, nil
	default:
		return "", domain.ErrInvalidScope
	}
}
