package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/role"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectAccount    = "account"
	ObjectProperty   = "property"
	ObjectTeam       = "team"
	ObjectInvitation = "invitation"
	ObjectContact    = "contact"
	ObjectUsage      = "usage"
)

const (
	ActionAccountView = "account.view"

	ActionPropertyCreate = "property.create"
	ActionPropertyView   = "property.view"
	ActionPropertyUpdate = "property.update"

	ActionTeamManage = "team.manage"

	ActionInvitationCreate = "invitation.create"
	ActionInvitationView   = "invitation.view"
	ActionInvitationRevoke = "invitation.revoke"

	ActionContactCreate = "contact.create"
	ActionContactView   = "contact.view"

	ActionUsageView = "usage.view"
	ActionUsageLog  = "usage.log"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer from the embedded model. Policies live in
// memory unless AUTHZ_PERSIST_POLICIES is set, in which case they are stored
// through the gorm adapter.
func NewEnforcer(db *gorm.DB, cfg config.Config) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.AuthzPersistPolicies {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	}

	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) AuthorizeAccount(ctx context.Context, userID, accountID snowflake.ID, action string) error {
	object, err := objectOf(action)
	if err != nil {
		return err
	}
	superAdmin, err := s.resolveUser(ctx, userID)
	if err != nil || superAdmin {
		return err
	}

	var roleName string
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM account_users WHERE account_id = ? AND user_id = ? LIMIT 1`,
		accountID,
		userID,
	).Scan(&roleName).Error; err != nil {
		return err
	}
	return s.enforce(userID, fmt.Sprintf("account:%s", accountID), roleName, object, action)
}

// AuthorizeProperty uses the caller's property role, falling back to their
// role on the account that owns the property.
func (s *ServiceImpl) AuthorizeProperty(ctx context.Context, userID, propertyID snowflake.ID, action string) error {
	object, err := objectOf(action)
	if err != nil {
		return err
	}
	superAdmin, err := s.resolveUser(ctx, userID)
	if err != nil || superAdmin {
		return err
	}

	var roleName string
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM property_users WHERE property_id = ? AND user_id = ? LIMIT 1`,
		propertyID,
		userID,
	).Scan(&roleName).Error; err != nil {
		return err
	}
	if strings.TrimSpace(roleName) == "" {
		if err := s.db.WithContext(ctx).Raw(
			`SELECT au.role
			 FROM account_users au
			 JOIN properties p ON p.account_id = au.account_id
			 WHERE p.id = ? AND au.user_id = ?
			 LIMIT 1`,
			propertyID,
			userID,
		).Scan(&roleName).Error; err != nil {
			return err
		}
	}
	return s.enforce(userID, fmt.Sprintf("property:%s", propertyID), roleName, object, action)
}

// resolveUser rejects unknown or inactive callers and reports whether the
// caller is a super admin.
func (s *ServiceImpl) resolveUser(ctx context.Context, userID snowflake.ID) (bool, error) {
	if userID == 0 {
		return false, ErrUnauthenticated
	}
	var row struct {
		Role     string `gorm:"column:role"`
		IsActive bool   `gorm:"column:is_active"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, is_active FROM users WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return false, err
	}
	if row.Role == "" || !row.IsActive {
		return false, ErrUnauthenticated
	}
	return role.UserRole(strings.ToLower(strings.TrimSpace(row.Role))) == role.UserSuperAdmin, nil
}

func (s *ServiceImpl) enforce(userID snowflake.ID, domain, roleName, object, action string) error {
	m, err := role.ParseMembershipStrict(roleName)
	if err != nil {
		s.log.Debug("authorization denied", zap.String("user_id", userID.String()), zap.String("domain", domain), zap.String("action", action))
		return ErrForbidden
	}

	subject := fmt.Sprintf("user:%s", userID)
	if err := s.ensureGrouping(subject, fmt.Sprintf("role:%s", m), domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("user_id", userID.String()),
			zap.String("domain", domain),
			zap.String("role", string(m)),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link for subject in domain.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func objectOf(action string) (string, error) {
	object, _, ok := strings.Cut(strings.TrimSpace(action), ".")
	if !ok || object == "" {
		return "", ErrInvalidAction
	}
	return object, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	all := [][]string{
		{ObjectAccount, ActionAccountView},
		{ObjectProperty, ActionPropertyCreate},
		{ObjectProperty, ActionPropertyView},
		{ObjectProperty, ActionPropertyUpdate},
		{ObjectTeam, ActionTeamManage},
		{ObjectInvitation, ActionInvitationCreate},
		{ObjectInvitation, ActionInvitationView},
		{ObjectInvitation, ActionInvitationRevoke},
		{ObjectContact, ActionContactCreate},
		{ObjectContact, ActionContactView},
		{ObjectUsage, ActionUsageView},
		{ObjectUsage, ActionUsageLog},
	}

	var policies [][]string
	for _, rule := range all {
		policies = append(policies,
			[]string{"role:owner", rule[0], rule[1]},
			[]string{"role:admin", rule[0], rule[1]},
		)
	}
	policies = append(policies,
		// Agents run day-to-day property work but do not manage the team.
		[]string{"role:agent", ObjectAccount, ActionAccountView},
		[]string{"role:agent", ObjectProperty, ActionPropertyCreate},
		[]string{"role:agent", ObjectProperty, ActionPropertyView},
		[]string{"role:agent", ObjectProperty, ActionPropertyUpdate},
		[]string{"role:agent", ObjectInvitation, ActionInvitationCreate},
		[]string{"role:agent", ObjectInvitation, ActionInvitationView},
		[]string{"role:agent", ObjectContact, ActionContactCreate},
		[]string{"role:agent", ObjectContact, ActionContactView},
		[]string{"role:agent", ObjectUsage, ActionUsageLog},

		[]string{"role:homeowner", ObjectProperty, ActionPropertyView},
		[]string{"role:viewer", ObjectProperty, ActionPropertyView},
	)

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
