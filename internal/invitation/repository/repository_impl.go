package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/invitation/domain"
	"github.com/smallbiznis/proppass/pkg/db"
	"gorm.io/gorm"
)

const invitationColumns = `id, token_hash, scope, invited_by, email, account_id, property_id, role, state,
	expires_at, consumed_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, inv *domain.Invitation) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO user_invitations (`+invitationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.TokenHash,
		inv.Scope,
		inv.InvitedBy,
		inv.Email,
		inv.AccountID,
		inv.PropertyID,
		inv.Role,
		inv.State,
		inv.ExpiresAt,
		inv.ConsumedAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrTokenCollision
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invitation, error) {
	return r.findOne(ctx, conn, `id = ?`, id)
}

func (r *repo) FindByHash(ctx context.Context, conn *gorm.DB, hash string) (*domain.Invitation, error) {
	return r.findOne(ctx, conn, `token_hash = ?`, hash)
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, where string, arg any) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := conn.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM user_invitations WHERE `+where,
		arg,
	).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) Transition(ctx context.Context, conn *gorm.DB, id snowflake.ID, from, to domain.State, consumedAt *time.Time, at time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE user_invitations
		 SET state = ?, consumed_at = COALESCE(?, consumed_at), updated_at = ?
		 WHERE id = ? AND state = ?`,
		to,
		consumedAt,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, query domain.ListQuery) ([]domain.Invitation, error) {
	var (
		where []string
		args  []any
	)
	if query.InvitedBy != 0 {
		where = append(where, "invited_by = ?")
		args = append(args, query.InvitedBy)
	}
	if query.AccountID != 0 {
		where = append(where, "account_id = ?")
		args = append(args, query.AccountID)
	}
	if query.PropertyID != 0 {
		where = append(where, "property_id = ?")
		args = append(args, query.PropertyID)
	}
	if len(query.States) > 0 {
		states := make([]string, 0, len(query.States))
		for _, s := range query.States {
			states = append(states, string(s))
		}
		where = append(where, "state IN ?")
		args = append(args, states)
	}

	sql := `SELECT ` + invitationColumns + ` FROM user_invitations`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	var rows []domain.Invitation
	if err := conn.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListOverdue(ctx context.Context, conn *gorm.DB, at time.Time, limit int) ([]domain.Invitation, error) {
	var rows []domain.Invitation
	err := conn.WithContext(ctx).Raw(
		`SELECT `+invitationColumns+` FROM user_invitations
		 WHERE state = ? AND expires_at <= ?
		 ORDER BY expires_at ASC, id ASC
		 LIMIT ?`,
		domain.StatePending,
		at,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
