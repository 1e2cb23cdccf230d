package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/ratelimit"
	"github.com/smallbiznis/proppass/internal/tier/domain"
	"github.com/smallbiznis/proppass/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyAccountCapLock = "tier:account:%s"
	accountLockTTL    = 10 * time.Second
	accountLockWait   = 5 * time.Second
)

type GuardParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Locker *ratelimit.Locker `optional:"true"`
}

type guard struct {
	db      *gorm.DB
	log     *zap.Logger
	backend string
	locker  *ratelimit.Locker
}

func NewGuard(p GuardParams) domain.Guard {
	g := &guard{
		db:      p.DB,
		log:     p.Log.Named("tier.guard"),
		backend: p.Config.CapLockBackend,
		locker:  p.Locker,
	}
	if g.backend == config.LockBackendRedis && !g.locker.Enabled() {
		g.log.Warn("redis cap lock requested without redis; using advisory locks")
		g.backend = config.LockBackendAdvisory
	}
	return g
}

// WithAccountLock runs fn in a transaction that holds the account's cap lock,
// so the admission check and the insert it guards cannot interleave with
// another request for the same account.
func (g *guard) WithAccountLock(ctx context.Context, accountID snowflake.ID, fn func(tx *gorm.DB) error) error {
	if accountID == 0 {
		return domain.ErrInvalidAccount
	}

	switch g.backend {
	case config.LockBackendRedis:
		key := fmt.Sprintf(keyAccountCapLock, accountID.String())
		token, err := g.locker.Acquire(ctx, key, accountLockTTL, accountLockWait)
		if err != nil {
			if errors.Is(err, ratelimit.ErrLockTimeout) {
				return domain.ErrAccountLockBusy
			}
			return err
		}
		defer func() {
			if err := g.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				g.log.Warn("release account lock failed", zap.String("account_id", accountID.String()), zap.Error(err))
			}
		}()
		return g.db.WithContext(ctx).Transaction(fn)

	case config.LockBackendAdvisory:
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if db.IsPostgres(tx) {
				if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", int64(accountID)).Error; err != nil {
					return err
				}
			}
			return fn(tx)
		})

	default:
		return g.db.WithContext(ctx).Transaction(fn)
	}
}
