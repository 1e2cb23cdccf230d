package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/proppass/internal/config"
)

const keyInvitationAccept = "invitation:accept:%s"

// AcceptLimiter throttles invitation accept attempts per client. A nil or
// disabled limiter allows everything.
type AcceptLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewAcceptLimiter(cfg config.Config, bucket *TokenBucket) *AcceptLimiter {
	if bucket == nil || cfg.AcceptRatePerSecond <= 0 || cfg.AcceptBurst <= 0 {
		return &AcceptLimiter{}
	}
	return &AcceptLimiter{
		bucket: bucket,
		rate:   cfg.AcceptRatePerSecond,
		burst:  cfg.AcceptBurst,
	}
}

func (l *AcceptLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *AcceptLimiter) Allow(ctx context.Context, client string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInvitationAccept, strings.TrimSpace(client)), l.rate, l.burst)
}
