package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/clock"
	invitationdomain "github.com/smallbiznis/proppass/internal/invitation/domain"
	obsmetrics "github.com/smallbiznis/proppass/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobExpireInvitations = "expire_invitations"

var ErrInvalidConfig = errors.New("scheduler: invalid config")

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	InvitationSvc invitationdomain.Service
	Config        Config `optional:"true"`
}

// Scheduler runs periodic maintenance jobs in-process.
type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	invitationSvc invitationdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.InvitationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		invitationSvc: p.InvitationSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) (err error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name, batchSize)
	log := s.log.With(zap.String("job", name), zap.String("run_id", run.runID))
	s.logJobStart(run)

	defer func() {
		if r := recover(); r != nil {
			run.IncError()
			obsmetrics.RecordSchedulerError(name, obsmetrics.SchedulerReasonPanic)
			log.Error("job panicked", zap.Any("panic", r))
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
		obsmetrics.RecordSchedulerRun(name, s.clock.Now().Sub(start))
		s.logJobFinish(run)
	}()

	err = fn(ctx, run)
	if err == nil {
		return nil
	}
	run.IncError()

	// deadline is a soft timeout; the next tick picks up the remainder
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		obsmetrics.RecordSchedulerError(name, obsmetrics.SchedulerReasonTimeout)
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	obsmetrics.RecordSchedulerError(name, obsmetrics.SchedulerReasonError)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobExpireInvitations, func(ctx context.Context) error {
			return s.runJob(ctx, JobExpireInvitations, s.cfg.SweepBatchSize, s.cfg.SweepTimeout, s.ExpireInvitationsJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireInvitationsJob drains lapsed pending invitations in batches until
// a batch comes back short.
func (s *Scheduler) ExpireInvitationsJob(ctx context.Context, run *jobRun) error {
	for {
		swept, err := s.invitationSvc.SweepExpired(ctx, run.batchSize)
		run.AddProcessed(swept)
		if err != nil {
			return err
		}
		if swept < run.batchSize {
			return nil
		}
	}
}
