package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/moiledger/internal/cache"
	"github.com/smallbiznis/moiledger/internal/clock"
	obslogger "github.com/smallbiznis/moiledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/moiledger/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/moiledger/internal/organization/domain"
	"github.com/smallbiznis/moiledger/internal/tenant"
	"github.com/smallbiznis/moiledger/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobIndexRepair = "index_repair"
	lockKey        = "moiledger:scheduler:index_repair"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Orgs        orgdomain.Service
	Provisioner *tenant.Provisioner
	Locker      *cache.Locker
	Config      Config
}

// Scheduler periodically re-provisions every organization so collections and
// indexes missed at creation time are repaired.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	orgs        orgdomain.Service
	provisioner *tenant.Provisioner
	locker      *cache.Locker
}

// RunSummary is the outcome of one sweep.
type RunSummary struct {
	RunID              string
	Skipped            bool
	Organizations      int
	CollectionsCreated int
	IndexesCreated     int
	Failures           int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Orgs == nil || p.Provisioner == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		orgs:        p.Orgs,
		provisioner: p.Provisioner,
		locker:      p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", name))
	log.Info("scheduler job started")

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	schedMetrics.ObserveJobDuration(name, elapsed)
	if err == nil {
		log.Info("scheduler job finished", zap.Duration("elapsed", elapsed))
		return nil
	}

	schedMetrics.IncJobError(name, err)

	// deadline is a soft timeout; the next tick resumes the sweep
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce sweeps every organization once. When redis is configured only the
// instance holding the lock sweeps; others report Skipped.
func (s *Scheduler) RunOnce(parent context.Context) (RunSummary, error) {
	runID := correlation.NewID()
	ctx := correlation.ContextWithCorrelationID(parent, runID)
	summary := RunSummary{RunID: runID}

	if s.locker.Enabled() {
		token, ok, err := s.locker.TryLock(ctx, lockKey, s.cfg.LockTTL)
		if err != nil {
			return summary, fmt.Errorf("%s: acquire lock: %w", jobIndexRepair, err)
		}
		if !ok {
			s.log.Debug("index repair already running elsewhere", zap.String("run_id", runID))
			summary.Skipped = true
			obsmetrics.Scheduler().IncRunSkipped(jobIndexRepair)
			return summary, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.log.Warn("release scheduler lock", zap.String("run_id", runID), zap.Error(err))
			}
		}()
	}

	err := s.runJob(ctx, jobIndexRepair, s.cfg.JobTimeout, func(ctx context.Context) error {
		return s.repairAll(ctx, &summary)
	})

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(jobIndexRepair, obsmetrics.SchedulerResourceOrganizations, summary.Organizations)
	schedMetrics.AddBatchProcessed(jobIndexRepair, obsmetrics.SchedulerResourceCollections, summary.CollectionsCreated)
	schedMetrics.AddBatchProcessed(jobIndexRepair, obsmetrics.SchedulerResourceIndexes, summary.IndexesCreated)
	return summary, err
}

func (s *Scheduler) repairAll(ctx context.Context, summary *RunSummary) error {
	orgs, err := s.orgs.ListAll(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	for _, org := range orgs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		report, err := s.provisioner.ProvisionTenant(ctx, org.ID, org.OrgName)
		if err != nil {
			jobErr = errors.Join(jobErr, fmt.Errorf("%s: %w", org.OrgName, err))
			summary.Failures++
			continue
		}
		summary.Organizations++
		for _, step := range report.Steps {
			if step.Status == tenant.StatusCreated {
				summary.CollectionsCreated++
			}
		}
		for _, idx := range report.Indexes {
			if idx.Status == tenant.StatusCreated {
				summary.IndexesCreated++
			}
		}
		if report.Failed() {
			summary.Failures++
			jobErr = errors.Join(jobErr, fmt.Errorf("%s: %w", org.OrgName, report.Err()))
		}
	}
	return jobErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		summary, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Warn("scheduler run failed", zap.String("run_id", summary.RunID), zap.Error(err))
		} else if !summary.Skipped {
			s.log.Info("index repair sweep completed",
				zap.String("run_id", summary.RunID),
				zap.Int("organizations", summary.Organizations),
				zap.Int("collections_created", summary.CollectionsCreated),
				zap.Int("indexes_created", summary.IndexesCreated),
			)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
