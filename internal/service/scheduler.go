package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/config"
	"github.com/postwave/postwave/internal/models"
)

// Scheduler owns the timing loop. Each sweep promotes pending jobs whose time
// has arrived, claims every due job exactly once through the store's
// conditional update, and hands claimed jobs to the orchestrator. Sweeps may
// run concurrently on multiple nodes; the store arbitrates ownership, a lost
// claim is simply discarded.
type Scheduler struct {
	config       *config.SchedulerConfig
	logger       *zap.Logger
	store        *JobStore
	orchestrator *Orchestrator

	interval     time.Duration
	stuckTimeout time.Duration
	ticker       *time.Ticker
	stopCh       chan struct{}
	jobsCh       chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, store *JobStore, orchestrator *Orchestrator) *Scheduler {
	return &Scheduler{
		config:       cfg,
		logger:       logger,
		store:        store,
		orchestrator: orchestrator,
		stopCh:       make(chan struct{}),
		// Bounds the number of in-flight job executions per node.
		jobsCh: make(chan struct{}, cfg.MaxConcurrentJobs),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.SweepInterval)
	if err != nil {
		s.logger.Error("Invalid sweep interval", zap.String("interval", s.config.SweepInterval), zap.Error(err))
		return err
	}
	s.interval = interval

	stuckTimeout, err := time.ParseDuration(s.config.StuckTimeout)
	if err != nil {
		s.logger.Error("Invalid stuck timeout", zap.String("stuck_timeout", s.config.StuckTimeout), zap.Error(err))
		return err
	}
	s.stuckTimeout = stuckTimeout

	s.logger.Info("Starting scheduler",
		zap.String("sweep_interval", s.config.SweepInterval),
		zap.String("stuck_timeout", s.config.StuckTimeout),
		zap.Int("max_attempts", s.config.MaxAttempts))

	s.ticker = time.NewTicker(interval)

	// Run first sweep immediately
	go func() {
		s.logger.Debug("Running initial sweep")
		s.RunSweep(ctx)
	}()

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.RunSweep(ctx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

// RunSweep executes one due-job scan: promote, fetch, claim, execute.
func (s *Scheduler) RunSweep(ctx context.Context) {
	start := time.Now()

	promoted, err := s.store.MarkDue(ctx, start)
	if err != nil {
		s.logger.Error("Failed to promote due jobs", zap.Error(err))
		return
	}
	if promoted > 0 {
		s.logger.Info("Promoted pending jobs to due", zap.Int64("count", promoted))
	}

	stuckBefore := start.Add(-s.stuckTimeout)
	jobs, err := s.store.FetchDue(ctx, stuckBefore, s.config.BatchLimit)
	if err != nil {
		s.logger.Error("Failed to fetch due jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.logger.Info("Sweep found due jobs", zap.Int("count", len(jobs)))

	for i := range jobs {
		job := jobs[i]

		claimed, err := s.store.Claim(ctx, job.ID, job.Status, stuckBefore)
		if err != nil {
			s.logger.Error("Failed to claim job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if !claimed {
			// Another sweep instance owns this job now.
			s.logger.Debug("Lost claim race", zap.String("job_id", job.ID))
			continue
		}

		if job.Attempts >= s.config.MaxAttempts {
			s.exhaust(ctx, &job)
			continue
		}

		s.jobsCh <- struct{}{}
		go func(job models.PostJob) {
			defer func() { <-s.jobsCh }()
			s.execute(ctx, &job)
		}(job)
	}

	s.logger.Debug("Sweep completed", zap.Duration("duration", time.Since(start)))
}

// DispatchNow hands a job created without a scheduled time straight to the
// orchestrator. The caller's context is typically request-scoped and gets
// cancelled when the handler returns, so the attempt runs detached from it.
// The job is already in publishing; a crash before the outcome is recorded
// leaves it claimable by a later recovery sweep.
func (s *Scheduler) DispatchNow(ctx context.Context, job *models.PostJob) {
	go s.execute(context.WithoutCancel(ctx), job)
}

// execute runs one attempt cycle and records the outcome. When every platform
// failed transiently and attempts remain, the job is kept in publishing so a
// later sweep retries it after the stuck timeout.
func (s *Scheduler) execute(ctx context.Context, job *models.PostJob) {
	start := time.Now()
	results, finalStatus := s.orchestrator.Execute(ctx, job)

	attempt := job.Attempts + 1
	if finalStatus == models.StatusFailed {
		switch {
		case attempt >= s.config.MaxAttempts:
			results = markExhausted(results)
		case allRetryable(results):
			finalStatus = models.StatusPublishing
		}
	}

	if err := s.store.RecordOutcome(ctx, job.ID, results, finalStatus); err != nil {
		// A lost race with cancel or a competing recovery claim; the
		// winning writer has already recorded this cycle.
		s.logger.Warn("Failed to record outcome",
			zap.String("job_id", job.ID),
			zap.String("status", string(finalStatus)),
			zap.Error(err))
		return
	}

	s.logger.Info("Job executed",
		zap.String("job_id", job.ID),
		zap.String("status", string(finalStatus)),
		zap.Int("attempt", attempt),
		zap.Duration("duration", time.Since(start)))
}

// exhaust terminates a job that reached the attempts cap without a recorded
// success.
func (s *Scheduler) exhaust(ctx context.Context, job *models.PostJob) {
	results := make(models.ResultMap, len(job.Platforms))
	for _, tag := range job.Platforms {
		prev, ok := job.Results[tag]
		if ok && prev.Success {
			results[tag] = prev
			continue
		}
		results[tag] = models.PlatformResult{
			Success: false,
			Error:   models.ErrKindExhaustedRetries,
			Message: "publish attempts exhausted",
		}
	}

	if err := s.store.RecordOutcome(ctx, job.ID, results, models.StatusFailed); err != nil {
		s.logger.Warn("Failed to record exhaustion",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}

	s.logger.Warn("Job exhausted retries",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts))
}

// markExhausted rewrites transient failures to the terminal retry kind while
// keeping the underlying message for diagnosis. Definitive failures keep
// their original kind.
func markExhausted(results models.ResultMap) models.ResultMap {
	out := make(models.ResultMap, len(results))
	for tag, r := range results {
		if !r.Success && r.Error.Retryable() {
			r.Error = models.ErrKindExhaustedRetries
		}
		out[tag] = r
	}
	return out
}

func allRetryable(results models.ResultMap) bool {
	for _, r := range results {
		if r.Success || !r.Error.Retryable() {
			return false
		}
	}
	return true
}
