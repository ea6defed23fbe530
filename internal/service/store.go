package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postwave/postwave/internal/models"
)

var (
	// ErrNotFound means no job exists with the given id.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidState means the job exists but its current status does not
	// permit the requested operation.
	ErrInvalidState = errors.New("operation not allowed in current job state")
)

// JobStore is the durable repository of PostJob records and the single
// arbiter of job ownership: every state transition is a conditional update
// guarded on the previously observed status, so concurrent sweeps and user
// operations cannot race past each other.
type JobStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewJobStore(db *gorm.DB, logger *zap.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

// Create persists a new job. Jobs with a scheduled time start pending; jobs
// without one enter publishing directly and are dispatched immediately by the
// caller.
func (s *JobStore) Create(ctx context.Context, job *models.PostJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	if job.ScheduledAt != nil {
		job.Status = models.StatusPending
	} else {
		now := time.Now()
		job.Status = models.StatusPublishing
		job.ClaimedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		zap.String("job_id", job.ID),
		zap.String("owner_id", job.OwnerID),
		zap.Strings("platforms", job.Platforms),
		zap.String("status", string(job.Status)))
	return nil
}

// Get fetches one job by id.
func (s *JobStore) Get(ctx context.Context, id string) (*models.PostJob, error) {
	var job models.PostJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListByOwner returns an owner's jobs, optionally restricted to a time range
// for calendar rendering. Immediate jobs fall back to their creation time.
func (s *JobStore) ListByOwner(ctx context.Context, ownerID string, from, to *time.Time) ([]models.PostJob, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if from != nil {
		query = query.Where("COALESCE(scheduled_at, created_at) >= ?", *from)
	}
	if to != nil {
		query = query.Where("COALESCE(scheduled_at, created_at) <= ?", *to)
	}

	var jobs []models.PostJob
	if err := query.Order("COALESCE(scheduled_at, created_at)").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// MarkDue promotes every pending job whose scheduled time has arrived.
func (s *JobStore) MarkDue(ctx context.Context, now time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("status = ? AND scheduled_at <= ?", models.StatusPending, now).
		Update("status", models.StatusDue)
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to mark due jobs: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// FetchDue returns jobs ready for claiming: due jobs, plus publishing jobs
// whose claim is older than stuckBefore (crash recovery).
func (s *JobStore) FetchDue(ctx context.Context, stuckBefore time.Time, limit int) ([]models.PostJob, error) {
	var jobs []models.PostJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusDue).
		Or("status = ? AND claimed_at < ?", models.StatusPublishing, stuckBefore).
		Order("scheduled_at").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due jobs: %w", err)
	}
	return jobs, nil
}

// Claim atomically transitions a job from the observed status to publishing.
// Returns false when another claimant won the race; a lost claim is simply
// discarded, never an error. Re-claims of stuck publishing jobs are guarded
// on the stale claim time so an alive execution is never stolen.
func (s *JobStore) Claim(ctx context.Context, id string, from models.JobStatus, stuckBefore time.Time) (bool, error) {
	now := time.Now()
	query := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("id = ? AND status = ?", id, from)
	if from == models.StatusPublishing {
		query = query.Where("claimed_at < ?", stuckBefore)
	}

	tx := query.Updates(map[string]interface{}{
		"status":     models.StatusPublishing,
		"claimed_at": now,
	})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to claim job: %w", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// UpdateSchedule moves a pending job to a new time. The conditional update is
// the race guard: once the sweep has promoted the job past pending, the
// reschedule is rejected rather than silently ignored.
func (s *JobStore) UpdateSchedule(ctx context.Context, id string, newTime time.Time) error {
	tx := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("scheduled_at", newTime)
	if tx.Error != nil {
		return fmt.Errorf("failed to update schedule: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.stateError(ctx, id)
	}
	return nil
}

// UpdateContent replaces a pending job's content and platform set.
func (s *JobStore) UpdateContent(ctx context.Context, id string, content models.ContentMap, platforms models.StringArray) error {
	probe := models.PostJob{Platforms: platforms, Content: content}
	if err := probe.Validate(); err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"content":   content,
			"platforms": platforms,
		})
	if tx.Error != nil {
		return fmt.Errorf("failed to update content: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.stateError(ctx, id)
	}
	return nil
}

// Cancel marks a pending or due job cancelled.
func (s *JobStore) Cancel(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("id = ? AND status IN ?", id, []models.JobStatus{models.StatusPending, models.StatusDue}).
		Update("status", models.StatusCancelled)
	if tx.Error != nil {
		return fmt.Errorf("failed to cancel job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.stateError(ctx, id)
	}

	s.logger.Info("Job cancelled", zap.String("job_id", id))
	return nil
}

// Delete removes a job record. Allowed only while pending or after reaching a
// terminal state; an executing job can never be deleted out from under the
// scheduler.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	deletable := []models.JobStatus{
		models.StatusPending,
		models.StatusCompleted,
		models.StatusPartialFailure,
		models.StatusFailed,
		models.StatusCancelled,
	}

	tx := s.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, deletable).
		Delete(&models.PostJob{})
	if tx.Error != nil {
		return fmt.Errorf("failed to delete job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.stateError(ctx, id)
	}

	s.logger.Info("Job deleted", zap.String("job_id", id))
	return nil
}

// RecordOutcome atomically stores the results of one attempt cycle: results,
// new status, attempts+1. Guarded on status = publishing, so recording twice
// for an already-terminal job affects zero rows and is rejected. A
// finalStatus of publishing keeps the job claimable for another attempt; the
// fresh claim time provides the retry backoff.
func (s *JobStore) RecordOutcome(ctx context.Context, id string, results models.ResultMap, finalStatus models.JobStatus) error {
	updates := map[string]interface{}{
		"results":  results,
		"status":   finalStatus,
		"attempts": gorm.Expr("attempts + 1"),
	}
	if finalStatus == models.StatusPublishing {
		updates["claimed_at"] = time.Now()
	} else {
		updates["claimed_at"] = nil
	}

	tx := s.db.WithContext(ctx).Model(&models.PostJob{}).
		Where("id = ? AND status = ?", id, models.StatusPublishing).
		Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("failed to record outcome: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return s.stateError(ctx, id)
	}

	s.logger.Info("Outcome recorded",
		zap.String("job_id", id),
		zap.String("status", string(finalStatus)))
	return nil
}

// stateError distinguishes a missing job from one in a state that forbids
// the operation.
func (s *JobStore) stateError(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PostJob{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to inspect job state: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrInvalidState
}
