package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/config"
	"github.com/postwave/postwave/internal/models"
)

// Lifecycle is the boundary surface for creating, editing, rescheduling and
// cancelling post jobs. It enforces state-machine legality through the
// store's conditional updates and request validity before anything is
// persisted.
type Lifecycle struct {
	logger    *zap.Logger
	store     *JobStore
	scheduler *Scheduler
	limits    *config.LimitsConfig
	validate  *validator.Validate
}

// CreatePostRequest is a user submission of one multi-platform post.
type CreatePostRequest struct {
	OwnerID     string            `json:"owner_id" validate:"required"`
	Platforms   []string          `json:"platforms" validate:"required,min=1"`
	Content     map[string]string `json:"content" validate:"required,min=1"`
	ImageRef    string            `json:"image_ref"`
	ScheduledAt *time.Time        `json:"scheduled_at"`
}

func NewLifecycle(logger *zap.Logger, store *JobStore, scheduler *Scheduler, limits *config.LimitsConfig) *Lifecycle {
	return &Lifecycle{
		logger:    logger,
		store:     store,
		scheduler: scheduler,
		limits:    limits,
		validate:  validator.New(),
	}
}

// CreatePost validates and persists a new job. Jobs without a scheduled time
// are dispatched to the orchestrator immediately; scheduled jobs wait for the
// sweep. Nothing is persisted when validation fails.
func (l *Lifecycle) CreatePost(ctx context.Context, req CreatePostRequest) (*models.PostJob, error) {
	if err := l.validate.Struct(req); err != nil {
		return nil, &models.ValidationError{Field: "request", Reason: err.Error()}
	}

	platforms := models.NormalizePlatforms(req.Platforms)
	content := normalizeContent(req.Content)

	if err := l.checkContent(platforms, content); err != nil {
		return nil, err
	}

	if req.ScheduledAt != nil && !req.ScheduledAt.After(time.Now()) {
		return nil, &models.ValidationError{Field: "scheduled_at", Reason: "scheduled time must be in the future"}
	}

	job := &models.PostJob{
		OwnerID:     req.OwnerID,
		Platforms:   platforms,
		Content:     content,
		ImageRef:    req.ImageRef,
		ScheduledAt: req.ScheduledAt,
	}

	if err := l.store.Create(ctx, job); err != nil {
		return nil, err
	}

	if job.ScheduledAt == nil {
		l.scheduler.DispatchNow(ctx, job)
	}

	return job, nil
}

// EditPost replaces a pending job's content and platform set.
func (l *Lifecycle) EditPost(ctx context.Context, id string, content map[string]string, rawPlatforms []string) error {
	platforms := models.NormalizePlatforms(rawPlatforms)
	normalized := normalizeContent(content)

	if err := l.checkContent(platforms, normalized); err != nil {
		return err
	}

	return l.store.UpdateContent(ctx, id, normalized, platforms)
}

// ReschedulePost moves a pending job to a new future time. Repeated calls
// keep the last value; the job itself never duplicates.
func (l *Lifecycle) ReschedulePost(ctx context.Context, id string, newTime time.Time) error {
	if !newTime.After(time.Now()) {
		return &models.ValidationError{Field: "scheduled_at", Reason: "scheduled time must be in the future"}
	}
	return l.store.UpdateSchedule(ctx, id, newTime)
}

// CancelPost cancels a job that has not started executing.
func (l *Lifecycle) CancelPost(ctx context.Context, id string) error {
	return l.store.Cancel(ctx, id)
}

// DeletePost removes a pending or finished job record.
func (l *Lifecycle) DeletePost(ctx context.Context, id string) error {
	return l.store.Delete(ctx, id)
}

// GetJob fetches one job.
func (l *Lifecycle) GetJob(ctx context.Context, id string) (*models.PostJob, error) {
	return l.store.Get(ctx, id)
}

// ListJobsByOwner returns an owner's jobs within an optional time range.
func (l *Lifecycle) ListJobsByOwner(ctx context.Context, ownerID string, from, to *time.Time) ([]models.PostJob, error) {
	return l.store.ListByOwner(ctx, ownerID, from, to)
}

// CharacterLimits exposes the per-platform text limits for composer UIs.
func (l *Lifecycle) CharacterLimits() map[string]int {
	return l.limits.All()
}

// checkContent enforces the creation invariants plus two stricter rules:
// every requested platform needs a text body (a publish attempt with no text
// is meaningless), and each body must fit the platform's character limit.
func (l *Lifecycle) checkContent(platforms models.StringArray, content models.ContentMap) error {
	probe := models.PostJob{Platforms: platforms, Content: content}
	if err := probe.Validate(); err != nil {
		return err
	}

	for _, tag := range platforms {
		body, ok := content[tag]
		if !ok || body == "" {
			return &models.ValidationError{Field: "content", Reason: fmt.Sprintf("missing content for platform %q", tag)}
		}
		if limit := l.limits.Limit(tag); limit > 0 && utf8.RuneCountInString(body) > limit {
			return &models.ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("content for %q exceeds the %d character limit", tag, limit),
			}
		}
	}
	return nil
}

func normalizeContent(content map[string]string) models.ContentMap {
	out := make(models.ContentMap, len(content))
	for tag, body := range content {
		normalized := models.NormalizePlatforms([]string{tag})
		if len(normalized) == 0 {
			continue
		}
		out[normalized[0]] = body
	}
	return out
}
