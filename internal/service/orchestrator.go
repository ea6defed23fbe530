package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/asset"
	"github.com/postwave/postwave/internal/service/credential"
	"github.com/postwave/postwave/internal/service/platform"
	"github.com/postwave/postwave/pkg/util"
)

// Orchestrator fans one job out to every requested platform. Per-platform
// publishes run concurrently and independently: one platform's failure never
// aborts another's in-flight attempt, and the orchestrator always waits for
// all of them before aggregating.
type Orchestrator struct {
	logger         *zap.Logger
	publishers     map[string]platform.Publisher
	credentials    credential.Resolver
	assets         asset.Fetcher
	monitoring     *MonitoringService
	publishTimeout time.Duration
}

func NewOrchestrator(logger *zap.Logger, credentials credential.Resolver, assets asset.Fetcher,
	monitoring *MonitoringService, publishTimeout time.Duration) *Orchestrator {
	if publishTimeout == 0 {
		publishTimeout = 60 * time.Second
	}
	return &Orchestrator{
		logger:         logger,
		publishers:     make(map[string]platform.Publisher),
		credentials:    credentials,
		assets:         assets,
		monitoring:     monitoring,
		publishTimeout: publishTimeout,
	}
}

// RegisterPublisher adds a platform publisher. Registering the same platform
// twice is a wiring bug and is rejected.
func (o *Orchestrator) RegisterPublisher(pub platform.Publisher) error {
	name := pub.Name()
	if _, exists := o.publishers[name]; exists {
		return fmt.Errorf("publisher for platform %s already registered", name)
	}
	o.publishers[name] = pub
	o.logger.Info("Publisher registered", zap.String("platform", name))
	return nil
}

// Platforms returns the registered platform tags.
func (o *Orchestrator) Platforms() []string {
	var tags []string
	for name := range o.publishers {
		tags = append(tags, name)
	}
	return tags
}

// Execute runs one publish attempt cycle for the job and aggregates the
// per-platform outcomes. The returned result map holds exactly one entry per
// requested platform.
func (o *Orchestrator) Execute(ctx context.Context, job *models.PostJob) (models.ResultMap, models.JobStatus) {
	image, fetchErr := o.fetchImage(ctx, job)

	results := make(models.ResultMap, len(job.Platforms))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tag := range job.Platforms {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			outcome := o.publishOne(ctx, job, tag, image, fetchErr)
			mu.Lock()
			results[tag] = outcome
			mu.Unlock()
		}(tag)
	}
	wg.Wait()

	finalStatus := models.DeriveStatus(results)

	o.logger.Info("Publish cycle finished",
		zap.String("job_id", job.ID),
		zap.Int("platforms", len(job.Platforms)),
		zap.String("status", string(finalStatus)))

	return results, finalStatus
}

// fetchImage resolves the job's asset reference once; the asset is shared
// read-only by all platform goroutines.
func (o *Orchestrator) fetchImage(ctx context.Context, job *models.PostJob) (*platform.Asset, error) {
	if job.ImageRef == "" {
		return nil, nil
	}

	image, err := o.assets.Fetch(ctx, job.ImageRef)
	if err != nil {
		o.logger.Error("Failed to fetch image asset",
			zap.String("job_id", job.ID),
			zap.String("image_ref", job.ImageRef),
			zap.Error(err))
		o.recordError("orchestrator", "", job.ID, "Asset fetch failed", err)
		return nil, err
	}
	return image, nil
}

// publishOne runs the full attempt for one platform: resolve a fresh
// credential, then invoke the adapter under the per-call timeout. A
// credential failure never reaches the adapter.
func (o *Orchestrator) publishOne(ctx context.Context, job *models.PostJob, tag string,
	image *platform.Asset, fetchErr error) models.PlatformResult {

	// The post was composed with an image; publishing it without one on
	// some platforms would diverge from what the user approved. Fail the
	// whole cycle's platforms as transient and let the retry policy decide.
	if fetchErr != nil {
		kind := models.ErrKindNetwork
		if errors.Is(fetchErr, asset.ErrNotFound) {
			kind = models.ErrKindValidation
		}
		return models.PlatformResult{
			Success: false,
			Error:   kind,
			Message: fmt.Sprintf("image asset unavailable: %v", fetchErr),
		}
	}

	pub, ok := o.publishers[tag]
	if !ok {
		return models.PlatformResult{
			Success: false,
			Error:   models.ErrKindValidation,
			Message: fmt.Sprintf("no publisher registered for platform %s", tag),
		}
	}

	cred, err := o.credentials.Resolve(ctx, job.OwnerID, tag)
	if err != nil {
		o.logger.Warn("Credential resolution failed",
			zap.String("job_id", job.ID),
			zap.String("platform", tag),
			zap.Error(err))
		o.recordError("orchestrator", tag, job.ID, "Credential resolution failed", err)
		return models.PlatformResult{
			Success: false,
			Error:   models.ErrKindCredentialUnavailable,
			Message: util.TruncateRunes(err.Error(), 500),
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, o.publishTimeout)
	defer cancel()

	result, err := pub.Publish(pubCtx, platform.PublishRequest{
		Text:       job.Content[tag],
		Image:      image,
		Credential: cred,
	})
	if err != nil {
		pubErr := platform.Classify(tag, err)
		o.logger.Warn("Platform publish failed",
			zap.String("job_id", job.ID),
			zap.String("platform", tag),
			zap.String("kind", string(pubErr.Kind)),
			zap.Error(err))
		o.recordError("publisher", tag, job.ID, "Platform publish failed", err)
		o.recordMetric("publish_failure", tag, job.ID)
		return models.PlatformResult{
			Success:  false,
			Error:    pubErr.Kind,
			Message:  util.TruncateRunes(pubErr.Message, 500),
			Metadata: pubErr.Metadata,
		}
	}

	o.recordMetric("publish_success", tag, job.ID)
	return models.PlatformResult{
		Success:    true,
		ExternalID: result.ExternalID,
		URL:        result.URL,
	}
}

func (o *Orchestrator) recordError(source, tag, jobID, title string, err error) {
	if o.monitoring == nil {
		return
	}
	opts := []ErrorLogOption{WithJob(jobID)}
	if tag != "" {
		opts = append(opts, WithPlatform(tag))
	}
	if recordErr := o.monitoring.RecordError("ERROR", source, title, util.TruncateRunes(err.Error(), 2000), opts...); recordErr != nil {
		o.logger.Error("Failed to record error log", zap.Error(recordErr))
	}
}

func (o *Orchestrator) recordMetric(name, tag, jobID string) {
	if o.monitoring == nil {
		return
	}
	if err := o.monitoring.RecordMetric(name, "counter", 1, map[string]interface{}{
		"platform": tag,
		"job_id":   jobID,
	}); err != nil {
		o.logger.Error("Failed to record metric", zap.Error(err))
	}
}
