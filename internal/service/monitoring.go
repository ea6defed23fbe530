package service

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postwave/postwave/internal/models"
)

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// ErrorLogOption customizes a recorded error log entry.
type ErrorLogOption func(*models.ErrorLog)

func WithPlatform(platform string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Platform = platform
	}
}

func WithJob(jobID string) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = jobID
	}
}

func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if data, err := json.Marshal(context); err == nil {
			e.Context = string(data)
		}
	}
}

// RecordError stores an operational error for the dashboard.
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
	}

	for _, option := range options {
		option(errorLog)
	}

	return m.db.Create(errorLog).Error
}

// RecordMetric stores one metric sample.
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	sample := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Timestamp:  time.Now(),
	}
	if len(tags) > 0 {
		if data, err := json.Marshal(tags); err == nil {
			sample.Tags = string(data)
		}
	}

	return m.db.Create(sample).Error
}

// UpdateSystemStats recomputes today's job counters.
func (m *MonitoringService) UpdateSystemStats() error {
	today := time.Now().Truncate(24 * time.Hour)

	stats := models.SystemStats{Date: today}
	counts := map[models.JobStatus]*int{
		models.StatusCompleted:      &stats.CompletedJobs,
		models.StatusPartialFailure: &stats.PartialJobs,
		models.StatusFailed:         &stats.FailedJobs,
		models.StatusPending:        &stats.PendingJobs,
		models.StatusCancelled:      &stats.CancelledJobs,
		models.StatusPublishing:     &stats.PublishingJobs,
	}

	for status, dest := range counts {
		var count int64
		if err := m.db.Model(&models.PostJob{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		*dest = int(count)
	}

	var total int64
	if err := m.db.Model(&models.PostJob{}).Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count jobs: %w", err)
	}
	stats.TotalJobs = int(total)

	return m.db.Where("date = ?", today).
		Assign(stats).
		FirstOrCreate(&models.SystemStats{}).Error
}

// UpdatePlatformStats recomputes today's per-platform publish counters from
// the recorded metric samples.
func (m *MonitoringService) UpdatePlatformStats() error {
	today := time.Now().Truncate(24 * time.Hour)

	for _, tag := range []string{
		models.PlatformFacebook,
		models.PlatformInstagram,
		models.PlatformLinkedIn,
		models.PlatformTwitter,
	} {
		successes, err := m.countMetric("publish_success", tag, today)
		if err != nil {
			return err
		}
		failures, err := m.countMetric("publish_failure", tag, today)
		if err != nil {
			return err
		}
		if successes == 0 && failures == 0 {
			continue
		}

		stats := models.PlatformStats{
			Date:          today,
			Platform:      tag,
			TotalAttempts: successes + failures,
			Successes:     successes,
			Failures:      failures,
		}

		if err := m.db.Where("date = ? AND platform = ?", today, tag).
			Assign(stats).
			FirstOrCreate(&models.PlatformStats{}).Error; err != nil {
			return fmt.Errorf("failed to upsert platform stats for %s: %w", tag, err)
		}
	}

	return nil
}

func (m *MonitoringService) countMetric(name, tag string, since time.Time) (int, error) {
	var count int64
	err := m.db.Model(&models.MetricsSample{}).
		Where("metric_name = ? AND timestamp >= ? AND tags LIKE ?", name, since, "%\""+tag+"\"%").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count %s samples: %w", name, err)
	}
	return int(count), nil
}

// GetRecentErrors returns the latest unresolved error logs.
func (m *MonitoringService) GetRecentErrors(limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	err := m.db.Where("resolved = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent errors: %w", err)
	}
	return logs, nil
}

// GetSummary returns today's system stats row, computing it on demand when
// the updater has not run yet.
func (m *MonitoringService) GetSummary() (*models.SystemStats, error) {
	today := time.Now().Truncate(24 * time.Hour)

	var stats models.SystemStats
	err := m.db.Where("date = ?", today).First(&stats).Error
	if err == nil {
		return &stats, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if err := m.UpdateSystemStats(); err != nil {
		return nil, err
	}
	if err := m.db.Where("date = ?", today).First(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &stats, nil
}

// CleanupOldData drops metric samples and resolved errors older than the
// retention window.
func (m *MonitoringService) CleanupOldData(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	if err := m.db.Where("timestamp < ?", cutoff).Delete(&models.MetricsSample{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup metric samples: %w", err)
	}
	if err := m.db.Where("resolved = ? AND created_at < ?", true, cutoff).Delete(&models.ErrorLog{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup error logs: %w", err)
	}

	return nil
}
