package models

import (
	"time"
)

// SystemStats holds per-day job counters for the dashboard.
type SystemStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Date           time.Time `gorm:"uniqueIndex;not null" json:"date"`
	TotalJobs      int       `gorm:"default:0" json:"total_jobs"`
	CompletedJobs  int       `gorm:"default:0" json:"completed_jobs"`
	PartialJobs    int       `gorm:"default:0" json:"partial_jobs"`
	FailedJobs     int       `gorm:"default:0" json:"failed_jobs"`
	PendingJobs    int       `gorm:"default:0" json:"pending_jobs"`
	CancelledJobs  int       `gorm:"default:0" json:"cancelled_jobs"`
	PublishingJobs int       `gorm:"default:0" json:"publishing_jobs"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlatformStats holds per-day, per-platform publish counters.
type PlatformStats struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Date          time.Time  `gorm:"index;not null" json:"date"`
	Platform      string     `gorm:"size:50;not null;index" json:"platform"`
	TotalAttempts int        `gorm:"default:0" json:"total_attempts"`
	Successes     int        `gorm:"default:0" json:"successes"`
	Failures      int        `gorm:"default:0" json:"failures"`
	LastSuccessAt *time.Time `json:"last_success_at"`
	LastFailureAt *time.Time `json:"last_failure_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog records operational errors from the scheduler, orchestrator and
// platform publishers.
type ErrorLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Level      string     `gorm:"size:20;not null;index" json:"level"`
	Source     string     `gorm:"size:100;not null;index" json:"source"`
	Platform   string     `gorm:"size:50;index" json:"platform"`
	JobID      string     `gorm:"size:36;index" json:"job_id"`
	Title      string     `gorm:"size:500;not null" json:"title"`
	Message    string     `gorm:"type:text;not null" json:"message"`
	Context    string     `gorm:"type:text" json:"context"`
	Resolved   bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample is one recorded metric data point.
type MetricsSample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricName string    `gorm:"size:100;not null;index" json:"metric_name"`
	MetricType string    `gorm:"size:50;not null" json:"metric_type"`
	Value      float64   `gorm:"not null" json:"value"`
	Tags       string    `gorm:"type:text" json:"tags"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
