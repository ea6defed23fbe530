package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a PostJob. Transitions only move forward:
// pending -> due -> publishing -> {completed, partial_failure, failed}, with
// pending/due -> cancelled on user action. Terminal states never change.
type JobStatus string

const (
	StatusPending        JobStatus = "pending"
	StatusDue            JobStatus = "due"
	StatusPublishing     JobStatus = "publishing"
	StatusCompleted      JobStatus = "completed"
	StatusPartialFailure JobStatus = "partial_failure"
	StatusFailed         JobStatus = "failed"
	StatusCancelled      JobStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartialFailure, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Supported platform tags.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
)

// KnownPlatform reports whether tag names a supported platform.
func KnownPlatform(tag string) bool {
	switch tag {
	case PlatformFacebook, PlatformInstagram, PlatformLinkedIn, PlatformTwitter:
		return true
	}
	return false
}

// ErrorKind classifies a failed platform attempt for retry policy.
type ErrorKind string

const (
	ErrKindValidation            ErrorKind = "validation"
	ErrKindCredentialUnavailable ErrorKind = "credential_unavailable"
	ErrKindTimeout               ErrorKind = "timeout"
	ErrKindNetwork               ErrorKind = "network"
	ErrKindPlatformRejected      ErrorKind = "platform_rejected"
	ErrKindExhaustedRetries      ErrorKind = "exhausted_retries"
)

// Retryable reports whether a failure of this kind is eligible for another
// scheduled attempt.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindTimeout || k == ErrKindNetwork
}

// StringArray stores a list of platform tags as a JSON array column.
type StringArray []string

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			*s = StringArray{}
			return nil
		}
		return json.Unmarshal(v, s)
	case string:
		if v == "" {
			*s = StringArray{}
			return nil
		}
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}
}

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Contains reports whether tag is a member of the array.
func (s StringArray) Contains(tag string) bool {
	for _, v := range s {
		if v == tag {
			return true
		}
	}
	return false
}

// ContentMap maps a platform tag to the text body for that platform.
type ContentMap map[string]string

func (c *ContentMap) Scan(value interface{}) error {
	return scanJSON(value, c)
}

func (c ContentMap) Value() (driver.Value, error) {
	return valueJSON(c)
}

// PlatformResult is the outcome of one publish attempt on one platform.
// Metadata carries platform details a caller may need to act on, such as
// the id of an Instagram container left orphaned by a phase-two failure.
type PlatformResult struct {
	Success    bool              `json:"success"`
	ExternalID string            `json:"external_id,omitempty"`
	URL        string            `json:"url,omitempty"`
	Error      ErrorKind         `json:"error,omitempty"`
	Message    string            `json:"message,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ResultMap maps a platform tag to its latest attempt outcome. Once populated
// its keys are exactly the job's platforms.
type ResultMap map[string]PlatformResult

func (r *ResultMap) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func (r ResultMap) Value() (driver.Value, error) {
	return valueJSON(r)
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", value)
	}
}

func valueJSON(src interface{}) (driver.Value, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// PostJob is one user-submitted multi-platform post request, the unit of work
// for the scheduler. Status, attempts and results are mutated by the scheduler;
// content, platforms and schedule are editable only while pending.
type PostJob struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string      `gorm:"not null;index;size:255" json:"owner_id"`
	Platforms   StringArray `gorm:"type:text;not null" json:"platforms"`
	Content     ContentMap  `gorm:"type:text;not null" json:"content"`
	ImageRef    string      `gorm:"size:500" json:"image_ref,omitempty"`
	ScheduledAt *time.Time  `gorm:"index" json:"scheduled_at,omitempty"`
	Status      JobStatus   `gorm:"size:50;not null;index;default:'pending'" json:"status"`
	Attempts    int         `gorm:"not null;default:0" json:"attempts"`
	Results     ResultMap   `gorm:"type:text" json:"results,omitempty"`
	ClaimedAt   *time.Time  `json:"claimed_at,omitempty"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *PostJob) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Validate checks the creation/edit invariants: platforms non-empty and known,
// content non-empty with every key a member of platforms.
func (j *PostJob) Validate() error {
	if len(j.Platforms) == 0 {
		return &ValidationError{Field: "platforms", Reason: "at least one platform is required"}
	}
	for _, tag := range j.Platforms {
		if !KnownPlatform(tag) {
			return &ValidationError{Field: "platforms", Reason: fmt.Sprintf("unknown platform %q", tag)}
		}
	}
	if len(j.Content) == 0 {
		return &ValidationError{Field: "content", Reason: "at least one content entry is required"}
	}
	for tag := range j.Content {
		if !j.Platforms.Contains(tag) {
			return &ValidationError{Field: "content", Reason: fmt.Sprintf("content for %q has no matching platform", tag)}
		}
	}
	return nil
}

// DeriveStatus aggregates per-platform results into the job's final status.
func DeriveStatus(results ResultMap) JobStatus {
	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0 && succeeded > 0:
		return StatusCompleted
	case succeeded > 0:
		return StatusPartialFailure
	default:
		return StatusFailed
	}
}

// ValidationError reports a malformed create/edit request. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NormalizePlatforms lowercases, trims and de-duplicates platform tags.
func NormalizePlatforms(tags []string) StringArray {
	seen := make(map[string]bool, len(tags))
	var out StringArray
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
