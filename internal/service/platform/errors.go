package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/postwave/postwave/internal/models"
)

// PublishError is a classified failure from one platform publish attempt.
type PublishError struct {
	Platform string
	Kind     models.ErrorKind
	Message  string
	Err      error
	// Metadata carries follow-up hints, e.g. the orphaned Instagram media
	// container id when phase two fails after phase one succeeded.
	Metadata map[string]string
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s publish failed (%s): %s: %v", e.Platform, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s publish failed (%s): %s", e.Platform, e.Kind, e.Message)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// NewPublishError builds a PublishError for the given platform and kind.
func NewPublishError(platform string, kind models.ErrorKind, message string, err error) *PublishError {
	return &PublishError{Platform: platform, Kind: kind, Message: message, Err: err}
}

// Classify maps an arbitrary error from a publish attempt to a PublishError.
// Context deadlines become timeouts, transport failures become network errors;
// anything already classified passes through unchanged.
func Classify(platformName string, err error) *PublishError {
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewPublishError(platformName, models.ErrKindTimeout, "publish timed out", err)
	case errors.Is(err, context.Canceled):
		return NewPublishError(platformName, models.ErrKindTimeout, "publish cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewPublishError(platformName, models.ErrKindTimeout, "network timeout", err)
		}
		return NewPublishError(platformName, models.ErrKindNetwork, "network failure", err)
	}

	return NewPublishError(platformName, models.ErrKindNetwork, "publish failed", err)
}

// KindForStatus maps a platform HTTP response status to an error kind:
// auth failures surface as credential problems so the scheduler does not
// retry blindly, other 4xx are definitive rejections, 5xx are transient.
func KindForStatus(status int) models.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.ErrKindCredentialUnavailable
	case status >= 400 && status < 500:
		return models.ErrKindPlatformRejected
	default:
		return models.ErrKindNetwork
	}
}
