package platform

import (
	"context"
	"time"
)

// Credential is an access credential for one user on one platform, resolved
// fresh per publish attempt and passed explicitly. Never cached process-wide.
type Credential struct {
	// AccessToken is the bearer/OAuth token for the user's account.
	AccessToken string
	// TokenSecret is the OAuth1 token secret; only Twitter uses it.
	TokenSecret string
	// AccountID identifies the publishing target: Facebook page id,
	// Instagram business account id, LinkedIn person URN.
	AccountID string
	// ExpiresAt, when set, lets publishers reject an expired credential
	// before touching the wire.
	ExpiresAt *time.Time
}

// Expired reports whether the credential is known to be past its lifetime.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Asset is a binary resource fetched from the asset-storage collaborator.
// URL is the publicly reachable location (Instagram publishes by URL), Data
// carries the raw bytes for platforms that take direct uploads.
type Asset struct {
	Ref         string
	URL         string
	ContentType string
	Data        []byte
}

// PublishRequest is the generic publish input handed to every publisher.
type PublishRequest struct {
	Text       string
	Image      *Asset
	Credential Credential
}

// PublishResult is the normalized outcome of one platform publish.
type PublishResult struct {
	Success     bool
	ExternalID  string
	URL         string
	Metadata    map[string]string
	PublishedAt time.Time
}

// Publisher translates a generic publish request into one platform's wire
// protocol. Implementations are stateless aside from app-level configuration;
// the per-user credential arrives with each request.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}
