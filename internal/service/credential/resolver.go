// Package credential consumes the account-service collaborator that owns
// OAuth token storage. This core never stores or refreshes tokens itself;
// it resolves a fresh credential per publish attempt.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/service/platform"
)

// ErrUnavailable means no valid credential exists for the owner/platform
// pair; the user must re-link the account.
var ErrUnavailable = errors.New("credential unavailable")

// Resolver returns a current valid credential for one user on one platform.
type Resolver interface {
	Resolve(ctx context.Context, ownerID, platformTag string) (platform.Credential, error)
}

// HTTPResolver resolves credentials from the account service over HTTP.
type HTTPResolver struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
	token   string
}

type credentialResponse struct {
	AccessToken string     `json:"access_token"`
	TokenSecret string     `json:"token_secret"`
	AccountID   string     `json:"account_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func NewHTTPResolver(logger *zap.Logger, baseURL, token string, timeout time.Duration) *HTTPResolver {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResolver{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, ownerID, platformTag string) (platform.Credential, error) {
	endpoint := fmt.Sprintf("%s/internal/v1/credentials?owner=%s&platform=%s",
		r.baseURL, url.QueryEscape(ownerID), url.QueryEscape(platformTag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return platform.Credential{}, fmt.Errorf("failed to create request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return platform.Credential{}, fmt.Errorf("failed to reach account service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return platform.Credential{}, fmt.Errorf("%w: no linked %s account for owner %s",
			ErrUnavailable, platformTag, ownerID)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return platform.Credential{}, fmt.Errorf("account service returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var credResp credentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&credResp); err != nil {
		return platform.Credential{}, fmt.Errorf("failed to decode credential response: %w", err)
	}
	if credResp.AccessToken == "" {
		return platform.Credential{}, fmt.Errorf("%w: account service returned empty token", ErrUnavailable)
	}

	cred := platform.Credential{
		AccessToken: credResp.AccessToken,
		TokenSecret: credResp.TokenSecret,
		AccountID:   credResp.AccountID,
		ExpiresAt:   credResp.ExpiresAt,
	}
	if cred.Expired(time.Now()) {
		return platform.Credential{}, fmt.Errorf("%w: token for %s expired", ErrUnavailable, platformTag)
	}

	return cred, nil
}

// StaticResolver serves credentials from a fixed in-memory map, keyed by
// owner and platform. Used for local development and tests.
type StaticResolver struct {
	mu    sync.RWMutex
	creds map[string]platform.Credential
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{creds: make(map[string]platform.Credential)}
}

func (r *StaticResolver) Set(ownerID, platformTag string, cred platform.Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[ownerID+"/"+platformTag] = cred
}

func (r *StaticResolver) Resolve(_ context.Context, ownerID, platformTag string) (platform.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[ownerID+"/"+platformTag]
	if !ok {
		return platform.Credential{}, fmt.Errorf("%w: no linked %s account for owner %s",
			ErrUnavailable, platformTag, ownerID)
	}
	return cred, nil
}
