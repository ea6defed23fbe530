package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/service/platform"
)

func TestHTTPResolverResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/v1/credentials", r.URL.Path)
		assert.Equal(t, "owner-1", r.URL.Query().Get("owner"))
		assert.Equal(t, "twitter", r.URL.Query().Get("platform"))
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "user-token", "token_secret": "user-secret", "account_id": "acct-1"}`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "service-token", 0)
	cred, err := r.Resolve(context.Background(), "owner-1", "twitter")
	require.NoError(t, err)
	assert.Equal(t, "user-token", cred.AccessToken)
	assert.Equal(t, "user-secret", cred.TokenSecret)
	assert.Equal(t, "acct-1", cred.AccountID)
}

func TestHTTPResolverUnlinkedAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "", 0)
	_, err := r.Resolve(context.Background(), "owner-1", "facebook")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPResolverRevokedAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "", 0)
	_, err := r.Resolve(context.Background(), "owner-1", "facebook")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPResolverExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expired := time.Now().Add(-time.Hour).Format(time.RFC3339)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token": "stale-token", "expires_at": %q}`, expired)
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "", 0)
	_, err := r.Resolve(context.Background(), "owner-1", "linkedin")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPResolverEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": ""}`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "", 0)
	_, err := r.Resolve(context.Background(), "owner-1", "facebook")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPResolverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPResolver(zap.NewNop(), srv.URL, "", 0)
	_, err := r.Resolve(context.Background(), "owner-1", "facebook")
	require.Error(t, err)
	// A flapping account service is not the same as a revoked credential.
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver()
	r.Set("owner-1", "twitter", platform.Credential{AccessToken: "token-a"})

	cred, err := r.Resolve(context.Background(), "owner-1", "twitter")
	require.NoError(t, err)
	assert.Equal(t, "token-a", cred.AccessToken)

	_, err = r.Resolve(context.Background(), "owner-1", "facebook")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = r.Resolve(context.Background(), "owner-2", "twitter")
	assert.ErrorIs(t, err, ErrUnavailable)
}
