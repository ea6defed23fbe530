package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

func testCredential() platform.Credential {
	return platform.Credential{AccessToken: "page-token", AccountID: "page-123"}
}

func TestPublishTextOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/page-123/feed", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hello world", r.PostFormValue("message"))
		assert.Equal(t, "page-token", r.PostFormValue("access_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "page-123_456"}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	result, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "hello world",
		Credential: testCredential(),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "page-123_456", result.ExternalID)
}

func TestPublishPhotoUploadsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/page-123/photos", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "caption", r.PostFormValue("message"))
		assert.Equal(t, "page-token", r.PostFormValue("access_token"))

		file, _, err := r.FormFile("source")
		require.NoError(t, err)
		defer file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "photo-1", "post_id": "page-123_789"}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	result, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "caption",
		Image:      &platform.Asset{Ref: "img-1", Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"},
		Credential: testCredential(),
	})
	require.NoError(t, err)
	// post_id identifies the feed post; the bare id is only the photo object.
	assert.Equal(t, "page-123_789", result.ExternalID)
}

func TestPublishPhotoByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "https://cdn.example.com/assets/img-1", r.PostFormValue("url"))

		_, _, err := r.FormFile("source")
		assert.Error(t, err, "remote assets must not be re-uploaded")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "photo-2"}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	result, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "caption",
		Image:      &platform.Asset{Ref: "img-1", URL: "https://cdn.example.com/assets/img-1"},
		Credential: testCredential(),
	})
	require.NoError(t, err)
	assert.Equal(t, "photo-2", result.ExternalID)
}

func TestPublishOAuthExceptionIsCredentialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Error validating access token", "type": "OAuthException", "code": 190}}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	_, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "hello",
		Credential: testCredential(),
	})

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindCredentialUnavailable, pubErr.Kind)
}

func TestPublishServerErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	_, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "hello",
		Credential: testCredential(),
	})

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindNetwork, pubErr.Kind)
}

func TestPublishRejectsBadCredential(t *testing.T) {
	p := NewPublisher(zap.NewNop(), Config{})

	cases := []platform.Credential{
		{},
		{AccessToken: "token"},
		{AccessToken: "token", AccountID: "page-123", ExpiresAt: func() *time.Time {
			t := time.Now().Add(-time.Minute)
			return &t
		}()},
	}
	for _, cred := range cases {
		_, err := p.Publish(context.Background(), platform.PublishRequest{Text: "x", Credential: cred})
		var pubErr *platform.PublishError
		require.ErrorAs(t, err, &pubErr)
		assert.Equal(t, models.ErrKindCredentialUnavailable, pubErr.Kind)
	}
}
