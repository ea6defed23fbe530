package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

func testRequest() platform.PublishRequest {
	return platform.PublishRequest{
		Text:       "caption #sunset",
		Image:      &platform.Asset{Ref: "img-1", URL: "https://cdn.example.com/assets/img-1"},
		Credential: platform.Credential{AccessToken: "ig-token", AccountID: "ig-account"},
	}
}

func TestPublishTwoPhases(t *testing.T) {
	var phases []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		phases = append(phases, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/ig-account/media":
			assert.Equal(t, "https://cdn.example.com/assets/img-1", r.PostFormValue("image_url"))
			assert.Equal(t, "caption #sunset", r.PostFormValue("caption"))
			assert.Equal(t, "ig-token", r.PostFormValue("access_token"))
			w.Write([]byte(`{"id": "container-1"}`))
		case "/ig-account/media_publish":
			assert.Equal(t, "container-1", r.PostFormValue("creation_id"))
			w.Write([]byte(`{"id": "media-1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	result, err := p.Publish(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"/ig-account/media", "/ig-account/media_publish"}, phases)
	assert.Equal(t, "media-1", result.ExternalID)
	assert.Equal(t, "container-1", result.Metadata["media_container_id"])
}

func TestPublishRequiresPublicImageURL(t *testing.T) {
	p := NewPublisher(zap.NewNop(), Config{})

	req := testRequest()
	req.Image = nil
	_, err := p.Publish(context.Background(), req)
	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindValidation, pubErr.Kind)

	// Bytes without a URL are not enough either.
	req = testRequest()
	req.Image = &platform.Asset{Ref: "img-1", Data: []byte("jpeg-bytes")}
	_, err = p.Publish(context.Background(), req)
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindValidation, pubErr.Kind)
}

func TestPublishPhaseOneFailureAbortsPhaseTwo(t *testing.T) {
	var publishCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig-account/media":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "Invalid image URL", "type": "GraphMethodException", "code": 100}}`))
		case "/ig-account/media_publish":
			publishCalled = true
		}
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	_, err := p.Publish(context.Background(), testRequest())

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindPlatformRejected, pubErr.Kind)
	assert.False(t, publishCalled)
	assert.Empty(t, pubErr.Metadata)
}

func TestPublishPhaseTwoFailureFlagsOrphanedContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ig-account/media":
			w.Write([]byte(`{"id": "container-9"}`))
		case "/ig-account/media_publish":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "Transient upstream error", "type": "GraphMethodException", "code": 2}}`))
		}
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	_, err := p.Publish(context.Background(), testRequest())

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "container-9", pubErr.Metadata["media_container_id"],
		"the orphaned container must be flagged for follow-up")
}

func TestPublishExpiredTokenIsCredentialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Error validating access token", "type": "OAuthException", "code": 190}}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), Config{GraphBaseURL: srv.URL})
	_, err := p.Publish(context.Background(), testRequest())

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindCredentialUnavailable, pubErr.Kind)
}
