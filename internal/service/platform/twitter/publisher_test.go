package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

func testConfig(apiURL, uploadURL string) Config {
	return Config{
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		APIBaseURL:     apiURL,
		UploadBaseURL:  uploadURL,
	}
}

func testCredential() platform.Credential {
	return platform.Credential{AccessToken: "user-token", TokenSecret: "user-secret"}
}

func TestPublishTextOnly(t *testing.T) {
	var mediaCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			mediaCalled = true
		case "/2/tweets":
			// Every request carries an OAuth1 signature.
			auth := r.Header.Get("Authorization")
			assert.True(t, strings.HasPrefix(auth, "OAuth "), "got %q", auth)
			assert.Contains(t, auth, `oauth_consumer_key="consumer-key"`)
			assert.Contains(t, auth, `oauth_token="user-token"`)
			assert.Contains(t, auth, `oauth_signature_method="HMAC-SHA1"`)

			var tweet tweetRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
			assert.Equal(t, "hello from the api", tweet.Text)
			assert.Nil(t, tweet.Media)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data": {"id": "1234567890", "text": "hello from the api"}}`))
		}
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), testConfig(srv.URL, srv.URL))
	result, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "hello from the api",
		Credential: testCredential(),
	})
	require.NoError(t, err)
	assert.Equal(t, "1234567890", result.ExternalID)
	assert.False(t, mediaCalled, "text-only tweets must skip the media phase")
}

func TestPublishWithImage(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/1.1/media/upload.json":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, _, err := r.FormFile("media")
			require.NoError(t, err)
			defer file.Close()

			w.Write([]byte(`{"media_id": 710511363345354753, "media_id_string": "710511363345354753"}`))
		case "/2/tweets":
			var tweet tweetRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
			require.NotNil(t, tweet.Media)
			assert.Equal(t, []string{"710511363345354753"}, tweet.Media.MediaIDs)

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data": {"id": "999", "text": "with media"}}`))
		}
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), testConfig(srv.URL, srv.URL))
	result, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "with media",
		Image:      &platform.Asset{Ref: "img-1", Data: []byte("png-bytes")},
		Credential: testCredential(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/1.1/media/upload.json", "/2/tweets"}, paths)
	assert.Equal(t, "999", result.ExternalID)
	assert.Equal(t, "710511363345354753", result.Metadata["media_id"])
}

func TestPublishRequiresTokenPair(t *testing.T) {
	p := NewPublisher(zap.NewNop(), testConfig("", ""))

	for _, cred := range []platform.Credential{
		{},
		{AccessToken: "user-token"},
		{TokenSecret: "user-secret"},
	} {
		_, err := p.Publish(context.Background(), platform.PublishRequest{Text: "x", Credential: cred})
		var pubErr *platform.PublishError
		require.ErrorAs(t, err, &pubErr)
		assert.Equal(t, models.ErrKindCredentialUnavailable, pubErr.Kind)
	}
}

func TestPublishUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"title": "Unauthorized"}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), testConfig(srv.URL, srv.URL))
	_, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "x",
		Credential: testCredential(),
	})

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindCredentialUnavailable, pubErr.Kind)
}

func TestPublishRateLimitedIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"title": "Too Many Requests"}`))
	}))
	defer srv.Close()

	p := NewPublisher(zap.NewNop(), testConfig(srv.URL, srv.URL))
	_, err := p.Publish(context.Background(), platform.PublishRequest{
		Text:       "one more tweet",
		Credential: testCredential(),
	})

	var pubErr *platform.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, models.ErrKindPlatformRejected, pubErr.Kind)
}
