package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/config"
)

func TestHashtagSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stats/hashtag-suggestions", r.URL.Path)
		assert.Equal(t, "sunset photography", r.URL.Query().Get("text"))
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"hashtag": "sunset"}, {"hashtag": "goldenhour"}]}`))
	}))
	defer srv.Close()

	h := NewHashtagService(&config.HashtagConfig{Enabled: true, BaseURL: srv.URL, APIKey: "test-key"}, zap.NewNop())
	tags, err := h.Suggest(context.Background(), "sunset photography")
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset", "goldenhour"}, tags)
}

func TestHashtagSuggestDisabled(t *testing.T) {
	h := NewHashtagService(&config.HashtagConfig{Enabled: false}, zap.NewNop())
	_, err := h.Suggest(context.Background(), "sunset")
	assert.ErrorIs(t, err, ErrHashtagsDisabled)

	// Enabled without a key is still unusable.
	h = NewHashtagService(&config.HashtagConfig{Enabled: true}, zap.NewNop())
	_, err = h.Suggest(context.Background(), "sunset")
	assert.ErrorIs(t, err, ErrHashtagsDisabled)
}

func TestHashtagSuggestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := NewHashtagService(&config.HashtagConfig{Enabled: true, BaseURL: srv.URL, APIKey: "test-key"}, zap.NewNop())
	_, err := h.Suggest(context.Background(), "sunset")
	assert.Error(t, err)
}
