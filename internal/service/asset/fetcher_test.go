package asset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets/img-1", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(zap.NewNop(), srv.URL, "https://cdn.example.com", 0)
	asset, err := f.Fetch(context.Background(), "img-1")
	require.NoError(t, err)
	assert.Equal(t, "img-1", asset.Ref)
	assert.Equal(t, []byte("png-bytes"), asset.Data)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, "https://cdn.example.com/assets/img-1", asset.URL)
}

func TestHTTPFetcherDetectsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("\x89PNG\r\n\x1a\n rest of a png"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(zap.NewNop(), srv.URL, "", 0)
	asset, err := f.Fetch(context.Background(), "img-2")
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
}

func TestHTTPFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(zap.NewNop(), srv.URL, "", 0)
	_, err := f.Fetch(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(zap.NewNop(), srv.URL, "", 0)
	_, err := f.Fetch(context.Background(), "img-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPFetcherPublicBaseDefaultsToBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(zap.NewNop(), srv.URL, "", 0)
	asset, err := f.Fetch(context.Background(), "img-1")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/assets/img-1", asset.URL)
}
