// Package asset consumes the asset-storage collaborator. Jobs only carry an
// opaque asset reference; the binary and its public URL are resolved here at
// publish time.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/service/platform"
)

// ErrNotFound means the referenced asset no longer exists in storage.
var ErrNotFound = errors.New("asset not found")

// Fetcher resolves an asset reference to its binary and public URL.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*platform.Asset, error)
}

// HTTPFetcher pulls asset binaries from the asset-storage service. PublicBase
// is the externally reachable location of the same assets; Instagram publishes
// by URL so it must resolve outside this deployment.
type HTTPFetcher struct {
	logger     *zap.Logger
	client     *http.Client
	baseURL    string
	publicBase string
}

func NewHTTPFetcher(logger *zap.Logger, baseURL, publicBase string, timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if publicBase == "" {
		publicBase = baseURL
	}
	return &HTTPFetcher{
		logger:     logger,
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (*platform.Asset, error) {
	endpoint := f.baseURL + "/assets/" + url.PathEscape(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach asset storage: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	default:
		return nil, fmt.Errorf("asset storage returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	f.logger.Debug("Fetched asset",
		zap.String("ref", ref),
		zap.Int("size", len(data)),
		zap.String("content_type", contentType))

	return &platform.Asset{
		Ref:         ref,
		URL:         f.publicBase + "/assets/" + url.PathEscape(ref),
		ContentType: contentType,
		Data:        data,
	}, nil
}
