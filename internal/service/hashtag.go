package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/config"
)

// ErrHashtagsDisabled means no hashtag provider is configured.
var ErrHashtagsDisabled = errors.New("hashtag suggestions are disabled")

// HashtagService suggests hashtags for composer keywords through the RiteKit
// hashtag-suggestions API.
type HashtagService struct {
	config *config.HashtagConfig
	logger *zap.Logger
	client *http.Client
}

type hashtagSuggestionsResponse struct {
	Data []struct {
		Hashtag string `json:"hashtag"`
	} `json:"data"`
}

func NewHashtagService(cfg *config.HashtagConfig, logger *zap.Logger) *HashtagService {
	return &HashtagService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Suggest returns hashtag suggestions for a keyword.
func (h *HashtagService) Suggest(ctx context.Context, keyword string) ([]string, error) {
	if !h.config.Enabled || h.config.APIKey == "" {
		return nil, ErrHashtagsDisabled
	}

	endpoint := fmt.Sprintf("%s/v1/stats/hashtag-suggestions?text=%s",
		strings.TrimRight(h.config.BaseURL, "/"), url.QueryEscape(keyword))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", h.config.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("hashtag API returned status %d: %s", resp.StatusCode, string(body))
	}

	var suggestions hashtagSuggestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&suggestions); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	tags := make([]string, 0, len(suggestions.Data))
	for _, item := range suggestions.Data {
		tags = append(tags, item.Hashtag)
	}

	h.logger.Debug("Fetched hashtag suggestions",
		zap.String("keyword", keyword),
		zap.Int("count", len(tags)))
	return tags, nil
}
