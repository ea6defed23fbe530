package instagram

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

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v20.0"

// Config holds app-level settings for the Instagram publisher.
type Config struct {
	GraphBaseURL string
	Timeout      time.Duration
}

// Publisher posts to an Instagram business account through the Graph API in
// two phases: create a media container from a public image URL and caption,
// then publish the container by id. A phase-one failure aborts phase two. A
// phase-two failure leaves an orphaned container behind; it is flagged in the
// error metadata for manual follow-up, never cleaned up automatically.
type Publisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type mediaResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func NewPublisher(logger *zap.Logger, cfg Config) *Publisher {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = defaultGraphBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Publisher{
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.GraphBaseURL, "/"),
	}
}

func (p *Publisher) Name() string {
	return models.PlatformInstagram
}

func (p *Publisher) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	if req.Credential.AccessToken == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing access token", nil)
	}
	if req.Credential.Expired(time.Now()) {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "access token expired", nil)
	}
	if req.Credential.AccountID == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing instagram account id", nil)
	}
	// Instagram has no text-only feed posts; the container phase requires a
	// publicly reachable image URL.
	if req.Image == nil || req.Image.URL == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindValidation, "instagram requires an image with a public url", nil)
	}

	containerID, err := p.createContainer(ctx, req)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Created Instagram media container",
		zap.String("account_id", req.Credential.AccountID),
		zap.String("container_id", containerID))

	mediaID, err := p.publishContainer(ctx, req.Credential, containerID)
	if err != nil {
		var pubErr *platform.PublishError
		if errors.As(err, &pubErr) {
			if pubErr.Metadata == nil {
				pubErr.Metadata = make(map[string]string)
			}
			pubErr.Metadata["media_container_id"] = containerID
		}
		p.logger.Warn("Instagram container created but publish failed, container orphaned",
			zap.String("container_id", containerID),
			zap.Error(err))
		return nil, err
	}

	p.logger.Info("Published to Instagram",
		zap.String("account_id", req.Credential.AccountID),
		zap.String("media_id", mediaID))

	return &platform.PublishResult{
		Success:     true,
		ExternalID:  mediaID,
		Metadata:    map[string]string{"media_container_id": containerID},
		PublishedAt: time.Now(),
	}, nil
}

// createContainer is phase one: register the image URL and caption and get a
// container id back.
func (p *Publisher) createContainer(ctx context.Context, req platform.PublishRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, req.Credential.AccountID)

	form := url.Values{}
	form.Set("image_url", req.Image.URL)
	form.Set("caption", req.Text)
	form.Set("access_token", req.Credential.AccessToken)

	resp, err := p.postForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"media container response missing id", nil)
	}
	return resp.ID, nil
}

// publishContainer is phase two: publish the container by its id.
func (p *Publisher) publishContainer(ctx context.Context, cred platform.Credential, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", p.baseURL, cred.AccountID)

	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", cred.AccessToken)

	resp, err := p.postForm(ctx, endpoint, form)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"media publish response missing id", nil)
	}
	return resp.ID, nil
}

func (p *Publisher) postForm(ctx context.Context, endpoint string, form url.Values) (*mediaResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}

	var mediaResp mediaResponse
	if err := json.Unmarshal(data, &mediaResp); err != nil && resp.StatusCode == http.StatusOK {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"unexpected graph response", err)
	}

	if resp.StatusCode != http.StatusOK || mediaResp.Error != nil {
		message := fmt.Sprintf("graph API returned status %d", resp.StatusCode)
		kind := platform.KindForStatus(resp.StatusCode)
		if mediaResp.Error != nil {
			message = fmt.Sprintf("graph API error %d: %s", mediaResp.Error.Code, mediaResp.Error.Message)
			if mediaResp.Error.Type == "OAuthException" {
				kind = models.ErrKindCredentialUnavailable
			}
		}
		return nil, platform.NewPublishError(p.Name(), kind, message, nil)
	}

	return &mediaResp, nil
}
