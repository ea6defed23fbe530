package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v20.0"

// Config holds app-level settings for the Facebook publisher.
type Config struct {
	GraphBaseURL string
	Timeout      time.Duration
}

// Publisher posts to a Facebook page through the Graph API. Image posts are a
// single multipart upload of photo plus caption to the page photos edge;
// text-only posts go to the page feed edge.
type Publisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type graphResponse struct {
	ID     string      `json:"id"`
	PostID string      `json:"post_id"`
	Error  *graphError `json:"error"`
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
	return models.PlatformFacebook
}

func (p *Publisher) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	if req.Credential.AccessToken == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing access token", nil)
	}
	if req.Credential.Expired(time.Now()) {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "access token expired", nil)
	}
	if req.Credential.AccountID == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing page id", nil)
	}

	var (
		resp *graphResponse
		err  error
	)
	if req.Image != nil {
		resp, err = p.uploadPhoto(ctx, req)
	} else {
		resp, err = p.postToFeed(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	externalID := resp.PostID
	if externalID == "" {
		externalID = resp.ID
	}

	p.logger.Info("Published to Facebook page",
		zap.String("page_id", req.Credential.AccountID),
		zap.String("external_id", externalID))

	return &platform.PublishResult{
		Success:     true,
		ExternalID:  externalID,
		PublishedAt: time.Now(),
	}, nil
}

// uploadPhoto performs the single-step multipart upload of image and caption
// to the page photos edge. Remote-only assets are passed by url instead of
// re-uploading the bytes.
func (p *Publisher) uploadPhoto(ctx context.Context, req platform.PublishRequest) (*graphResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/photos", p.baseURL, req.Credential.AccountID)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if len(req.Image.Data) > 0 {
		part, err := writer.CreateFormFile("source", "photo")
		if err != nil {
			return nil, platform.Classify(p.Name(), err)
		}
		if _, err := part.Write(req.Image.Data); err != nil {
			return nil, platform.Classify(p.Name(), err)
		}
	} else if req.Image.URL != "" {
		if err := writer.WriteField("url", req.Image.URL); err != nil {
			return nil, platform.Classify(p.Name(), err)
		}
	} else {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindValidation, "image has neither data nor url", nil)
	}

	if err := writer.WriteField("message", req.Text); err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	if err := writer.WriteField("access_token", req.Credential.AccessToken); err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	if err := writer.Close(); err != nil {
		return nil, platform.Classify(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	return p.doGraph(httpReq)
}

func (p *Publisher) postToFeed(ctx context.Context, req platform.PublishRequest) (*graphResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/feed", p.baseURL, req.Credential.AccountID)

	form := url.Values{}
	form.Set("message", req.Text)
	form.Set("access_token", req.Credential.AccessToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.doGraph(httpReq)
}

func (p *Publisher) doGraph(req *http.Request) (*graphResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}

	var graphResp graphResponse
	if err := json.Unmarshal(data, &graphResp); err != nil && resp.StatusCode == http.StatusOK {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"unexpected graph response", err)
	}

	if resp.StatusCode != http.StatusOK || graphResp.Error != nil {
		message := fmt.Sprintf("graph API returned status %d", resp.StatusCode)
		if graphResp.Error != nil {
			message = fmt.Sprintf("graph API error %d: %s", graphResp.Error.Code, graphResp.Error.Message)
		}
		kind := platform.KindForStatus(resp.StatusCode)
		// The Graph API reports expired tokens as OAuthException with 400.
		if graphResp.Error != nil && graphResp.Error.Type == "OAuthException" {
			kind = models.ErrKindCredentialUnavailable
		}
		return nil, platform.NewPublishError(p.Name(), kind, message, nil)
	}

	return &graphResp, nil
}
