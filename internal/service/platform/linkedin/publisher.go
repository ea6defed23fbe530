package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

const (
	defaultAPIBaseURL = "https://api.linkedin.com"

	uploadMechanismKey = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
)

// Config holds app-level settings for the LinkedIn publisher.
type Config struct {
	APIBaseURL string
	Timeout    time.Duration
}

// Publisher posts UGC shares for a LinkedIn member in three phases: register
// an upload asset, upload the image binary to the returned URL, then create
// the UGC post referencing the asset URN. Any phase failure aborts the
// remaining phases. Text-only posts skip the first two phases.
type Publisher struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type registerUploadRequest struct {
	RegisterUploadRequest struct {
		Recipes              []string              `json:"recipes"`
		Owner                string                `json:"owner"`
		ServiceRelationships []serviceRelationship `json:"serviceRelationships"`
	} `json:"registerUploadRequest"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

func NewPublisher(logger *zap.Logger, cfg Config) *Publisher {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Publisher{
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
	}
}

func (p *Publisher) Name() string {
	return models.PlatformLinkedIn
}

func (p *Publisher) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	if req.Credential.AccessToken == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing access token", nil)
	}
	if req.Credential.Expired(time.Now()) {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "access token expired", nil)
	}
	if req.Credential.AccountID == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing person urn", nil)
	}

	owner := personURN(req.Credential.AccountID)

	var assetURN string
	if req.Image != nil {
		if len(req.Image.Data) == 0 {
			return nil, platform.NewPublishError(p.Name(), models.ErrKindValidation, "image asset has no binary data", nil)
		}

		registered, err := p.registerUpload(ctx, req.Credential, owner)
		if err != nil {
			return nil, err
		}

		mechanism, ok := registered.Value.UploadMechanism[uploadMechanismKey]
		if !ok || mechanism.UploadURL == "" {
			return nil, platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
				"register upload response missing upload url", nil)
		}

		if err := p.uploadBinary(ctx, req.Credential, mechanism.UploadURL, req.Image); err != nil {
			return nil, err
		}

		assetURN = registered.Value.Asset
		p.logger.Debug("Uploaded LinkedIn image asset", zap.String("asset", assetURN))
	}

	postID, err := p.createUGCPost(ctx, req.Credential, owner, req.Text, assetURN)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Published to LinkedIn",
		zap.String("owner", owner),
		zap.String("post_id", postID))

	result := &platform.PublishResult{
		Success:     true,
		ExternalID:  postID,
		PublishedAt: time.Now(),
	}
	if assetURN != "" {
		result.Metadata = map[string]string{"asset": assetURN}
	}
	return result, nil
}

// registerUpload is phase one: reserve an image asset slot and get the upload
// URL and asset URN back.
func (p *Publisher) registerUpload(ctx context.Context, cred platform.Credential, owner string) (*registerUploadResponse, error) {
	endpoint := p.baseURL + "/v2/assets?action=registerUpload"

	var body registerUploadRequest
	body.RegisterUploadRequest.Recipes = []string{"urn:li:digitalmediaRecipe:feedshare-image"}
	body.RegisterUploadRequest.Owner = owner
	body.RegisterUploadRequest.ServiceRelationships = []serviceRelationship{
		{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.statusError(resp, "register upload")
	}

	var registered registerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"failed to decode register upload response", err)
	}
	if registered.Value.Asset == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"register upload response missing asset urn", nil)
	}

	return &registered, nil
}

// uploadBinary is phase two: push the raw image bytes to the upload URL.
func (p *Publisher) uploadBinary(ctx context.Context, cred platform.Credential, uploadURL string, asset *platform.Asset) error {
	contentType := asset.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(asset.Data))
	if err != nil {
		return platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.statusError(resp, "binary upload")
	}
	return nil
}

// createUGCPost is phase three: create the share referencing the uploaded
// asset, or a text-only share when assetURN is empty.
func (p *Publisher) createUGCPost(ctx context.Context, cred platform.Credential, owner, text, assetURN string) (string, error) {
	endpoint := p.baseURL + "/v2/ugcPosts"

	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": "NONE",
	}
	if assetURN != "" {
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]interface{}{
			{
				"status":      "READY",
				"description": map[string]string{"text": "Image"},
				"media":       assetURN,
				"title":       map[string]string{"text": "Image"},
			},
		}
	}

	body := map[string]interface{}{
		"author":         owner,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.statusError(resp, "ugc post")
	}

	// LinkedIn returns the post URN in the x-restli-id header; newer
	// responses also carry it in the body.
	if id := resp.Header.Get("x-restli-id"); id != "" {
		return id, nil
	}

	var ugcResp ugcPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&ugcResp); err == nil && ugcResp.ID != "" {
		return ugcResp.ID, nil
	}

	return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
		"ugc post response missing id", nil)
}

func (p *Publisher) statusError(resp *http.Response, phase string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return platform.NewPublishError(p.Name(), platform.KindForStatus(resp.StatusCode),
		fmt.Sprintf("%s returned status %d: %s", phase, resp.StatusCode, strings.TrimSpace(string(data))), nil)
}

func personURN(accountID string) string {
	if strings.HasPrefix(accountID, "urn:li:") {
		return accountID
	}
	return "urn:li:person:" + accountID
}
