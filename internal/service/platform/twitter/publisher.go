package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"github.com/postwave/postwave/internal/models"
	"github.com/postwave/postwave/internal/service/platform"
)

const (
	defaultAPIBaseURL    = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com"
)

// Config holds the app-level OAuth1 consumer pair and endpoints for the
// Twitter/X publisher.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	APIBaseURL     string
	UploadBaseURL  string
	Timeout        time.Duration
}

// Publisher posts tweets through the v2 API. Every request is OAuth1
// HMAC-SHA1 signed with the app consumer pair and the user's token pair.
// Image posts upload the media first and reference the returned media id;
// text-only posts skip the media phase.
type Publisher struct {
	logger      *zap.Logger
	oauthConfig *oauth1.Config
	apiBase     string
	uploadBase  string
	timeout     time.Duration
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func NewPublisher(logger *zap.Logger, cfg Config) *Publisher {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = defaultUploadBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Publisher{
		logger:      logger,
		oauthConfig: oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		uploadBase:  strings.TrimRight(cfg.UploadBaseURL, "/"),
		timeout:     cfg.Timeout,
	}
}

func (p *Publisher) Name() string {
	return models.PlatformTwitter
}

func (p *Publisher) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	if req.Credential.AccessToken == "" || req.Credential.TokenSecret == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing oauth token pair", nil)
	}
	if req.Credential.Expired(time.Now()) {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "access token expired", nil)
	}
	if p.oauthConfig.ConsumerKey == "" || p.oauthConfig.ConsumerSecret == "" {
		return nil, platform.NewPublishError(p.Name(), models.ErrKindCredentialUnavailable, "missing consumer key pair", nil)
	}

	client := p.signedClient(ctx, req.Credential)

	var mediaID string
	if req.Image != nil {
		if len(req.Image.Data) == 0 {
			return nil, platform.NewPublishError(p.Name(), models.ErrKindValidation, "image asset has no binary data", nil)
		}
		var err error
		mediaID, err = p.uploadMedia(ctx, client, req.Image)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("Uploaded Twitter media", zap.String("media_id", mediaID))
	}

	tweetID, err := p.createTweet(ctx, client, req.Text, mediaID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Published to Twitter", zap.String("tweet_id", tweetID))

	result := &platform.PublishResult{
		Success:     true,
		ExternalID:  tweetID,
		PublishedAt: time.Now(),
	}
	if mediaID != "" {
		result.Metadata = map[string]string{"media_id": mediaID}
	}
	return result, nil
}

// signedClient builds an http.Client whose transport signs every request
// with HMAC-SHA1 over the consumer pair and the user's token pair.
func (p *Publisher) signedClient(ctx context.Context, cred platform.Credential) *http.Client {
	token := oauth1.NewToken(cred.AccessToken, cred.TokenSecret)
	client := p.oauthConfig.Client(ctx, token)
	client.Timeout = p.timeout
	return client
}

func (p *Publisher) uploadMedia(ctx context.Context, client *http.Client, asset *platform.Asset) (string, error) {
	endpoint := p.uploadBase + "/1.1/media/upload.json"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	if _, err := part.Write(asset.Data); err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	if err := writer.Close(); err != nil {
		return "", platform.Classify(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.statusError(resp, "media upload")
	}

	var uploadResp mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"failed to decode media upload response", err)
	}
	if uploadResp.MediaIDString == "" {
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"media upload response missing media id", nil)
	}

	return uploadResp.MediaIDString, nil
}

func (p *Publisher) createTweet(ctx context.Context, client *http.Client, text, mediaID string) (string, error) {
	endpoint := p.apiBase + "/2/tweets"

	tweet := tweetRequest{Text: text}
	if mediaID != "" {
		tweet.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}

	jsonBody, err := json.Marshal(tweet)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", platform.Classify(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.statusError(resp, "tweet creation")
	}

	var tweetResp tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tweetResp); err != nil {
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected,
			"failed to decode tweet response", err)
	}
	if tweetResp.Data.ID == "" {
		message := "tweet response missing id"
		if len(tweetResp.Errors) > 0 {
			message = tweetResp.Errors[0].Message
		}
		return "", platform.NewPublishError(p.Name(), models.ErrKindPlatformRejected, message, nil)
	}

	return tweetResp.Data.ID, nil
}

func (p *Publisher) statusError(resp *http.Response, phase string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return platform.NewPublishError(p.Name(), platform.KindForStatus(resp.StatusCode),
		fmt.Sprintf("%s returned status %d: %s", phase, resp.StatusCode, strings.TrimSpace(string(data))), nil)
}
