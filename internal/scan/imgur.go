package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const defaultImgurBase = "https://api.imgur.com/3"

var ErrUploadUnavailable = errors.New("image upload unavailable")

// Imgur re-uploads images to keep a copy of deleted attachments. Discord
// CDN links die once the source message is gone, so the audit trail stores
// the mirrored URL instead.
type Imgur struct {
	clientID string
	baseURL  string
	client   *retryablehttp.Client
	logger   *zap.Logger
}

func NewImgur(clientID string, logger *zap.Logger) *Imgur {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &Imgur{
		clientID: clientID,
		baseURL:  defaultImgurBase,
		client:   client,
		logger:   logger,
	}
}

func (i *Imgur) Enabled() bool {
	return i.clientID != ""
}

// Upload mirrors the image at sourceURL and returns the hosted link.
func (i *Imgur) Upload(ctx context.Context, sourceURL string) (string, error) {
	if !i.Enabled() {
		return "", ErrUploadUnavailable
	}

	form := url.Values{"image": {sourceURL}, "type": {"url"}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/image", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Client-ID "+i.clientID)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUploadUnavailable, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Link string `json:"link"`
		} `json:"data"`
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUploadUnavailable, err)
	}
	if !body.Success || body.Data.Link == "" {
		return "", fmt.Errorf("%w: rejected upload", ErrUploadUnavailable)
	}
	return body.Data.Link, nil
}
