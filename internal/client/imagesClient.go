package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"waifuhospital/internal/config"
)

// ImageHost stores generated and uploaded character artwork. Generated images
// come back from the model on short-lived URLs, so they are re-hosted here.
type ImageHost interface {
	UploadFromURL(ctx context.Context, sourceURL string, metadata map[string]string) (string, error)
	DeleteImage(ctx context.Context, imageID string) error
	DeliveryURL(imageID string) string
}

type cloudflareImagesImpl struct {
	httpClient  *http.Client
	baseAPIURL  string
	accountID   string
	apiToken    string
	accountHash string
}

func NewCloudflareImagesClient(cfg *config.Cloudflare) ImageHost {
	return &cloudflareImagesImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseAPIURL:  cfg.BaseAPIURL,
		accountID:   cfg.AccountID,
		apiToken:    cfg.APIToken,
		accountHash: cfg.AccountHash,
	}
}

func (c *cloudflareImagesImpl) UploadFromURL(ctx context.Context, sourceURL string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("url", sourceURL)
	if len(metadata) > 0 {
		meta, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshal image metadata: %w", err)
		}
		form.Set("metadata", string(meta))
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/images/v1", c.baseAPIURL, c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("cloudflare error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		Success bool `json:"success"`
		Result  struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode cloudflare response: %w", err)
	}
	if !result.Success {
		return "", fmt.Errorf("cloudflare upload rejected")
	}
	return result.Result.ID, nil
}

func (c *cloudflareImagesImpl) DeleteImage(ctx context.Context, imageID string) error {
	endpoint := fmt.Sprintf("%s/accounts/%s/images/v1/%s", c.baseAPIURL, c.accountID, imageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cloudflare error %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func (c *cloudflareImagesImpl) DeliveryURL(imageID string) string {
	return fmt.Sprintf("https://imagedelivery.net/%s/%s/public", c.accountHash, imageID)
}
