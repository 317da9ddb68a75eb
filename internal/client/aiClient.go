package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"waifuhospital/internal/dto"
)

// AIServiceClient talks to the secondary chat/image service. That service
// owns the LLM fallback behavior, so callers treat its answers as final.
type AIServiceClient interface {
	Chat(ctx context.Context, characterID, message string) (*dto.AIChatResponse, error)
	GenerateImage(ctx context.Context, prompt, artStyle string) (*dto.AIImageResponse, error)
}

type aiServiceClientImpl struct {
	httpClient *http.Client
	baseURL    string
}

func NewAIServiceClient(baseURL string) AIServiceClient {
	return &aiServiceClientImpl{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: baseURL,
	}
}

func (c *aiServiceClientImpl) post(ctx context.Context, path string, payload, out interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(b))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ai service error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ai service response: %w", err)
	}
	return nil
}

func (c *aiServiceClientImpl) Chat(ctx context.Context, characterID, message string) (*dto.AIChatResponse, error) {
	var out dto.AIChatResponse
	err := c.post(ctx, "/api/chat", &dto.AIChatRequest{
		CharacterID: characterID,
		Message:     message,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("ai chat: %w", err)
	}
	return &out, nil
}

func (c *aiServiceClientImpl) GenerateImage(ctx context.Context, prompt, artStyle string) (*dto.AIImageResponse, error) {
	var out dto.AIImageResponse
	err := c.post(ctx, "/api/generate-image", &dto.AIImageRequest{
		Prompt:   prompt,
		ArtStyle: artStyle,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("ai generate image: %w", err)
	}
	return &out, nil
}
