package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"waifuhospital/internal/config"
)

// LLMGateway produces character chat replies and generated artwork. Callers
// are expected to degrade gracefully when these calls fail.
type LLMGateway interface {
	ChatCompletion(ctx context.Context, systemPrompt, userMessage string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageGenerationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type openAIClientImpl struct {
	httpClient  *http.Client
	baseAPIURL  string
	chatAPIKey  string
	imageAPIKey string
	chatModel   string
	imageModel  string
}

func NewOpenAIClient(cfg *config.OpenAI) LLMGateway {
	return &openAIClientImpl{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseAPIURL:  cfg.BaseAPIURL,
		chatAPIKey:  cfg.ChatAPIKey,
		imageAPIKey: cfg.ImageAPIKey,
		chatModel:   cfg.ChatModel,
		imageModel:  cfg.ImageModel,
	}
}

func (c *openAIClientImpl) postJSON(ctx context.Context, path, apiKey string, payload, out interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseAPIURL+path, bytes.NewBuffer(b))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai error %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

func (c *openAIClientImpl) ChatCompletion(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	}

	var result chatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", c.chatAPIKey, payload, &result); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *openAIClientImpl) GenerateImage(ctx context.Context, prompt string) (string, error) {
	payload := imageGenerationRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   "1024x1024",
	}

	var result imageGenerationResponse
	if err := c.postJSON(ctx, "/images/generations", c.imageAPIKey, payload, &result); err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if len(result.Data) == 0 {
		return "", fmt.Errorf("generate image: empty data")
	}
	return result.Data[0].URL, nil
}
