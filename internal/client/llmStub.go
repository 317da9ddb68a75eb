package client

import (
	"context"
	"fmt"
	"sync"
)

// StubLLMGateway returns canned completions and records prompts for tests.
type StubLLMGateway struct {
	mu            sync.Mutex
	seq           int
	SystemPrompts []string
	ImagePrompts  []string

	// Reply overrides the canned chat response when non-empty.
	Reply string
	// Err, when set, is returned from every call to exercise fallbacks.
	Err error
}

func NewStubLLMGateway() *StubLLMGateway {
	return &StubLLMGateway{}
}

func (s *StubLLMGateway) ChatCompletion(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.SystemPrompts = append(s.SystemPrompts, systemPrompt)
	if s.Reply != "" {
		return s.Reply, nil
	}
	return "Hehe~ that's such an interesting thing to say!", nil
}

func (s *StubLLMGateway) GenerateImage(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.seq++
	s.ImagePrompts = append(s.ImagePrompts, prompt)
	return fmt.Sprintf("https://images.example.com/generated_stub_%d.png", s.seq), nil
}
