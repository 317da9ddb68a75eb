package aiservice

import (
	"context"
	"fmt"
	"log"
	"strings"

	"waifuhospital/internal/client"
	"waifuhospital/internal/model"
	"waifuhospital/internal/service"
)

// ChatService produces character replies. LLM failures degrade to a
// character-aware canned greeting; only an unknown character is an error.
type ChatService struct {
	llm   client.LLMGateway
	cache *CharacterCache
}

func NewChatService(llm client.LLMGateway, cache *CharacterCache) *ChatService {
	return &ChatService{
		llm:   llm,
		cache: cache,
	}
}

// Character returns the cached character record.
func (s *ChatService) Character(ctx context.Context, characterID string) (*model.Character, error) {
	return s.cache.Get(ctx, characterID)
}

// GenerateReply returns the character's reply and whether it is a fallback.
func (s *ChatService) GenerateReply(ctx context.Context, characterID, userMessage string) (string, bool, error) {
	character, err := s.cache.Get(ctx, characterID)
	if err != nil {
		return "", false, fmt.Errorf("load character %s: %w", characterID, err)
	}

	systemPrompt := service.BuildSystemPrompt(character)

	reply, err := s.llm.ChatCompletion(ctx, systemPrompt, userMessage)
	if err != nil {
		log.Printf("chat completion failed for character %s: %v", characterID, err)
		return fallbackReply(character), true, nil
	}

	return reply, false, nil
}

// fallbackReply is the canned in-character greeting served when the language
// model is unreachable. It reuses whatever persona fields are present so the
// degradation stays invisible to the end user.
func fallbackReply(c *model.Character) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi there! I'm %s", c.Name)
	if c.Occupation != "" {
		fmt.Fprintf(&b, ", %s", c.Occupation)
	}
	b.WriteString(".")

	if c.Personality != "" {
		fmt.Fprintf(&b, " I'm known for being %s.", c.Personality)
	}
	if len(c.Interests) > 0 {
		fmt.Fprintf(&b, " I'm interested in %s.", strings.Join(c.Interests, ", "))
	}
	b.WriteString(" What would you like to talk about?")

	return b.String()
}
