package aiservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"waifuhospital/internal/client"
	"waifuhospital/internal/model"
)

type fixedFetcher struct {
	character *model.Character
	err       error
}

func (f *fixedFetcher) FetchCharacter(ctx context.Context, characterID string) (*model.Character, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.character, nil
}

func newChatFixture(character *model.Character, fetchErr error) (*ChatService, *client.StubLLMGateway) {
	llm := client.NewStubLLMGateway()
	cache := NewCharacterCache(
		&fixedFetcher{character: character, err: fetchErr},
		&fakeClock{now: time.Unix(1000, 0)},
		time.Minute,
	)
	return NewChatService(llm, cache), llm
}

func TestGenerateReply(t *testing.T) {
	svc, llm := newChatFixture(&model.Character{ID: "char-1", Name: "Sakura", GreedFactor: 5}, nil)
	llm.Reply = "Oh, you flatterer~"

	reply, fallback, err := svc.GenerateReply(context.Background(), "char-1", "hello")
	if err != nil {
		t.Fatalf("generate reply: %v", err)
	}
	if fallback {
		t.Error("healthy path must not be flagged as fallback")
	}
	if reply != "Oh, you flatterer~" {
		t.Errorf("reply = %q", reply)
	}

	// The persona prompt reaches the model.
	if len(llm.SystemPrompts) != 1 || !strings.Contains(llm.SystemPrompts[0], "You are Sakura") {
		t.Error("system prompt missing persona")
	}
}

func TestGenerateReplyFallsBackOnLLMFailure(t *testing.T) {
	svc, llm := newChatFixture(&model.Character{
		ID:          "char-1",
		Name:        "Sakura",
		Occupation:  "nurse",
		Personality: "cheerful",
		Interests:   []string{"gardening", "karaoke"},
	}, nil)
	llm.Err = errors.New("model overloaded")

	reply, fallback, err := svc.GenerateReply(context.Background(), "char-1", "hello")
	if err != nil {
		t.Fatalf("LLM failure must degrade, not error: %v", err)
	}
	if !fallback {
		t.Error("degraded reply must be flagged as fallback")
	}
	for _, want := range []string{"Sakura", "nurse", "cheerful", "gardening, karaoke"} {
		if !strings.Contains(reply, want) {
			t.Errorf("fallback reply missing %q: %q", want, reply)
		}
	}
}

func TestGenerateReplyUnknownCharacter(t *testing.T) {
	svc, _ := newChatFixture(nil, fmt.Errorf("character char-x not found"))

	_, _, err := svc.GenerateReply(context.Background(), "char-x", "hello")
	if err == nil {
		t.Fatal("unknown character must be an error, not a fallback")
	}
}

func TestGenerateImageFallsBackPerStyle(t *testing.T) {
	llm := client.NewStubLLMGateway()
	svc := NewImageService(llm)

	url, fallback := svc.Generate(context.Background(), "silver hair, green eyes", "gothic")
	if fallback {
		t.Error("healthy path must not be flagged as fallback")
	}
	if url == "" {
		t.Fatal("no image url returned")
	}

	llm.Err = errors.New("model overloaded")
	url, fallback = svc.Generate(context.Background(), "silver hair, green eyes", "gothic")
	if !fallback {
		t.Error("degraded image must be flagged as fallback")
	}
	if url != FallbackImage("gothic") {
		t.Errorf("fallback url = %q, want gothic placeholder", url)
	}

	// Unknown styles get the anime placeholder.
	if FallbackImage("vaporwave") != FallbackImage("anime") {
		t.Error("unknown style must fall back to anime placeholder")
	}
}
