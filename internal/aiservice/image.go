package aiservice

import (
	"context"
	"fmt"
	"log"

	"waifuhospital/internal/client"
)

// fallbackImages maps an art style to a static placeholder served when image
// generation fails. Unknown styles get the anime placeholder.
var fallbackImages = map[string]string{
	"anime":     "https://static.waifuhospital.example/placeholders/anime.jpg",
	"retro":     "https://static.waifuhospital.example/placeholders/retro.jpg",
	"gothic":    "https://static.waifuhospital.example/placeholders/gothic.jpg",
	"neocyber":  "https://static.waifuhospital.example/placeholders/neocyber.jpg",
	"realistic": "https://static.waifuhospital.example/placeholders/realistic.jpg",
	"fantasy":   "https://static.waifuhospital.example/placeholders/fantasy.jpg",
	"sci-fi":    "https://static.waifuhospital.example/placeholders/sci-fi.jpg",
	"chibi":     "https://static.waifuhospital.example/placeholders/chibi.jpg",
}

// ImageService generates character artwork, degrading to a per-style
// placeholder when the model call fails.
type ImageService struct {
	llm client.LLMGateway
}

func NewImageService(llm client.LLMGateway) *ImageService {
	return &ImageService{llm: llm}
}

// Generate returns the image URL and whether it is a fallback placeholder.
func (s *ImageService) Generate(ctx context.Context, description, artStyle string) (string, bool) {
	prompt := buildImagePrompt(description, artStyle)

	url, err := s.llm.GenerateImage(ctx, prompt)
	if err != nil {
		log.Printf("image generation failed for style %q: %v", artStyle, err)
		return FallbackImage(artStyle), true
	}

	return url, false
}

// FallbackImage returns the placeholder for a style.
func FallbackImage(artStyle string) string {
	if url, ok := fallbackImages[artStyle]; ok {
		return url
	}
	return fallbackImages["anime"]
}

func buildImagePrompt(description, artStyle string) string {
	prompt := "Create a high-quality character portrait, upper body focus, centered composition. "
	prompt += fmt.Sprintf("The character has %s. ", description)
	if artStyle != "" {
		prompt += fmt.Sprintf("Render the image in %s style.", artStyle)
	}
	return prompt
}
