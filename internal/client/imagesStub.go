package client

import (
	"context"
	"fmt"
	"sync"
)

// StubImageHost keeps "uploaded" images in memory and serves deterministic
// delivery URLs.
type StubImageHost struct {
	mu      sync.Mutex
	seq     int
	Uploads map[string]string // image ID -> source URL
}

func NewStubImageHost() *StubImageHost {
	return &StubImageHost{Uploads: make(map[string]string)}
}

func (s *StubImageHost) UploadFromURL(ctx context.Context, sourceURL string, metadata map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("img_stub_%d", s.seq)
	s.Uploads[id] = sourceURL
	return id, nil
}

func (s *StubImageHost) DeleteImage(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Uploads, imageID)
	return nil
}

func (s *StubImageHost) DeliveryURL(imageID string) string {
	return "https://images.example.com/" + imageID + "/public"
}
