package aiservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"waifuhospital/internal/model"
)

// backendFetcher loads characters from the primary backend's public
// character endpoint.
type backendFetcher struct {
	httpClient *http.Client
	baseURL    string
}

func NewBackendFetcher(baseURL string) CharacterFetcher {
	return &backendFetcher{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

func (f *backendFetcher) FetchCharacter(ctx context.Context, characterID string) (*model.Character, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/characters/%s", f.baseURL, characterID), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("character %s not found", characterID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("backend error %d: %s", resp.StatusCode, string(b))
	}

	var character model.Character
	if err := json.NewDecoder(resp.Body).Decode(&character); err != nil {
		return nil, fmt.Errorf("decode character: %w", err)
	}
	return &character, nil
}
