package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StoreConfig for the object store client
type StoreConfig struct {
	BaseURL string // e.g., https://files.example.com
	Bucket  string
	APIKey  string
}

// Store uploads proof documents to the shared object store and returns the
// public URL other systems use to retrieve them.
type Store struct {
	baseURL    string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

// NewStore creates a new object store client
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		baseURL: cfg.BaseURL,
		bucket:  cfg.Bucket,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the object store integration is configured
func (s *Store) IsConfigured() bool {
	return s.baseURL != "" && s.bucket != ""
}

type uploadResponse struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Put uploads one document under key and returns its public URL.
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("object store not configured")
	}

	endpoint := fmt.Sprintf("%s/buckets/%s/objects/%s",
		s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))

	httpReq, err := http.NewRequestWithContext(ctx, "PUT", endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "text/html; charset=utf-8")
	if s.apiKey != "" {
		httpReq.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var uploadResp uploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w (body: %s)", err, string(respBody))
	}

	if uploadResp.URL == "" {
		// Some deployments return an empty body on success; fall back to the
		// deterministic object URL
		return endpoint, nil
	}
	return uploadResp.URL, nil
}
