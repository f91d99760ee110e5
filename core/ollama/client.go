// Package ollama is the inference backend: a thin client for a local Ollama
// server's generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient points at an Ollama server, typically http://127.0.0.1:11434.
// No timeout is set on the underlying HTTP client; callers bound each
// Generate with their context, since model inference can legitimately take
// minutes.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Generate runs prompt through model and returns the complete response text.
// Streaming is disabled so the whole completion arrives in one document.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if readErr != nil || msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("ollama API error (%s): %s", resp.Status, msg)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return out.Response, nil
}
