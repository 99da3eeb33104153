package gemini_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/omartood/tafsiir-agent/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// client implements provider.Provider against the Gemini REST API
type client struct {
	apiKey          string
	baseURL         string
	embeddingModel  string
	temperature     float64
	maxOutputTokens int
	httpClient      *http.Client

	mu        sync.Mutex
	dimension int // discovered from the first successful embedding
}

// NewClient creates a new Gemini client. baseURL may be empty to use the
// public API endpoint.
func NewClient(apiKey, baseURL, embeddingModel string, temperature float64, maxOutputTokens int, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Parts []contentPart `json:"parts"`
}

// Embed generates an embedding for the given text using the configured
// embedding model.
func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody := map[string]interface{}{
		"model":   "models/" + c.embeddingModel,
		"content": content{Parts: []contentPart{{Text: text}}},
	}

	var out struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := c.post(ctx, c.embeddingModel, ":embedContent", requestBody, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%s: empty embedding in response", c.embeddingModel)
	}

	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(out.Embedding.Values)
	}
	c.mu.Unlock()

	return out.Embedding.Values, nil
}

// Identity reports the embedding model identity. Dimension is zero until the
// first successful Embed call.
func (c *client) Identity() provider.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return provider.Identity{Provider: "gemini", Model: c.embeddingModel, Dimension: c.dimension}
}

// Generate produces text for the prompt using the given model identifier.
func (c *client) Generate(ctx context.Context, model string, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"contents": []content{{Parts: []contentPart{{Text: prompt}}}},
		"generationConfig": map[string]interface{}{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxOutputTokens,
		},
	}

	var out struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
	if err := c.post(ctx, model, ":generateContent", requestBody, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%s: no candidates in response", model)
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// post sends a request to one model endpoint and decodes the JSON response.
func (c *client) post(ctx context.Context, model, action string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/models/" + model + action
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &provider.APIError{
			StatusCode: resp.StatusCode,
			Model:      model,
			Message:    strings.TrimSpace(string(b)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
