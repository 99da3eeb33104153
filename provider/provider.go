package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Identity names the embedding model that produced a vector. All vectors in
// one store must share a single identity or similarity search is meaningless.
type Identity struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s (dim %d)", id.Provider, id.Model, id.Dimension)
}

// Embedder maps text to a fixed-dimension vector using one named model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Identity reports the embedding model identity. Dimension is zero until
	// the first successful Embed call discovers it.
	Identity() Identity
}

// Generator produces text from a prompt using the given model identifier.
type Generator interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Embedder
	Generator
}

// APIError is a non-2xx response from the model API. The query pipeline
// branches on its class: quota and not-found errors are retryable by
// substituting the next model in the fallback list, everything else aborts.
type APIError struct {
	StatusCode int
	Model      string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API returned status %d: %s", e.Model, e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is a quota-exhaustion response.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(strings.ToLower(e.Message), "quota")
}

// IsNotFound reports whether the model identifier is unknown to the API.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound ||
		strings.Contains(strings.ToLower(e.Message), "not found")
}

// AsAPIError unwraps err to an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
