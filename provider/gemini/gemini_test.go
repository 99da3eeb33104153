package gemini_provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/omartood/tafsiir-agent/provider"
)

func newTestClient(url string) *client {
	return NewClient("test-key", url, "gemini-embedding-001", 0.2, 1024, 5*time.Second)
}

func TestEmbedDiscoversDimension(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-embedding-001:embedContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	if got := c.Identity().Dimension; got != 0 {
		t.Fatalf("dimension before first embed should be 0, got %d", got)
	}

	vec, err := c.Embed(context.Background(), "waa maxay suuradda ugu horreysa?")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 values, got %d", len(vec))
	}

	id := c.Identity()
	if id.Provider != "gemini" || id.Model != "gemini-embedding-001" || id.Dimension != 3 {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestEmbedEmptyPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[]}}`))
	}))
	defer ts.Close()

	if _, err := newTestClient(ts.URL).Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty embedding payload")
	}
}

func TestEmbedQuotaError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Embed(context.Background(), "q")
	ae, ok := provider.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !ae.IsRateLimited() {
		t.Fatalf("429 should classify as rate limited: %+v", ae)
	}
}

func TestGenerateJoinsParts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Suuradda "},{"text":"Faatixa"}]}}]}`))
	}))
	defer ts.Close()

	text, err := newTestClient(ts.URL).Generate(context.Background(), "gemini-2.0-flash", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Suuradda Faatixa" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer ts.Close()

	if _, err := newTestClient(ts.URL).Generate(context.Background(), "gemini-pro", "prompt"); err == nil {
		t.Fatal("expected error for empty candidate list")
	}
}

func TestGenerateNotFoundError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Generate(context.Background(), "gemini-old", "prompt")
	ae, ok := provider.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !ae.IsNotFound() {
		t.Fatalf("404 should classify as not found: %+v", ae)
	}
	if ae.Model != "gemini-old" {
		t.Fatalf("error should carry the offending model, got %q", ae.Model)
	}
	if !strings.Contains(ae.Error(), "404") {
		t.Fatalf("error text should include the status: %v", ae)
	}
}
