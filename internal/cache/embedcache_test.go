package cache

import (
	"context"
	"strings"
	"testing"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("gemini-embedding-001", "Maxay tahay Faatixada?")
	b := Key("gemini-embedding-001", "Maxay tahay Faatixada?")
	if a != b {
		t.Fatalf("same inputs produced different keys: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "tafsiir:embed:") {
		t.Fatalf("key missing namespace prefix: %s", a)
	}
}

func TestKeySeparatesModelAndText(t *testing.T) {
	if Key("model-a", "text") == Key("model-b", "text") {
		t.Fatalf("different models must not share a key")
	}
	if Key("model", "text-a") == Key("model", "text-b") {
		t.Fatalf("different texts must not share a key")
	}
	// the separator keeps (ab, c) and (a, bc) from colliding
	if Key("ab", "c") == Key("a", "bc") {
		t.Fatalf("key must not be a plain concatenation")
	}
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *EmbeddingCache
	ctx := context.Background()

	if vec, ok := c.Fetch(ctx, "model", "text"); ok || vec != nil {
		t.Fatalf("nil cache Fetch = (%v, %v), want miss", vec, ok)
	}
	c.Save(ctx, "model", "text", []float32{1, 2, 3})
	if err := c.Close(); err != nil {
		t.Fatalf("nil cache Close: %v", err)
	}
}
