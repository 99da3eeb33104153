// Package query answers one user question grounded in retrieved Quran
// chunks: embed the question, search the store, assemble a context window
// and generate with a strict grounding prompt and model fallback.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/omartood/tafsiir-agent/config"
	"github.com/omartood/tafsiir-agent/internal/cache"
	"github.com/omartood/tafsiir-agent/internal/telemetry"
	"github.com/omartood/tafsiir-agent/internal/vectorstore"
	"github.com/omartood/tafsiir-agent/provider"
)

// Localized user-facing messages. RefusalMessage is quoted verbatim inside
// the prompt so the model emits it when the context does not support an
// answer.
const (
	RefusalMessage  = "Ma helin tafsiir cad oo ku saabsan su’aashan. Sidaas darteed kama jawaabi karo anigoo aan hubin."
	NotReadyMessage = "Nidaamku wali ma diyaarsana (Memory file missing). Fadlan maamulaha la xiriir."
	QuotaMessage    = "Xadka API (quota) waa la qaaday. Fadlan ku dayo dabayaaqad (sida daqiiqado yar) ama fiiri billing/plan-ka Google AI."
)

// ErrRateLimited indicates every model in the fallback list was exhausted by
// quota errors. The HTTP layer maps it to a 429 with QuotaMessage.
var ErrRateLimited = errors.New("generation quota exhausted on all models")

// snippetSeparator joins retrieved snippets into the context string.
const snippetSeparator = "\n\n---\n\n"

// Answer is the response for one question. NotReady marks the degraded
// store-missing reply, which is still a successful response on the wire.
type Answer struct {
	Text     string   `json:"text"`
	Sources  []Source `json:"sources,omitempty"`
	NotReady bool     `json:"-"`
}

// Source names one retrieved chunk that grounded the answer.
type Source struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Service owns the long-lived query-time state: the read-only store handle
// and the provider clients. Safe for concurrent requests; the store supports
// concurrent readers and the provider is stateless per call.
type Service struct {
	retrieval config.RetrievalConfig
	storePath string
	provider  provider.Provider
	models    []string
	cache     *cache.EmbeddingCache
	metrics   *telemetry.Metrics
	logger    *log.Logger

	mu sync.Mutex
	vs *vectorstore.Store
}

// NewService creates a query service. cache and metrics may be nil.
func NewService(retrieval config.RetrievalConfig, storePath string, prov provider.Provider, models []string, ec *cache.EmbeddingCache, metrics *telemetry.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[QUERY] ", log.LstdFlags)
	}
	return &Service{
		retrieval: retrieval,
		storePath: storePath,
		provider:  prov,
		models:    models,
		cache:     ec,
		metrics:   metrics,
		logger:    logger,
	}
}

// Close releases the store handle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vs == nil {
		return nil
	}
	err := s.vs.Close()
	s.vs = nil
	return err
}

// Ask answers one question. A missing store is not an error: it returns the
// localized not-ready answer so an unseeded system degrades to a friendly
// message instead of a 5xx.
func (s *Service) Ask(ctx context.Context, message string) (*Answer, error) {
	vs, err := s.store()
	if err != nil {
		if errors.Is(err, vectorstore.ErrStoreNotFound) {
			s.logger.Printf("store %s missing, replying not-ready", s.storePath)
			return &Answer{Text: NotReadyMessage, NotReady: true}, nil
		}
		return nil, err
	}

	vec, err := s.embedQuestion(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := vs.Search(ctx, vec, s.retrieval.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}
	s.logger.Printf("found %d relevant chunks", len(hits))

	// zero hits still go through generation: the prompt contract produces
	// the refusal, keeping that message centrally defined
	prompt := buildPrompt(assembleContext(hits, s.retrieval.SnippetChars), message)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, Source{Title: h.Title, Score: h.Score})
	}
	return &Answer{Text: normalizeAnswer(text), Sources: sources}, nil
}

// store opens the vector store read-only on first use and keeps the handle
// for the life of the service.
func (s *Service) store() (*vectorstore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vs != nil {
		return s.vs, nil
	}
	vs, err := vectorstore.Open(s.storePath, true)
	if err != nil {
		return nil, err
	}
	stored, live := vs.Identity(), s.provider.Identity()
	if stored.Provider != live.Provider || stored.Model != live.Model {
		// a silent mismatch degrades retrieval quality without any error,
		// so make it loud
		s.logger.Printf("WARNING: store %s was built with %s but queries embed with %s",
			s.storePath, stored, live)
	}
	s.vs = vs
	return vs, nil
}

func (s *Service) embedQuestion(ctx context.Context, message string) ([]float32, error) {
	model := s.provider.Identity().Model
	if vec, ok := s.cache.Fetch(ctx, model, message); ok {
		return vec, nil
	}
	vec, err := s.provider.Embed(ctx, message)
	if err != nil {
		return nil, err
	}
	s.cache.Save(ctx, model, message, vec)
	return vec, nil
}

// generate tries the fallback list in order. Only quota (429) and unknown
// model (404) errors move on to the next identifier; any other error class
// aborts immediately.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, model := range s.models {
		text, err := s.provider.Generate(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		ae, ok := provider.AsAPIError(err)
		retryable := ok && (ae.IsRateLimited() || ae.IsNotFound())
		if retryable && i < len(s.models)-1 {
			s.logger.Printf("model %s unavailable (%v), trying %s", model, err, s.models[i+1])
			if s.metrics != nil {
				s.metrics.GenerationFallbacks.WithLabelValues(model).Inc()
			}
			continue
		}
		if ok && ae.IsRateLimited() {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("generation failed on %s: %w", model, err)
	}
	return "", lastErr
}

// assembleContext concatenates the hit texts, each capped to snippetChars
// runes, into one context string.
func assembleContext(hits []vectorstore.Result, snippetChars int) string {
	snippets := make([]string, 0, len(hits))
	for _, h := range hits {
		text := h.Text
		if runes := []rune(text); len(runes) > snippetChars {
			text = string(runes[:snippetChars])
		}
		snippets = append(snippets, text)
	}
	return strings.Join(snippets, snippetSeparator)
}

const promptTemplate = `INSTRUCTIONS:
You are a Somali Quran Tafsir and Translation assistant.
You ONLY answer questions about the Quran: its verses (aayaad), tafsir (interpretation), translation (tarjumaad), and Surah context.
Do NOT answer questions about general Islamic topics, fiqh, siirada nabiga, or anything outside the Quran.
Answer the question strictly based on the provided Context below.
If the answer is not in the context, say: "%s"
Do not invent information not present in the context.
Language: Af-Soomaali.

FORMATTING RULES:
Always separate the Arabic text and the Somali tafsiir into distinct blocks for maximum clarity.

When displaying Quranic verses, use this EXACT format:

### Suurad [Surah Name] • Aayad [verse number]

[Arabic Text]

---

**Tafsiir:**
[Somali Translation]

---

RULES:
1. NEVER use the word "Carabi" or labels like "Carabi:".
2. NEVER use the word "Soomaali" as a label; use "**Tafsiir:**" instead.
3. ALWAYS put the Arabic text centered and alone after the heading.
4. Use "---" (horizontal rule) to separate the Arabic block from the Tafsiir.
5. Ensure there are double newlines between everything.

Keep your explanations clear and organized. Use proper headings (###), bold text (**), and spacing for readability.

CONTEXT:
%s

QUESTION:
%s
`

func buildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, RefusalMessage, context, question)
}
