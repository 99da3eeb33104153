// Package ingest drives the full corpus rebuild: chunking, embedding and
// writing the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/omartood/tafsiir-agent/config"
	"github.com/omartood/tafsiir-agent/internal/chunker"
	"github.com/omartood/tafsiir-agent/internal/corpus"
	"github.com/omartood/tafsiir-agent/internal/telemetry"
	"github.com/omartood/tafsiir-agent/internal/vectorstore"
	"github.com/omartood/tafsiir-agent/provider"
)

// ErrNoChunksIngested indicates that every chunk failed (or the corpus was
// empty): a rebuilt store with zero entries must never pass as a success.
var ErrNoChunksIngested = errors.New("no chunks ingested")

// Report summarizes one ingestion run.
type Report struct {
	RunID      string
	ChunkCount int
	SizeBytes  int64
	Failed     int
}

// Runner executes full corpus rebuilds. Ingestion is single-threaded and
// strictly sequential: each chunk's embed-then-write step, including its
// rate-limit delay, completes before the next begins.
type Runner struct {
	cfg     config.IngestConfig
	emb     provider.Embedder
	logger  *log.Logger
	metrics *telemetry.Metrics
}

// New creates a Runner. metrics may be nil.
func New(cfg config.IngestConfig, emb provider.Embedder, logger *log.Logger, metrics *telemetry.Metrics) *Runner {
	if logger == nil {
		logger = log.New(os.Stderr, "[INGEST] ", log.LstdFlags)
	}
	return &Runner{cfg: cfg, emb: emb, logger: logger, metrics: metrics}
}

// Run rebuilds the store from the corpus file. Per-chunk embedding or write
// failures are logged and skipped after a backoff delay; they do not abort
// the run. The caller must have validated credentials already so that a
// misconfiguration never destroys a working store.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.New().String()
	r.logger.Printf("run %s: loading corpus from %s", runID, r.cfg.CorpusPath)

	c, err := corpus.Load(r.cfg.CorpusPath)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	chunks := chunker.Split(c, r.cfg.ChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("corpus %s: %w", r.cfg.CorpusPath, ErrNoChunksIngested)
	}
	r.logger.Printf("run %s: %d verses -> %d chunks (chunk size %d)",
		runID, c.VerseCount(), len(chunks), r.cfg.ChunkSize)

	// full rebuild: remove the stale store only now that credentials were
	// validated and the corpus parsed
	if err := removeStore(r.cfg.StorePath); err != nil {
		return nil, err
	}
	store, err := vectorstore.Create(r.cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("preparing store: %w", err)
	}
	defer store.Close()

	report := &Report{RunID: runID}
	for i, ch := range chunks {
		if err := r.ingestChunk(ctx, store, ch); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Printf("run %s: failed chunk %q: %v", runID, ch.Title, err)
			report.Failed++
			if r.metrics != nil {
				r.metrics.ChunksFailed.Inc()
			}
			if err := sleep(ctx, r.cfg.ErrorBackoff); err != nil {
				return nil, err
			}
			continue
		}
		report.ChunkCount++
		if r.metrics != nil {
			r.metrics.ChunksIngested.Inc()
		}
		if report.ChunkCount%20 == 0 {
			r.logger.Printf("run %s: processed %d/%d chunks", runID, i+1, len(chunks))
		}
		if err := sleep(ctx, r.cfg.RequestDelay); err != nil {
			return nil, err
		}
	}

	if report.ChunkCount == 0 {
		return nil, fmt.Errorf("run %s: all %d chunks failed: %w", runID, len(chunks), ErrNoChunksIngested)
	}

	stats, err := store.Seal(ctx)
	if err != nil {
		return nil, fmt.Errorf("sealing store: %w", err)
	}
	report.SizeBytes = stats.SizeBytes
	r.logger.Printf("run %s: sealed %s: %d chunks, %d bytes, %d failed",
		runID, r.cfg.StorePath, stats.ChunkCount, stats.SizeBytes, report.Failed)
	return report, nil
}

func (r *Runner) ingestChunk(ctx context.Context, store *vectorstore.Store, ch chunker.Chunk) error {
	vec, err := r.emb.Embed(ctx, ch.Text)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return store.Put(ctx, vectorstore.Entry{
		Title:    ch.Title,
		Text:     ch.Text,
		Labels:   ch.Labels,
		Vector:   vec,
		Identity: r.emb.Identity(),
	})
}

func removeStore(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking stale store: %w", err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale store: %w", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
