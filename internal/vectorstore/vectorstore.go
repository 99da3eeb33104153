// Package vectorstore is a single-file vector store backed by SQLite.
//
// Lifecycle: Create an empty store, Put entries sequentially from a single
// writer, Seal it, then Open it read-only from the query service. Search is
// a brute-force cosine scan, which is exact and fast enough for a corpus of
// a few thousand chunks. WAL mode lets multiple readers search concurrently.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/omartood/tafsiir-agent/provider"
)

var (
	// ErrStoreExists is returned by Create when the path is already occupied.
	// The caller must remove a stale store explicitly before rebuilding.
	ErrStoreExists = errors.New("vector store already exists")
	// ErrStoreNotFound is returned by Open when no store exists at the path.
	ErrStoreNotFound = errors.New("vector store not found")
	// ErrStoreNotSealed is returned by Open for a store that was never sealed,
	// i.e. an ingestion run died before finishing.
	ErrStoreNotSealed = errors.New("vector store not sealed")
	// ErrSealed is returned by Put after Seal.
	ErrSealed = errors.New("vector store is sealed")
	// ErrIdentityMismatch is returned when an entry or query vector does not
	// match the embedding identity the store was built with.
	ErrIdentityMismatch = errors.New("embedding identity mismatch")
)

// Entry is one stored chunk: text, labels and its embedding vector stamped
// with the identity of the model that produced it.
type Entry struct {
	Title    string
	Text     string
	Labels   []string
	Vector   []float32
	Identity provider.Identity
}

// Result is one search hit, higher score is more similar.
type Result struct {
	Title string
	Text  string
	Score float64
}

// Stats describes a sealed store.
type Stats struct {
	ChunkCount int
	SizeBytes  int64
}

// Store is a handle to one store file.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
	sealed   bool
	identity provider.Identity
}

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chunks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	text       TEXT NOT NULL,
	labels     TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
INSERT INTO meta(key, value) VALUES ('sealed', '0');
`

// Create initializes a new, empty store at path. It fails with ErrStoreExists
// if a file is already there.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrStoreExists)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("checking store path: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating store schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Open opens an existing sealed store. The query service opens read-only;
// concurrent readers are safe.
func Open(path string, readOnly bool) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrStoreNotFound)
		}
		return nil, fmt.Errorf("checking store path: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn = "file:" + path + "?mode=ro&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Store{db: db, path: path, readOnly: readOnly}
	sealed, err := s.metaValue("sealed")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}
	if sealed != "1" {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrStoreNotSealed)
	}
	s.sealed = true

	if err := s.loadIdentity(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Put appends one entry. Ingestion is single-writer and strictly sequential;
// Put must not be called concurrently against the same handle. The first Put
// pins the store's embedding identity and every later entry must match it.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if s.sealed {
		return ErrSealed
	}
	if e.Identity.Dimension != len(e.Vector) {
		return fmt.Errorf("entry %q: identity dimension %d does not match vector length %d",
			e.Title, e.Identity.Dimension, len(e.Vector))
	}

	if s.identity == (provider.Identity{}) {
		if err := s.storeIdentity(ctx, e.Identity); err != nil {
			return err
		}
		s.identity = e.Identity
	} else if e.Identity != s.identity {
		return fmt.Errorf("entry %q has identity %s, store has %s: %w",
			e.Title, e.Identity, s.identity, ErrIdentityMismatch)
	}

	labels, err := json.Marshal(e.Labels)
	if err != nil {
		return fmt.Errorf("encoding labels: %w", err)
	}
	vector, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("encoding vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks(title, text, labels, vector, created_at) VALUES(?,?,?,?,?)`,
		e.Title, e.Text, string(labels), string(vector), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing entry %q: %w", e.Title, err)
	}
	return nil
}

// Seal finalizes the store for reads and reports its final stats. After Seal
// the handle rejects further writes.
func (s *Store) Seal(ctx context.Context) (Stats, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE meta SET value='1' WHERE key='sealed'`); err != nil {
		return Stats{}, fmt.Errorf("sealing store: %w", err)
	}
	s.sealed = true

	// fold the WAL into the main file so SizeBytes reflects the real store
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return Stats{}, fmt.Errorf("checkpointing store: %w", err)
	}
	return s.Stats(ctx)
}

// Stats returns the chunk count and on-disk size of the store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		return Stats{}, fmt.Errorf("sizing store file: %w", err)
	}
	return Stats{ChunkCount: count, SizeBytes: fi.Size()}, nil
}

// Identity returns the embedding identity the store was built with.
func (s *Store) Identity() provider.Identity {
	return s.identity
}

// Search returns the k nearest entries to the query vector by cosine
// similarity, ordered by descending score with ties broken by insertion
// order. A dimension mismatch is an error, not an empty result: an empty
// result would be indistinguishable from "no relevant content".
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("search k must be >= 1, got %d", k)
	}
	if s.identity.Dimension != 0 && len(query) != s.identity.Dimension {
		return nil, fmt.Errorf("query vector has dimension %d, store has %d: %w",
			len(query), s.identity.Dimension, ErrIdentityMismatch)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title, text, vector FROM chunks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var title, text, vecStr string
		if err := rows.Scan(&title, &text, &vecStr); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecStr), &vec); err != nil {
			return nil, fmt.Errorf("decoding vector for %q: %w", title, err)
		}
		results = append(results, Result{Title: title, Text: text, Score: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) metaValue(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *Store) storeIdentity(ctx context.Context, id provider.Identity) error {
	for key, value := range map[string]string{
		"identity_provider":  id.Provider,
		"identity_model":     id.Model,
		"identity_dimension": fmt.Sprintf("%d", id.Dimension),
	} {
		if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key, value) VALUES(?,?)`, key, value); err != nil {
			return fmt.Errorf("storing identity: %w", err)
		}
	}
	return nil
}

func (s *Store) loadIdentity() error {
	prov, err := s.metaValue("identity_provider")
	if err != nil {
		return fmt.Errorf("reading store identity: %w", err)
	}
	model, err := s.metaValue("identity_model")
	if err != nil {
		return fmt.Errorf("reading store identity: %w", err)
	}
	dimStr, err := s.metaValue("identity_dimension")
	if err != nil {
		return fmt.Errorf("reading store identity: %w", err)
	}
	var dim int
	if dimStr != "" {
		if _, err := fmt.Sscanf(dimStr, "%d", &dim); err != nil {
			return fmt.Errorf("parsing store identity dimension %q: %w", dimStr, err)
		}
	}
	s.identity = provider.Identity{Provider: prov, Model: model, Dimension: dim}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
