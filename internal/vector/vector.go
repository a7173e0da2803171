// Package vector implements the Embedding Store (SPEC_FULL.md §4.1): a
// namespaced wrapper around a vector index with upsert/search/delete,
// backed by float32 BLOBs in the same SQLite database as the row and FTS
// stores (so row+FTS+vector participate in one transaction), with cosine
// similarity computed in Go. This replaces the teacher's HTTP client to an
// external Qdrant service — see DESIGN.md "Replaced teacher dependency" —
// while keeping the technique (BLOB-stored vectors, injectable similarity
// function) from liliang-cn-sqvect's embedding.go.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/memoryengine/memoryengine/internal/logging"
)

var log = logging.GetLogger("vector")

// Namespaces mirrored from SPEC_FULL.md §4.1.
const (
	NamespaceMemory      = "memory"
	NamespaceEntity      = "entity"
	NamespaceMentalModel = "mental-model"
	NamespaceVisual      = "visual"
)

// EmbedFunc computes an embedding vector for text. The production
// implementation calls Ollama's /api/embeddings; tests inject a
// deterministic hash-based embedding (see HashEmbed).
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Hit is one scored result from Search, sorted ascending by distance (so
// ascending similarity-descending order, matching SPEC_FULL.md §4.1's
// "sorted ascending by distance").
type Hit struct {
	ID       string
	BankID   string
	Distance float64 // cosine distance: 0 = identical, 2 = opposite
}

// Score returns 1 - cosine distance, the similarity convention used
// throughout recall/dedup/retain (SPEC_FULL.md §4.4, §4.5, §4.6).
func (h Hit) Score() float64 {
	return 1 - h.Distance
}

// Store is one namespace's embedding index.
type Store struct {
	db        *sql.DB
	namespace string
	dim       int
	embed     EmbedFunc
}

// New creates a Store for namespace, with embedding dimension dim fixed at
// creation (SPEC_FULL.md §4.1: "Embedding dimensions are fixed at store
// creation"; resizing requires a rebuild, §6).
func New(db *sql.DB, namespace string, dim int, embed EmbedFunc) *Store {
	return &Store{db: db, namespace: namespace, dim: dim, embed: embed}
}

// Embed computes the embedding for text without writing it anywhere. Call
// sites that need the vector row written inside a larger transaction (the
// Memory Unit Store's row+FTS+vector write) call Embed first, then UpsertTx
// with the resulting vector and their own *sql.Tx.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding computation failed: %w", err)
	}
	return vec, nil
}

// Upsert computes the embedding for text and writes it outside any
// caller-managed transaction. Used by components (entity resolver, mental
// model refresh, visual memory) that do not need row+vector atomicity with
// a separate SQL write.
func (s *Store) Upsert(ctx context.Context, id, bankID, text string) error {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (namespace, id, bank_id, embedding, dim, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, id) DO UPDATE SET bank_id=excluded.bank_id, embedding=excluded.embedding, dim=excluded.dim, updated_at=excluded.updated_at`,
		s.namespace, id, bankID, encodeVector(vec), len(vec), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	return nil
}

// UpsertTx writes a precomputed vector using the caller's transaction, so it
// participates in the same commit/rollback as the row and FTS writes.
func (s *Store) UpsertTx(tx *sql.Tx, id, bankID string, vec []float32) error {
	_, err := tx.Exec(
		`INSERT INTO vectors (namespace, id, bank_id, embedding, dim, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, id) DO UPDATE SET bank_id=excluded.bank_id, embedding=excluded.embedding, dim=excluded.dim, updated_at=excluded.updated_at`,
		s.namespace, id, bankID, encodeVector(vec), len(vec), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("vector upsert (tx) failed: %w", err)
	}
	return nil
}

// Delete removes the vector row for id, if any. Returns silently on a
// missing id, per SPEC_FULL.md §4.1.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ? AND id = ?`, s.namespace, id)
	if err != nil {
		return fmt.Errorf("vector delete failed: %w", err)
	}
	return nil
}

// DeleteTx is Delete's transactional counterpart.
func (s *Store) DeleteTx(tx *sql.Tx, id string) error {
	_, err := tx.Exec(`DELETE FROM vectors WHERE namespace = ? AND id = ?`, s.namespace, id)
	if err != nil {
		return fmt.Errorf("vector delete (tx) failed: %w", err)
	}
	return nil
}

// Search computes an embedding for text and returns up to k hits within
// bankID, sorted ascending by distance (SPEC_FULL.md §4.1).
func (s *Store) Search(ctx context.Context, bankID, text string, k int) ([]Hit, error) {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.SearchByVector(ctx, bankID, vec, k)
}

// SearchByVector is Search's variant for a precomputed query vector, used
// by callers (dedup, semantic link creation) that already embedded the text
// once and don't want to pay for it twice.
func (s *Store) SearchByVector(ctx context.Context, bankID string, queryVec []float32, k int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bank_id, embedding FROM vectors WHERE namespace = ? AND bank_id = ?`,
		s.namespace, bankID,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search query failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, bid string
		var blob []byte
		if err := rows.Scan(&id, &bid, &blob); err != nil {
			return nil, fmt.Errorf("vector search scan failed: %w", err)
		}
		vec := decodeVector(blob)
		hits = append(hits, Hit{ID: id, BankID: bid, Distance: cosineDistance(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dim returns the fixed embedding dimension for this store.
func (s *Store) Dim() int { return s.dim }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 2 // maximally dissimilar, mirrors "opposite vectors" for malformed input
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp for floating point drift before converting to distance.
	if similarity > 1 {
		similarity = 1
	} else if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
