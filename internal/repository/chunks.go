package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"srg/internal/apperr"
	"srg/internal/models"
)

// UpsertChunk writes a Chunk's text and, when provided, its embedding —
// grounded directly on reposearch's chunks table and UpsertChunk. Both the
// lexical (tsvector, generated) and vector column live on the same row, so
// a chunk can never exist in one index but not the other (the indexer's
// parity invariant).
func (s *Store) UpsertChunk(ctx context.Context, c models.Chunk, embedding []float32) error {
	var v any
	if embedding != nil {
		v = pgvector.NewVector(embedding)
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO chunks (id, document_id, page_id, chunk_index, chunk_text, start_char, end_char, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (document_id, chunk_index) DO UPDATE SET
  page_id = EXCLUDED.page_id, chunk_text = EXCLUDED.chunk_text,
  start_char = EXCLUDED.start_char, end_char = EXCLUDED.end_char,
  embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
		c.ID, c.DocumentID, nullIfEmpty(c.PageID), c.ChunkIndex, c.Text, c.StartChar, c.EndChar, v)
	if err != nil {
		return apperr.Database("upsert_chunk", err)
	}
	return nil
}

// DeleteChunksForDocument removes every chunk belonging to a document, used
// by the indexer to clear a document's old chunks before writing new ones.
func (s *Store) DeleteChunksForDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return apperr.Database("delete_chunks_for_document", err)
	}
	return nil
}

// CountChunksMissingEmbedding reports how many chunks still need a vector,
// for the indexer's incremental embedding pass and for a readiness check.
func (s *Store) CountChunksMissingEmbedding(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE embedding IS NULL`).Scan(&n); err != nil {
		return 0, apperr.Database("count_chunks_missing_embedding", err)
	}
	return n, nil
}

// ChunkEmbeddingTarget is a chunk awaiting a vector.
type ChunkEmbeddingTarget struct {
	ID   string
	Text string
}

// ListChunksMissingEmbedding returns up to limit chunks with no embedding.
func (s *Store) ListChunksMissingEmbedding(ctx context.Context, limit int) ([]ChunkEmbeddingTarget, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, chunk_text FROM chunks WHERE embedding IS NULL ORDER BY document_id, chunk_index LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_chunks_missing_embedding", err)
	}
	defer rows.Close()
	var out []ChunkEmbeddingTarget
	for rows.Next() {
		var t ChunkEmbeddingTarget
		if err := rows.Scan(&t.ID, &t.Text); err != nil {
			return nil, apperr.Database("scan_chunk_embedding_target", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetChunkEmbedding writes a single chunk's vector, used by the incremental
// embedding pass after the missing-embedding scan above.
func (s *Store) SetChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `UPDATE chunks SET embedding = $2 WHERE id = $1`, chunkID, pgvector.NewVector(embedding))
	if err != nil {
		return apperr.Database("set_chunk_embedding", err)
	}
	return nil
}

// LexicalHit is one row of a tsvector-ranked result.
type LexicalHit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Rank       float64
}

// SearchFilters narrows a lexical or semantic chunk search to a document or
// a company's documents. Zero-value SearchFilters applies no restriction.
type SearchFilters struct {
	DocumentID string
	CompanyKey string
}

// apply appends filter predicates to where/args, joining the
// documents table only when a company_key filter is actually requested
// (chunks itself carries no company_key column). Returns the possibly-
// extended join clause, predicates and arguments; callers number their
// own later placeholders from len(args).
func (f SearchFilters) apply(joinClause string, where []string, args []any) (string, []string, []any) {
	if f.CompanyKey != "" {
		joinClause = " JOIN documents d ON d.id = c.document_id"
		args = append(args, f.CompanyKey)
		where = append(where, fmt.Sprintf("d.company_key = $%d", len(args)))
	}
	if f.DocumentID != "" {
		args = append(args, f.DocumentID)
		where = append(where, fmt.Sprintf("c.document_id = $%d", len(args)))
	}
	return joinClause, where, args
}

// SearchLexical runs a GIN/tsvector full-text query, grounded on
// reposearch's ts_rank_cd usage, returning the top k by rank with document
// id as a stable ascending tiebreak.
func (s *Store) SearchLexical(ctx context.Context, query string, k int, filters SearchFilters) ([]LexicalHit, error) {
	args := []any{query}
	where := []string{"c.ts_body @@ websearch_to_tsquery('english', $1)"}
	join, where, args := filters.apply("", where, args)
	args = append(args, k)

	sql := fmt.Sprintf(`
SELECT c.id, c.document_id, c.chunk_text, ts_rank_cd(c.ts_body, websearch_to_tsquery('english', $1)) AS rank
FROM chunks c%s
WHERE %s
ORDER BY rank DESC, c.document_id ASC
LIMIT $%d`, join, strings.Join(where, " AND "), len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Database("search_lexical", err)
	}
	defer rows.Close()
	var out []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Text, &h.Rank); err != nil {
			return nil, apperr.Database("scan_lexical_hit", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SemanticHit is one row of a vector-ANN result.
type SemanticHit struct {
	ChunkID    string
	DocumentID string
	Text       string
	Distance   float64
}

// SearchSemantic runs a cosine-distance ANN query over the ivfflat index,
// grounded on reposearch's cosine_distance usage, with document id as a
// stable ascending tiebreak for equal distances.
func (s *Store) SearchSemantic(ctx context.Context, embedding []float32, k int, filters SearchFilters) ([]SemanticHit, error) {
	args := []any{pgvector.NewVector(embedding)}
	where := []string{"c.embedding IS NOT NULL"}
	join, where, args := filters.apply("", where, args)
	args = append(args, k)

	sql := fmt.Sprintf(`
SELECT c.id, c.document_id, c.chunk_text, c.embedding <=> $1 AS distance
FROM chunks c%s
WHERE %s
ORDER BY distance ASC, c.document_id ASC
LIMIT $%d`, join, strings.Join(where, " AND "), len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Database("search_semantic", err)
	}
	defer rows.Close()
	var out []SemanticHit
	for rows.Next() {
		var h SemanticHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Text, &h.Distance); err != nil {
			return nil, apperr.Database("scan_semantic_hit", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetChunk fetches a single chunk by id, used to hydrate fused search
// results with the fields RRF itself doesn't carry.
func (s *Store) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, document_id, COALESCE(page_id,''), chunk_index, chunk_text, start_char, end_char FROM chunks WHERE id = $1`, id)
	c := &models.Chunk{}
	if err := row.Scan(&c.ID, &c.DocumentID, &c.PageID, &c.ChunkIndex, &c.Text, &c.StartChar, &c.EndChar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("chunk", id)
		}
		return nil, apperr.Database("get_chunk", err)
	}
	return c, nil
}

// UpsertIndexCursor records incremental indexing progress, supplementing
// spec.md's entity list (§4) with the cursor needed for resumable/idempotent
// batch re-processing.
func (s *Store) UpsertIndexCursor(ctx context.Context, name, lastDocumentID string, documentsProcessed int64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO index_cursors (name, last_document_id, last_run_at, documents_processed)
VALUES ($1,$2,now(),$3)
ON CONFLICT (name) DO UPDATE SET last_document_id = EXCLUDED.last_document_id, last_run_at = now(),
  documents_processed = index_cursors.documents_processed + EXCLUDED.documents_processed`,
		name, lastDocumentID, documentsProcessed)
	if err != nil {
		return apperr.Database("upsert_index_cursor", err)
	}
	return nil
}

// GetIndexCursor returns the last recorded document id for a named cursor,
// or "" if the cursor has never run.
func (s *Store) GetIndexCursor(ctx context.Context, name string) (string, error) {
	row := s.pool.QueryRow(ctx, `SELECT COALESCE(last_document_id, '') FROM index_cursors WHERE name = $1`, name)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", apperr.Database("get_index_cursor", err)
	}
	return id, nil
}

// ListDocumentsAfter returns is_latest documents with id > afterID in id
// order, for the reindex tool's paged full rebuild.
func (s *Store) ListDocumentsAfter(ctx context.Context, afterID string, limit int) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, filename, file_path, content_hash, size, mime, status, version, is_latest, page_count, company_key, created_at, updated_at, indexed_at
FROM documents WHERE is_latest AND id > $1 ORDER BY id ASC LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, apperr.Database("list_documents_after", err)
	}
	defer rows.Close()
	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.FilePath, &d.ContentHash, &d.Size, &d.MIME, &d.Status, &d.Version, &d.IsLatest, &d.PageCount, &d.CompanyKey, &d.CreatedAt, &d.UpdatedAt, &d.IndexedAt); err != nil {
			return nil, apperr.Database("scan_document", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
