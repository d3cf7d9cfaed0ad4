package indexer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"srg/internal/apperr"
	"srg/internal/config"
	"srg/internal/llm"
	"srg/internal/models"
	"srg/internal/repository"
)

// incrementalCursorName is the single named cursor index_incremental
// advances. The store's (document_id, chunk_index) design folds the
// lexical row, vector entry, and vector->chunk map row of spec.md §4.D
// into one chunks row, so "map rows" and "vector entries" are the same
// write as the embedding column update.
const incrementalCursorName = "chunk_embeddings"

// Stats is the result of get_stats(): corpus-wide indexing progress.
type Stats struct {
	ChunksMissingEmbedding int
	LastCursor             string
}

// Indexer implements index_document, index_incremental, and
// rebuild_index_full against the store's chunk table, embedding through
// the shared model provider.
type Indexer struct {
	store    *repository.Store
	provider llm.Provider
	cfg      config.SearchConfig

	workerCount int
}

// New builds an Indexer. workerCount bounds the concurrent embedding
// batches rebuild_index_full fans out across documents; <=0 defaults to 4,
// grounded on flowindex's ingester.Service.config.WorkerCount semaphore.
func New(store *repository.Store, provider llm.Provider, cfg config.SearchConfig, workerCount int) *Indexer {
	if workerCount <= 0 {
		workerCount = 4
	}
	return &Indexer{store: store, provider: provider, cfg: cfg, workerCount: workerCount}
}

// IndexDocument chunks every page of doc, embeds the chunks, and writes
// them in place of any prior chunks for that document — the ingest hot
// path's terminal "Indexer(chunk+embed+publish)" step.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *models.Document, pages []models.Page) (int, error) {
	if err := ix.store.DeleteChunksForDocument(ctx, doc.ID); err != nil {
		return 0, err
	}

	chunks := ix.chunksForPages(doc.ID, pages)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := ix.embedAndWrite(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// chunksForPages runs the token-based chunker over each page's text and
// attaches doc_id/page_id to every resulting chunk, per spec.md §4.D.
func (ix *Indexer) chunksForPages(documentID string, pages []models.Page) []models.Chunk {
	size, overlap := ix.cfg.ChunkSize, ix.cfg.ChunkOverlap
	var out []models.Chunk
	idx := 0
	for _, page := range pages {
		for _, span := range chunkText(page.Text, size, overlap) {
			out = append(out, models.Chunk{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				PageID:     page.ID,
				ChunkIndex: idx,
				Text:       span.text,
				StartChar:  span.start,
				EndChar:    span.end,
			})
			idx++
		}
	}
	return out
}

// IndexLineItems embeds and stores invoice line items as searchable chunks
// distinct from document text chunks, so the hybrid retriever and catalog
// suggestion path can surface them semantically. Bank/payment routing
// lines are excluded before anything is written (spec.md §4.D's
// line-item-only filter).
func (ix *Indexer) IndexLineItems(ctx context.Context, documentID string, items []models.LineItem) (int, error) {
	var chunks []models.Chunk
	for i, item := range items {
		text := item.ItemName
		if item.Description != "" {
			text = text + " " + item.Description
		}
		if isBankInfo(text) {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: -(i + 1), // negative index namespaces line-item chunks away from page chunks
			Text:       text,
		})
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := ix.embedAndWrite(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedAndWrite embeds chunks in EmbedBatchSize groups and writes each
// batch's vectors alongside the chunk text in one UpsertChunk call each,
// so a chunk is never visible with lexical text but no vector (or vice
// versa) for longer than a single round trip. A batch embedding failure
// still writes the chunk text without a vector — lexically searchable,
// picked up later by index_incremental.
func (ix *Indexer) embedAndWrite(ctx context.Context, chunks []models.Chunk) error {
	batchSize := ix.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := ix.provider.Embed(ctx, texts)
		degraded := err != nil

		for i, c := range batch {
			var vec []float32
			if !degraded && i < len(vectors) {
				vec = vectors[i]
			}
			if writeErr := ix.store.UpsertChunk(ctx, c, vec); writeErr != nil {
				return writeErr
			}
		}
	}
	return nil
}

// IndexIncremental embeds any chunk left without a vector by a prior
// degraded write or a mid-batch crash, advancing a persisted cursor so a
// re-run after a crash only re-touches the unfinished batch (map-row PK on
// chunk id makes SetChunkEmbedding idempotent).
func (ix *Indexer) IndexIncremental(ctx context.Context) (Stats, error) {
	batchSize := ix.cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	var lastID string
	for {
		targets, err := ix.store.ListChunksMissingEmbedding(ctx, batchSize)
		if err != nil {
			return Stats{}, err
		}
		if len(targets) == 0 {
			break
		}

		texts := make([]string, len(targets))
		for i, t := range targets {
			texts[i] = t.Text
		}
		vectors, err := ix.provider.Embed(ctx, texts)
		if err != nil {
			return Stats{}, apperr.Wrap(apperr.CodeEmbeddingError, "incremental embedding batch failed", "check embedding provider health", err)
		}

		for i, t := range targets {
			if i >= len(vectors) {
				break
			}
			if err := ix.store.SetChunkEmbedding(ctx, t.ID, vectors[i]); err != nil {
				return Stats{}, err
			}
			lastID = t.ID
		}
		if err := ix.store.UpsertIndexCursor(ctx, incrementalCursorName, lastID, int64(len(targets))); err != nil {
			return Stats{}, err
		}
		if len(targets) < batchSize {
			break
		}
	}

	remaining, err := ix.store.CountChunksMissingEmbedding(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ChunksMissingEmbedding: remaining, LastCursor: lastID}, nil
}

// RebuildFull re-chunks and re-embeds every supplied document from
// scratch, worker-bounded exactly like flowindex's fetchBatchParallel:
// a semaphore-gated goroutine per document, errors collected without
// aborting siblings so one bad document can't stall the whole rebuild.
func (ix *Indexer) RebuildFull(ctx context.Context, docs []*models.Document, pagesOf func(documentID string) ([]models.Page, error)) error {
	var wg sync.WaitGroup
	sem := make(chan struct{}, ix.workerCount)

	errs := make([]error, len(docs))
	for i, doc := range docs {
		i, doc := i, doc
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			pages, err := pagesOf(doc.ID)
			if err != nil {
				errs[i] = err
				return
			}
			if _, err := ix.IndexDocument(ctx, doc, pages); err != nil {
				errs[i] = err
			}
		}()
	}
	wg.Wait()

	var failed int
	var first error
	for _, err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed > 0 {
		return apperr.Wrap(apperr.CodeIndexNotReady, fmt.Sprintf("full rebuild failed for %d of %d documents", failed, len(docs)), "inspect the failing documents and re-run the rebuild", first)
	}
	return nil
}

// GetStats reports corpus-wide indexing progress.
func (ix *Indexer) GetStats(ctx context.Context) (Stats, error) {
	remaining, err := ix.store.CountChunksMissingEmbedding(ctx)
	if err != nil {
		return Stats{}, err
	}
	cursor, err := ix.store.GetIndexCursor(ctx, incrementalCursorName)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ChunksMissingEmbedding: remaining, LastCursor: cursor}, nil
}
