// Command reindex rebuilds the search index from scratch: every document's
// pages are re-chunked and re-embedded, overwriting existing chunk rows.
// Use after a chunking-config change (SEARCH_CHUNK_SIZE, SEARCH_CHUNK_OVERLAP)
// or an embedding model swap, where stale chunks would otherwise linger.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"srg/internal/config"
	"srg/internal/indexer"
	"srg/internal/llm"
	"srg/internal/models"
	"srg/internal/repository"
)

func main() {
	var pageSize int
	var workerCount int
	flag.IntVar(&pageSize, "page-size", 200, "documents fetched per scan page")
	flag.IntVar(&workerCount, "workers", 4, "concurrent documents embedded at once")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	store, err := repository.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer store.Close()

	provider := llm.New(cfg.LLM)
	idx := indexer.New(store, provider, cfg.Search, workerCount)

	pagesOf := func(documentID string) ([]models.Page, error) {
		return store.GetPages(ctx, documentID)
	}

	started := time.Now()
	var afterID string
	var total, failed int

	for {
		docs, err := store.ListDocumentsAfter(ctx, afterID, pageSize)
		if err != nil {
			log.Fatalf("failed to list documents: %v", err)
		}
		if len(docs) == 0 {
			break
		}

		batch := make([]*models.Document, len(docs))
		for i := range docs {
			batch[i] = &docs[i]
		}

		log.Printf("[reindex] rebuilding %d documents (after=%q)", len(batch), afterID)
		if err := idx.RebuildFull(ctx, batch, pagesOf); err != nil {
			log.Printf("[reindex] page failed: %v", err)
			failed++
		}
		total += len(batch)

		afterID = docs[len(docs)-1].ID
		if len(docs) < pageSize {
			break
		}
	}

	log.Printf("[reindex] done: %d documents processed, %d page(s) failed, took %s", total, failed, time.Since(started).Truncate(time.Second))
}
