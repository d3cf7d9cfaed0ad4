package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"srg/internal/api"
	"srg/internal/audit"
	"srg/internal/catalog"
	"srg/internal/chat"
	"srg/internal/config"
	"srg/internal/indexer"
	"srg/internal/insights"
	"srg/internal/inventory"
	"srg/internal/llm"
	"srg/internal/parser"
	"srg/internal/repository"
	"srg/internal/retrieval"
)

func main() {
	// 1. Config
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Initializing Smart Reconciliation Gateway...")
	log.Printf("DB: %s", redactDatabaseURL(cfg.DatabaseURL))
	log.Printf("LLM Provider: %s (%s)", cfg.LLM.Provider, cfg.LLM.Host)
	log.Printf("API Port: %d", cfg.APIPort)

	if err := os.MkdirAll(cfg.DocumentsDir, 0o755); err != nil {
		log.Fatalf("Failed to create documents dir: %v", err)
	}
	if err := os.MkdirAll(cfg.VisionCacheDir, 0o755); err != nil {
		log.Fatalf("Failed to create vision cache dir: %v", err)
	}

	// 2. Dependencies
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repository.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	provider := llm.New(cfg.LLM)
	if w, ok := provider.(interface{ Warmup(context.Context) error }); ok {
		if err := w.Warmup(ctx); err != nil {
			log.Printf("LLM warmup failed: %v", err)
		}
	}

	// Vision images are rendered out-of-band and dropped into the vision
	// cache dir keyed by hash; the loader just reads them back for the
	// vision parsing strategy.
	loadImage := func(hash string) ([]byte, error) {
		return os.ReadFile(filepath.Join(cfg.VisionCacheDir, hash))
	}
	registry := parser.NewRegistry(
		parser.NewTemplateStrategy(),
		parser.NewTableAwareStrategy(),
		parser.NewVisionStrategy(provider, loadImage),
		parser.NewPlaintextStrategy(),
	)

	var reranker retrieval.Reranker
	if cfg.Search.RerankerEnabled {
		reranker = retrieval.NewCrossEncoderReranker(provider)
	}
	retriever := retrieval.New(store, provider, cfg.Search, cfg.Cache, reranker)

	idx := indexer.New(store, provider, cfg.Search, getEnvInt("INDEXER_WORKER_COUNT", 4))
	cat := catalog.New(store)
	auditEngine := audit.New(store, provider)
	chatOrch := chat.New(store, retriever, provider)
	ledger := inventory.New(store)
	evaluator := insights.New(store)

	server := api.NewServer(*cfg, api.Deps{
		Store:        store,
		Provider:     provider,
		Retriever:    retriever,
		Indexer:      idx,
		Catalog:      cat,
		Audit:        auditEngine,
		Chat:         chatOrch,
		Inventory:    ledger,
		Insights:     evaluator,
		Registry:     registry,
		DocumentsDir: cfg.DocumentsDir,
	})

	// Periodic incremental indexing sweep: picks up any chunk rows whose
	// embedding is still NULL (e.g. a provider outage during upload).
	sweepInterval := getEnvDuration("INDEX_SWEEP_INTERVAL", 2*time.Minute)
	if sweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := idx.IndexIncremental(ctx); err != nil {
						log.Printf("[index_sweep] error: %v", err)
					}
				}
			}
		}()
	}

	// Periodic expiry check: evaluates company documents for upcoming
	// renewal deadlines and materializes reminders.
	expirySweepInterval := getEnvDuration("EXPIRY_SWEEP_INTERVAL", 1*time.Hour)
	if expirySweepInterval > 0 {
		go func() {
			ticker := time.NewTicker(expirySweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := evaluator.Evaluate(ctx, 30, true); err != nil {
						log.Printf("[expiry_sweep] error: %v", err)
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting API Server on :%d", cfg.APIPort)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API Server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	cancel()
}

func redactDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		if u.User != nil {
			user := u.User.Username()
			if user == "" {
				user = "user"
			}
			u.User = url.UserPassword(user, "****")
		}
		u.RawQuery = ""
		return u.String()
	}
	re := regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/?#]+):([^@]+)@`)
	return re.ReplaceAllString(raw, `$1:****@`)
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
