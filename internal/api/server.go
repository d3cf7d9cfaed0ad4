// Package api adapts the document-ingestion/audit/retrieval/catalog/
// inventory/chat components onto an HTTP surface. It carries no business
// logic of its own: every handler decodes a request, calls into one
// component, and encodes the result or apperr.Envelope.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"srg/internal/apperr"
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

// Server wires every component behind gorilla/mux, matching the teacher's
// thin-Server-struct-plus-registerXRoutes layout.
type Server struct {
	store     *repository.Store
	provider  llm.Provider
	retriever *retrieval.Retriever
	indexer   *indexer.Indexer
	catalog   *catalog.Reconciler
	audit     *audit.Engine
	chat      *chat.Orchestrator
	inventory *inventory.Ledger
	insights  *insights.Evaluator
	registry  *parser.Registry

	documentsDir string
	httpServer   *http.Server
}

// Deps bundles every component the API surface calls into, so NewServer
// keeps a single readable argument list as the module grows.
type Deps struct {
	Store        *repository.Store
	Provider     llm.Provider
	Retriever    *retrieval.Retriever
	Indexer      *indexer.Indexer
	Catalog      *catalog.Reconciler
	Audit        *audit.Engine
	Chat         *chat.Orchestrator
	Inventory    *inventory.Ledger
	Insights     *insights.Evaluator
	Registry     *parser.Registry
	DocumentsDir string
}

func NewServer(cfg config.Config, d Deps) *Server {
	s := &Server{
		store:        d.Store,
		provider:     d.Provider,
		retriever:    d.Retriever,
		indexer:      d.Indexer,
		catalog:      d.Catalog,
		audit:        d.Audit,
		chat:         d.Chat,
		inventory:    d.Inventory,
		insights:     d.Insights,
		registry:     d.Registry,
		documentsDir: d.DocumentsDir,
	}

	r := mux.NewRouter()
	r.Use(commonMiddleware)
	r.Use(rateLimitMiddleware)

	registerHealthRoutes(r, s)
	registerInvoiceRoutes(r, s)
	registerCatalogRoutes(r, s)
	registerPriceRoutes(r, s)
	registerDocumentRoutes(r, s)
	registerSearchRoutes(r, s)
	registerChatRoutes(r, s)
	registerInventoryRoutes(r, s)
	registerSalesRoutes(r, s)
	registerCompanyDocumentRoutes(r, s)

	s.httpServer = &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.APIPort),
		Handler: r,
	}
	return s
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func commonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error_code": "INTERNAL",
			"message":    err.Error(),
			"path":       r.URL.Path,
			"timestamp":  time.Now().UTC(),
		})
		return
	}
	writeJSON(w, appErr.HTTPStatus(), appErr.ToEnvelope(r.URL.Path))
}

