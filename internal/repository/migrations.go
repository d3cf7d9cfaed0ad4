package repository

import "fmt"

// Migrations returns the forward-only schema steps, parameterized only by
// the embedding dimension (set once at startup from EmbedConfig and never
// changed without a fresh index rebuild).
func Migrations(embedDim int) []Migration {
	return []Migration{
		{1, "extensions", `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;`},

		{2, "documents", `
CREATE TABLE IF NOT EXISTS documents (
  id           TEXT PRIMARY KEY,
  filename     TEXT NOT NULL,
  file_path    TEXT NOT NULL,
  content_hash TEXT NOT NULL,
  size         BIGINT NOT NULL,
  mime         TEXT,
  status       TEXT NOT NULL DEFAULT 'pending',
  version      INT NOT NULL DEFAULT 1,
  is_latest    BOOLEAN NOT NULL DEFAULT TRUE,
  page_count   INT NOT NULL DEFAULT 0,
  company_key  TEXT,
  metadata     JSONB,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  indexed_at   TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_hash_latest_uidx
  ON documents (content_hash) WHERE is_latest;
CREATE INDEX IF NOT EXISTS documents_company_key_idx ON documents (company_key);

CREATE TABLE IF NOT EXISTS pages (
  id              TEXT PRIMARY KEY,
  document_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  page_number     INT NOT NULL,
  type            TEXT NOT NULL DEFAULT 'other',
  type_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
  text            TEXT,
  image_hash      TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS pages_document_pagenum_uidx ON pages (document_id, page_number);`},

		{3, "chunks", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
  id           TEXT PRIMARY KEY,
  document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  page_id      TEXT,
  chunk_index  INT NOT NULL,
  chunk_text   TEXT NOT NULL,
  start_char   INT NOT NULL,
  end_char     INT NOT NULL,
  embedding    vector(%d),
  ts_body      tsvector GENERATED ALWAYS AS (to_tsvector('english', coalesce(chunk_text, ''))) STORED,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS chunks_document_index_uidx ON chunks (document_id, chunk_index);
CREATE INDEX IF NOT EXISTS chunks_ts_body_gin ON chunks USING GIN (ts_body);
CREATE INDEX IF NOT EXISTS chunks_embedding_ivfflat ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`, embedDim),
		},

		{4, "invoices", `
CREATE TABLE IF NOT EXISTS invoices (
  id             TEXT PRIMARY KEY,
  document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  invoice_no     TEXT,
  invoice_date   DATE,
  due_date       DATE,
  seller_name    TEXT,
  buyer_name     TEXT,
  company_key    TEXT,
  currency       TEXT,
  subtotal       NUMERIC NOT NULL DEFAULT 0,
  tax            NUMERIC NOT NULL DEFAULT 0,
  discount       NUMERIC NOT NULL DEFAULT 0,
  total_amount   NUMERIC NOT NULL DEFAULT 0,
  quality_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
  confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
  parser_used    TEXT,
  parsing_status TEXT NOT NULL DEFAULT 'ok',
  is_latest      BOOLEAN NOT NULL DEFAULT TRUE,
  bank_details   JSONB,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS invoices_document_idx ON invoices (document_id);
CREATE INDEX IF NOT EXISTS invoices_company_key_idx ON invoices (company_key);
CREATE INDEX IF NOT EXISTS invoices_invoice_no_idx ON invoices (invoice_no);

CREATE TABLE IF NOT EXISTS line_items (
  id                   TEXT PRIMARY KEY,
  invoice_id           TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
  line_number          INT NOT NULL,
  item_name            TEXT NOT NULL,
  description          TEXT,
  hs_code              TEXT,
  unit                 TEXT,
  brand                TEXT,
  model                TEXT,
  quantity             NUMERIC NOT NULL DEFAULT 0,
  unit_price           NUMERIC NOT NULL DEFAULT 0,
  total_price          NUMERIC NOT NULL DEFAULT 0,
  row_type             TEXT NOT NULL DEFAULT 'line_item',
  matched_material_id  TEXT,
  trust_stated_total   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS line_items_invoice_idx ON line_items (invoice_id);
CREATE INDEX IF NOT EXISTS line_items_material_idx ON line_items (matched_material_id);`},

		{5, "audit_results", `
CREATE TABLE IF NOT EXISTS audit_results (
  id               TEXT PRIMARY KEY,
  trace_id         TEXT NOT NULL,
  invoice_id       TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
  status           TEXT NOT NULL,
  success          BOOLEAN NOT NULL,
  audit_type       TEXT NOT NULL,
  sections         JSONB NOT NULL,
  issues           JSONB NOT NULL,
  processing_time_ns BIGINT NOT NULL DEFAULT 0,
  model_identifier TEXT,
  confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_results_invoice_idx ON audit_results (invoice_id);`},

		{6, "catalog", `
CREATE TABLE IF NOT EXISTS materials (
  id                TEXT PRIMARY KEY,
  display_name      TEXT NOT NULL,
  normalized_name    TEXT NOT NULL,
  hs_code           TEXT,
  category          TEXT,
  unit              TEXT,
  description       TEXT,
  brand             TEXT,
  origin_country    TEXT,
  origin_confidence TEXT NOT NULL DEFAULT 'unknown',
  source_url        TEXT,
  evidence_text     TEXT,
  synonyms          TEXT[] NOT NULL DEFAULT '{}',
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS materials_normalized_name_uidx ON materials (normalized_name);
CREATE INDEX IF NOT EXISTS materials_synonyms_gin ON materials USING GIN (synonyms);

CREATE TABLE IF NOT EXISTS price_history (
  id              TEXT PRIMARY KEY,
  normalized_name  TEXT NOT NULL,
  hs_code         TEXT,
  seller          TEXT,
  invoice_id      TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
  invoice_date    DATE,
  quantity        NUMERIC NOT NULL DEFAULT 0,
  unit_price      NUMERIC NOT NULL DEFAULT 0,
  currency        TEXT,
  material_id     TEXT
);
CREATE INDEX IF NOT EXISTS price_history_name_idx ON price_history (normalized_name, currency);
CREATE INDEX IF NOT EXISTS price_history_seller_idx ON price_history (seller);`},

		{7, "chat", `
CREATE TABLE IF NOT EXISTS chat_sessions (
  id                    TEXT PRIMARY KEY,
  title                 TEXT,
  status                TEXT NOT NULL DEFAULT 'active',
  active_document_ids    TEXT[] NOT NULL DEFAULT '{}',
  active_invoice_ids     TEXT[] NOT NULL DEFAULT '{}',
  conversation_summary   TEXT,
  summary_message_count  INT NOT NULL DEFAULT 0,
  total_tokens           INT NOT NULL DEFAULT 0,
  max_context_tokens     INT NOT NULL DEFAULT 4096,
  system_prompt          TEXT,
  temperature            DOUBLE PRECISION NOT NULL DEFAULT 0.2,
  created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
  id            TEXT PRIMARY KEY,
  session_id    TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
  role          TEXT NOT NULL,
  content       TEXT NOT NULL,
  message_type  TEXT NOT NULL DEFAULT 'text',
  context_used  TEXT,
  sources       JSONB,
  token_count   INT NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chat_messages_session_idx ON chat_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS memory_facts (
  id            TEXT PRIMARY KEY,
  session_id    TEXT,
  fact_type     TEXT NOT NULL,
  key           TEXT NOT NULL,
  value         TEXT NOT NULL,
  confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
  access_count  INT NOT NULL DEFAULT 1,
  last_accessed TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at    TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS memory_facts_session_key_uidx ON memory_facts (session_id, key);`},

		{8, "inventory", `
CREATE TABLE IF NOT EXISTS inventory_items (
  material_id      TEXT PRIMARY KEY,
  quantity_on_hand NUMERIC NOT NULL DEFAULT 0,
  avg_cost         NUMERIC NOT NULL DEFAULT 0,
  last_movement_date TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS stock_movements (
  id          TEXT PRIMARY KEY,
  material_id TEXT NOT NULL,
  type        TEXT NOT NULL,
  quantity    NUMERIC NOT NULL,
  unit_cost   NUMERIC NOT NULL DEFAULT 0,
  reference   TEXT,
  notes       TEXT,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS stock_movements_material_idx ON stock_movements (material_id, created_at);

CREATE TABLE IF NOT EXISTS local_sales_invoices (
  id             TEXT PRIMARY KEY,
  invoice_no     TEXT,
  customer_name  TEXT,
  subtotal       NUMERIC NOT NULL DEFAULT 0,
  tax            NUMERIC NOT NULL DEFAULT 0,
  total_amount   NUMERIC NOT NULL DEFAULT 0,
  total_cost     NUMERIC NOT NULL DEFAULT 0,
  total_profit   NUMERIC NOT NULL DEFAULT 0,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS local_sales_items (
  id               TEXT PRIMARY KEY,
  sales_invoice_id TEXT NOT NULL REFERENCES local_sales_invoices(id) ON DELETE CASCADE,
  material_id      TEXT NOT NULL,
  quantity         NUMERIC NOT NULL,
  unit_price       NUMERIC NOT NULL,
  cost_basis       NUMERIC NOT NULL,
  line_total       NUMERIC NOT NULL,
  profit           NUMERIC NOT NULL
);
CREATE INDEX IF NOT EXISTS local_sales_items_invoice_idx ON local_sales_items (sales_invoice_id);`},

		{9, "insights", `
CREATE TABLE IF NOT EXISTS company_documents (
  id           TEXT PRIMARY KEY,
  company_key  TEXT NOT NULL,
  doc_type     TEXT NOT NULL,
  title        TEXT NOT NULL,
  issued_date  DATE,
  expiry_date  DATE,
  file_ref     TEXT,
  metadata     JSONB,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS company_documents_expiry_idx ON company_documents (expiry_date);

CREATE TABLE IF NOT EXISTS reminders (
  id                 TEXT PRIMARY KEY,
  title              TEXT NOT NULL,
  message            TEXT NOT NULL,
  severity           TEXT NOT NULL DEFAULT 'INFO',
  linked_entity_type TEXT,
  linked_entity_id   TEXT,
  status             TEXT NOT NULL DEFAULT 'open',
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
  due_at             TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS reminders_linked_entity_idx ON reminders (linked_entity_type, linked_entity_id);
CREATE INDEX IF NOT EXISTS reminders_status_idx ON reminders (status);`},

		{10, "index_cursor", `
CREATE TABLE IF NOT EXISTS index_cursors (
  name          TEXT PRIMARY KEY,
  last_document_id TEXT,
  last_run_at   TIMESTAMPTZ,
  documents_processed BIGINT NOT NULL DEFAULT 0
);`},
	}
}
