package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// InsertChatSession creates a new session.
func (s *Store) InsertChatSession(ctx context.Context, cs *models.ChatSession) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO chat_sessions (id, title, status, active_document_ids, active_invoice_ids, conversation_summary, summary_message_count, total_tokens, max_context_tokens, system_prompt, temperature, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		cs.ID, cs.Title, cs.Status, cs.ActiveDocumentIDs, cs.ActiveInvoiceIDs, cs.ConversationSummary, cs.SummaryMessageCount, cs.TotalTokens, cs.MaxContextTokens, cs.SystemPrompt, cs.Temperature, cs.CreatedAt, cs.UpdatedAt)
	if err != nil {
		return apperr.Database("insert_chat_session", err)
	}
	return nil
}

// GetChatSession fetches a session by id.
func (s *Store) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, title, status, active_document_ids, active_invoice_ids, conversation_summary, summary_message_count, total_tokens, max_context_tokens, system_prompt, temperature, created_at, updated_at
FROM chat_sessions WHERE id = $1`, id)
	cs := &models.ChatSession{}
	err := row.Scan(&cs.ID, &cs.Title, &cs.Status, &cs.ActiveDocumentIDs, &cs.ActiveInvoiceIDs, &cs.ConversationSummary, &cs.SummaryMessageCount, &cs.TotalTokens, &cs.MaxContextTokens, &cs.SystemPrompt, &cs.Temperature, &cs.CreatedAt, &cs.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("session", id)
		}
		return nil, apperr.Database("get_chat_session", err)
	}
	return cs, nil
}

// UpdateChatSessionSummary persists a new rolling summary after the
// orchestrator's summarization trigger fires.
func (s *Store) UpdateChatSessionSummary(ctx context.Context, id, summary string, summaryMessageCount int) error {
	_, err := s.pool.Exec(ctx, `
UPDATE chat_sessions SET conversation_summary = $2, summary_message_count = $3, updated_at = now() WHERE id = $1`,
		id, summary, summaryMessageCount)
	if err != nil {
		return apperr.Database("update_chat_session_summary", err)
	}
	return nil
}

// UpdateChatSessionStatus transitions a session's lifecycle state, used by
// the API surface's session delete (-> deleted) and archive operations.
func (s *Store) UpdateChatSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE chat_sessions SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return apperr.Database("update_chat_session_status", err)
	}
	return nil
}

// ListChatSessions returns non-deleted sessions, newest first, for the
// session-listing surface.
func (s *Store) ListChatSessions(ctx context.Context, limit int) ([]models.ChatSession, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, title, status, active_document_ids, active_invoice_ids, conversation_summary, summary_message_count, total_tokens, max_context_tokens, system_prompt, temperature, created_at, updated_at
FROM chat_sessions WHERE status <> 'deleted' ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.Database("list_chat_sessions", err)
	}
	defer rows.Close()
	var out []models.ChatSession
	for rows.Next() {
		var cs models.ChatSession
		if err := rows.Scan(&cs.ID, &cs.Title, &cs.Status, &cs.ActiveDocumentIDs, &cs.ActiveInvoiceIDs, &cs.ConversationSummary, &cs.SummaryMessageCount, &cs.TotalTokens, &cs.MaxContextTokens, &cs.SystemPrompt, &cs.Temperature, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, apperr.Database("scan_chat_session", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// IncrementChatSessionTokens adds delta to a session's running token count.
func (s *Store) IncrementChatSessionTokens(ctx context.Context, id string, delta int) error {
	_, err := s.pool.Exec(ctx, `UPDATE chat_sessions SET total_tokens = total_tokens + $2, updated_at = now() WHERE id = $1`, id, delta)
	if err != nil {
		return apperr.Database("increment_chat_session_tokens", err)
	}
	return nil
}

// InsertChatMessage appends a message to a session.
func (s *Store) InsertChatMessage(ctx context.Context, m *models.Message) error {
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return apperr.Database("insert_chat_message.marshal_sources", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO chat_messages (id, session_id, role, content, message_type, context_used, sources, token_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.SessionID, m.Role, m.Content, m.Type, m.ContextUsed, sources, m.TokenCount, m.CreatedAt)
	if err != nil {
		return apperr.Database("insert_chat_message", err)
	}
	return nil
}

// ListChatMessages returns a session's messages in chronological order,
// optionally limited to the most recent limit (0 = all).
func (s *Store) ListChatMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	query := `
SELECT id, session_id, role, content, message_type, context_used, sources, token_count, created_at FROM (
  SELECT id, session_id, role, content, message_type, COALESCE(context_used,'') AS context_used, sources, token_count, created_at
  FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
) sub ORDER BY created_at ASC`
	limitArg := limit
	if limitArg <= 0 {
		limitArg = 1 << 30
	}
	rows, err := s.pool.Query(ctx, query, sessionID, limitArg)
	if err != nil {
		return nil, apperr.Database("list_chat_messages", err)
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		var m models.Message
		var sources []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Type, &m.ContextUsed, &sources, &m.TokenCount, &m.CreatedAt); err != nil {
			return nil, apperr.Database("scan_chat_message", err)
		}
		if len(sources) > 0 {
			_ = json.Unmarshal(sources, &m.Sources)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertMemoryFact inserts a new fact or, on (session_id, key) conflict,
// updates its value, bumps access_count, and refreshes last_accessed —
// spec.md's memory-fact upsert semantics.
func (s *Store) UpsertMemoryFact(ctx context.Context, f *models.MemoryFact) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO memory_facts (id, session_id, fact_type, key, value, confidence, access_count, last_accessed, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,1,now(),$7)
ON CONFLICT (session_id, key) DO UPDATE SET
  value = EXCLUDED.value,
  confidence = EXCLUDED.confidence,
  access_count = memory_facts.access_count + 1,
  last_accessed = now(),
  expires_at = EXCLUDED.expires_at`,
		f.ID, f.SessionID, f.Type, f.Key, f.Value, f.Confidence, f.ExpiresAt)
	if err != nil {
		return apperr.Database("upsert_memory_fact", err)
	}
	return nil
}

// ListMemoryFacts returns a session's non-expired facts.
func (s *Store) ListMemoryFacts(ctx context.Context, sessionID string) ([]models.MemoryFact, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, COALESCE(session_id,''), fact_type, key, value, confidence, access_count, last_accessed, expires_at
FROM memory_facts
WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > now())
ORDER BY last_accessed DESC`, sessionID)
	if err != nil {
		return nil, apperr.Database("list_memory_facts", err)
	}
	defer rows.Close()
	var out []models.MemoryFact
	for rows.Next() {
		var f models.MemoryFact
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Type, &f.Key, &f.Value, &f.Confidence, &f.AccessCount, &f.LastAccessed, &f.ExpiresAt); err != nil {
			return nil, apperr.Database("scan_memory_fact", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
