package models

import "time"

// SessionStatus is the lifecycle state of a ChatSession.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionDeleted  SessionStatus = "deleted"
)

// ChatSession tracks one conversation thread and its retrieval scope.
type ChatSession struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Status              SessionStatus `json:"status"`
	ActiveDocumentIDs    []string      `json:"active_document_ids,omitempty"`
	ActiveInvoiceIDs     []string      `json:"active_invoice_ids,omitempty"`
	ConversationSummary  string        `json:"conversation_summary,omitempty"`
	SummaryMessageCount  int           `json:"summary_message_count"`
	TotalTokens          int           `json:"total_tokens"`
	MaxContextTokens     int           `json:"max_context_tokens"`
	SystemPrompt         string        `json:"system_prompt,omitempty"`
	Temperature          float64       `json:"temperature"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// MessageRole identifies the speaker of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType further classifies a Message's content shape.
type MessageType string

const (
	MessageText          MessageType = "text"
	MessageSearchQuery   MessageType = "search_query"
	MessageSearchResult  MessageType = "search_result"
	MessageDocumentRef   MessageType = "document_ref"
	MessageError         MessageType = "error"
)

// Citation is one retrieved-context source attached to an assistant Message.
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

// Message is a child of ChatSession.
type Message struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	Role          MessageRole `json:"role"`
	Content       string      `json:"content"`
	Type          MessageType `json:"message_type"`
	ContextUsed   string      `json:"context_used,omitempty"`
	Sources       []Citation  `json:"sources,omitempty"`
	TokenCount    int         `json:"token_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

// MemoryFactType classifies a MemoryFact.
type MemoryFactType string

const (
	FactUserPreference  MemoryFactType = "user_preference"
	FactDocumentContext MemoryFactType = "document_context"
	FactEntity          MemoryFactType = "entity"
	FactRelationship    MemoryFactType = "relationship"
	FactTemporal        MemoryFactType = "temporal"
)

// MemoryFact is a persisted fact triple extracted from the conversation.
// Unique on (SessionID, Key); re-extraction updates Value and bumps
// AccessCount rather than duplicating rows.
type MemoryFact struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id,omitempty"`
	Type         MemoryFactType `json:"fact_type"`
	Key          string         `json:"key"`
	Value        string         `json:"value"`
	Confidence   float64        `json:"confidence"`
	AccessCount  int            `json:"access_count"`
	LastAccessed time.Time      `json:"last_accessed"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}
