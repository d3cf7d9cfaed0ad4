// Package chat implements the Session/Chat Orchestrator of spec.md §4.G:
// RAG context assembly, prompt building, streaming, persistence, and
// memory-fact extraction on top of the Hybrid Retriever and the model
// provider. Grounded on the teacher's request-scoped service pattern,
// adapted from blockchain indexing orchestration to conversation turns.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"srg/internal/llm"
	"srg/internal/models"
	"srg/internal/repository"
	"srg/internal/retrieval"
)

// SendOptions configures one send_message call.
type SendOptions struct {
	UseRAG          bool
	TopK            int // clamped to [1,20]
	MaxContextChars int // clamped to [500,16000]
	ExtractMemory   bool
	SystemPrompt    string
	Temperature     float64
	HistoryMessages int // how many recent messages feed the prompt
}

// DefaultSendOptions mirrors spec.md §4.G's stated ranges.
func DefaultSendOptions() SendOptions {
	return SendOptions{UseRAG: true, TopK: 5, MaxContextChars: 4000, ExtractMemory: true, HistoryMessages: 10}
}

func (o SendOptions) normalized() SendOptions {
	if o.TopK < 1 {
		o.TopK = 1
	}
	if o.TopK > 20 {
		o.TopK = 20
	}
	if o.MaxContextChars < 500 {
		o.MaxContextChars = 500
	}
	if o.MaxContextChars > 16000 {
		o.MaxContextChars = 16000
	}
	if o.HistoryMessages <= 0 {
		o.HistoryMessages = 10
	}
	return o
}

// Orchestrator ties the store, retriever, and model provider together.
type Orchestrator struct {
	store     *repository.Store
	retriever *retrieval.Retriever
	provider  llm.Provider
}

func New(store *repository.Store, retriever *retrieval.Retriever, provider llm.Provider) *Orchestrator {
	return &Orchestrator{store: store, retriever: retriever, provider: provider}
}

// SendResult is send_message's return value.
type SendResult struct {
	SessionID      string
	AssistantText  string
	Citations      []models.Citation
	MemoryUpdates  []models.MemoryFact
}

// SendMessage runs one non-streaming turn of spec.md §4.G's send_message.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, userText string, opts SendOptions) (*SendResult, error) {
	opts = opts.normalized()

	session, err := o.getOrCreateSession(ctx, sessionID, opts)
	if err != nil {
		return nil, err
	}

	if err := o.store.InsertChatMessage(ctx, &models.Message{
		ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleUser, Content: userText,
		Type: models.MessageText, CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	var contextText string
	var citations []models.Citation
	if opts.UseRAG && o.retriever != nil {
		contextText, citations = o.assembleContext(ctx, userText, opts)
	}

	history, err := o.store.ListChatMessages(ctx, session.ID, opts.HistoryMessages)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(session, history, contextText)

	genOpts := llm.GenerateOptions{Temperature: session.Temperature}
	assistantText, err := o.provider.Generate(ctx, prompt, genOpts)
	if err != nil {
		return nil, err
	}

	if err := o.store.InsertChatMessage(ctx, &models.Message{
		ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleAssistant, Content: assistantText,
		Type: models.MessageText, ContextUsed: contextText, Sources: citations, TokenCount: estimateTokens(assistantText),
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}
	if err := o.store.IncrementChatSessionTokens(ctx, session.ID, estimateTokens(userText)+estimateTokens(assistantText)); err != nil {
		return nil, err
	}

	var memoryUpdates []models.MemoryFact
	if opts.ExtractMemory {
		memoryUpdates, err = o.extractMemory(ctx, session.ID, userText, assistantText)
		if err != nil {
			memoryUpdates = nil
		}
	}

	if err := o.maybeSummarize(ctx, session.ID); err != nil {
		return nil, err
	}

	return &SendResult{SessionID: session.ID, AssistantText: assistantText, Citations: citations, MemoryUpdates: memoryUpdates}, nil
}

func (o *Orchestrator) getOrCreateSession(ctx context.Context, sessionID string, opts SendOptions) (*models.ChatSession, error) {
	if sessionID != "" {
		return o.store.GetChatSession(ctx, sessionID)
	}
	session := &models.ChatSession{
		ID:               uuid.NewString(),
		Status:           models.SessionActive,
		MaxContextTokens: 8000,
		SystemPrompt:     opts.SystemPrompt,
		Temperature:      opts.Temperature,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := o.store.InsertChatSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// assembleContext retrieves top_k chunks and truncates them to the char
// budget, preferring higher-scored chunks first (spec.md §4.G step 2).
func (o *Orchestrator) assembleContext(ctx context.Context, query string, opts SendOptions) (string, []models.Citation) {
	results, err := o.retriever.Search(ctx, query, opts.TopK, retrieval.SearchOptions{UseReranker: true, UseCache: true})
	if err != nil || len(results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	var citations []models.Citation
	budget := opts.MaxContextChars
	for _, r := range results {
		if budget <= 0 {
			break
		}
		text := r.Text
		if len(text) > budget {
			text = text[:budget]
		}
		sb.WriteString(text)
		sb.WriteString("\n---\n")
		budget -= len(text)

		citations = append(citations, models.Citation{DocumentID: r.DocumentID, ChunkID: r.ChunkID, Score: r.Score, Snippet: snippet(text, 200)})
	}
	return sb.String(), citations
}

func snippet(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}

// buildPrompt assembles system prompt, conversation summary, recent
// history, and retrieved context per spec.md §4.G step 3.
func buildPrompt(session *models.ChatSession, history []models.Message, contextText string) string {
	var sb strings.Builder
	if session.SystemPrompt != "" {
		sb.WriteString(session.SystemPrompt)
		sb.WriteString("\n\n")
	}
	if session.ConversationSummary != "" {
		sb.WriteString("Conversation so far: ")
		sb.WriteString(session.ConversationSummary)
		sb.WriteString("\n\n")
	}
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	if contextText != "" {
		sb.WriteString("\nRetrieved context:\n")
		sb.WriteString(contextText)
	}
	return sb.String()
}

// estimateTokens is a cheap word-count proxy for a real tokenizer, used
// only to drive the summarization trigger and the persisted token_count —
// no tokenizer library is wired in, and callers never see raw token ids.
func estimateTokens(s string) int {
	return len(strings.Fields(s))
}

// maybeSummarize triggers spec.md §4.G's conversation summarization when a
// session's running token total exceeds its configured budget: summarize
// the oldest half of the session's stored messages into the rolling
// conversation summary. The summarized messages are not removed; buildPrompt
// still includes any of them that fall within the recent-history window.
func (o *Orchestrator) maybeSummarize(ctx context.Context, sessionID string) error {
	session, err := o.store.GetChatSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.TotalTokens <= session.MaxContextTokens {
		return nil
	}

	all, err := o.store.ListChatMessages(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	if len(all) < 4 {
		return nil
	}

	half := len(all) / 2
	oldest := all[:half]

	var sb strings.Builder
	for _, m := range oldest {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	summaryPrompt := "Summarize the following conversation excerpt in 3-5 sentences, preserving names, dates, and amounts:\n\n" + sb.String()

	summary, err := o.provider.Generate(ctx, summaryPrompt, llm.GenerateOptions{MaxTokens: 300})
	if err != nil {
		return nil // summarization failure is non-fatal; the session just keeps growing
	}

	combined := session.ConversationSummary
	if combined != "" {
		combined += " "
	}
	combined += summary
	return o.store.UpdateChatSessionSummary(ctx, sessionID, combined, session.SummaryMessageCount+half)
}
