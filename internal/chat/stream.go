package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"srg/internal/llm"
	"srg/internal/models"
)

// Event is one line of the streaming protocol: "data: <payload>" for a
// token, "data: [DONE]" for completion, or "data: [ERROR] <message>" for a
// mid-stream failure (spec.md §4.G's streaming protocol).
type Event struct {
	Token string
	Done  bool
	Err   error
}

// StreamMessage runs send_message with a streaming generation call,
// persisting the assembled assistant message once the stream completes. A
// mid-stream error ends the stream with an Err event and persists nothing
// for the assistant turn. The returned channel emits one Event per
// provider token plus a terminal Done/Err event; callers render each Event
// as a "data: " line.
func (o *Orchestrator) StreamMessage(ctx context.Context, sessionID, userText string, opts SendOptions) (<-chan Event, error) {
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

	providerStream, err := o.provider.Stream(ctx, prompt, llm.GenerateOptions{Temperature: session.Temperature})
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		var assembled strings.Builder
		for chunk := range providerStream {
			if chunk.Err != nil {
				out <- Event{Err: chunk.Err}
				return
			}
			assembled.WriteString(chunk.Token)
			out <- Event{Token: chunk.Token}
			if chunk.Done {
				break
			}
		}

		assistantText := assembled.String()
		_ = o.store.InsertChatMessage(ctx, &models.Message{
			ID: uuid.NewString(), SessionID: session.ID, Role: models.RoleAssistant, Content: assistantText,
			Type: models.MessageText, ContextUsed: contextText, Sources: citations, TokenCount: estimateTokens(assistantText),
			CreatedAt: time.Now(),
		})
		_ = o.store.IncrementChatSessionTokens(ctx, session.ID, estimateTokens(userText)+estimateTokens(assistantText))

		if opts.ExtractMemory {
			_, _ = o.extractMemory(ctx, session.ID, userText, assistantText)
		}
		_ = o.maybeSummarize(ctx, session.ID)

		out <- Event{Done: true}
	}()
	return out, nil
}

// RenderSSELine formats one Event as a line-delimited server-sent event
// per spec.md §4.G: "data: <token>", "data: [DONE]", or
// "data: [ERROR] <message>".
func RenderSSELine(e Event) string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("data: [ERROR] %s\n\n", e.Err.Error())
	case e.Done:
		return "data: [DONE]\n\n"
	default:
		return fmt.Sprintf("data: %s\n\n", e.Token)
	}
}
