package chat

import (
	"strings"
	"testing"

	"srg/internal/models"
)

func TestSendOptions_NormalizedClampsTopK(t *testing.T) {
	o := SendOptions{TopK: 100, MaxContextChars: 100000}.normalized()
	if o.TopK != 20 {
		t.Fatalf("expected TopK clamped to 20, got %d", o.TopK)
	}
	if o.MaxContextChars != 16000 {
		t.Fatalf("expected MaxContextChars clamped to 16000, got %d", o.MaxContextChars)
	}
}

func TestSendOptions_NormalizedAppliesFloors(t *testing.T) {
	o := SendOptions{TopK: 0, MaxContextChars: 0}.normalized()
	if o.TopK != 1 {
		t.Fatalf("expected TopK floored to 1, got %d", o.TopK)
	}
	if o.MaxContextChars != 500 {
		t.Fatalf("expected MaxContextChars floored to 500, got %d", o.MaxContextChars)
	}
}

func TestBuildPrompt_IncludesSystemPromptSummaryAndHistory(t *testing.T) {
	session := &models.ChatSession{SystemPrompt: "be concise", ConversationSummary: "discussed invoice INV-1"}
	history := []models.Message{{Role: models.RoleUser, Content: "hello"}}
	prompt := buildPrompt(session, history, "some context")

	for _, want := range []string{"be concise", "discussed invoice INV-1", "hello", "some context"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got: %s", want, prompt)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens("one two three"); got != 3 {
		t.Fatalf("expected 3 tokens, got %d", got)
	}
}

func TestExtractBalancedArray_FindsArrayInProse(t *testing.T) {
	resp := `Sure, here you go: [{"fact_type":"entity","key":"vendor","value":"Acme","confidence":0.9}] done.`
	got := extractBalancedArray(resp)
	want := `[{"fact_type":"entity","key":"vendor","value":"Acme","confidence":0.9}]`
	if got != want {
		t.Fatalf("extractBalancedArray() = %q, want %q", got, want)
	}
}

func TestExtractBalancedArray_NoArrayReturnsEmpty(t *testing.T) {
	if got := extractBalancedArray("nothing to see here"); got != "[]" {
		t.Fatalf("expected empty array fallback, got %q", got)
	}
}

func TestRenderSSELine_Token(t *testing.T) {
	if got := RenderSSELine(Event{Token: "hi"}); got != "data: hi\n\n" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderSSELine_Done(t *testing.T) {
	if got := RenderSSELine(Event{Done: true}); got != "data: [DONE]\n\n" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderSSELine_Error(t *testing.T) {
	got := RenderSSELine(Event{Err: errString("boom")})
	if got != "data: [ERROR] boom\n\n" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
