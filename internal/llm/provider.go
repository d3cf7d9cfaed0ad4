// Package llm implements the model-provider abstraction of spec.md §4.A: a
// uniform text-generation/embedding/vision capability set, wrapped by a
// per-process circuit breaker and a timeout-only retry policy. It grounds
// the teacher's flow.Client (a gRPC client wrapping multiple access nodes
// behind retry + rate limiting) adapted to a single local inference
// endpoint instead of a node pool.
package llm

import (
	"context"
	"math"
	"time"
)

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Available   bool          `json:"available"`
	LatencyMS   int64         `json:"latency_ms"`
	Identifier  string        `json:"identifier"`
	Error       string        `json:"error,omitempty"`
}

// GenerateOptions configures a single generate/stream call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// StreamChunk is one lazily-produced token (or error) in a stream.
type StreamChunk struct {
	Token string
	Done  bool
	Err   error
}

// Provider is the uniform capability set every concrete backend implements.
// Caption is optional; backends that don't support vision return
// ErrCaptionUnsupported.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	CheckHealth(ctx context.Context) HealthStatus
	Caption(ctx context.Context, image []byte, prompt string) (string, error)
	Identifier() string
}

// ErrCaptionUnsupported is returned by Caption on providers with no vision
// capability.
var ErrCaptionUnsupported = &unsupportedErr{"caption not supported by this provider"}

type unsupportedErr struct{ msg string }

func (e *unsupportedErr) Error() string { return e.msg }

// l2Normalize scales v to unit length in place and returns it. Embedding
// outputs MUST be L2-normalized so the vector index's inner product acts as
// cosine similarity (spec.md §4.A, tested by §8 property 1).
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
	return v
}
