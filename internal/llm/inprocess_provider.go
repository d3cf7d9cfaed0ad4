package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// InProcessProvider is a deterministic, dependency-free Provider variant
// selected by LLM_PROVIDER=inprocess. It hashes input text into a stable
// pseudo-embedding and echoes a templated completion, so audit/chat/search
// flows are exercisable in tests and offline development without a running
// inference sidecar. It never fails health checks and has no breaker —
// there's no network boundary for one to guard.
type InProcessProvider struct {
	dimension int
	modelName string
}

// NewInProcessProvider builds an InProcessProvider producing vectors of the
// given dimension.
func NewInProcessProvider(dimension int, modelName string) *InProcessProvider {
	if dimension <= 0 {
		dimension = 384
	}
	if modelName == "" {
		modelName = "inprocess-deterministic"
	}
	return &InProcessProvider{dimension: dimension, modelName: modelName}
}

func (p *InProcessProvider) Identifier() string { return p.modelName }

func (p *InProcessProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return fmt.Sprintf("[inprocess] acknowledged %d-char prompt", len(prompt)), nil
}

func (p *InProcessProvider) Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	text, _ := p.Generate(ctx, prompt, opts)
	words := strings.Fields(text)
	out := make(chan StreamChunk, len(words)+1)
	for _, w := range words {
		out <- StreamChunk{Token: w + " "}
	}
	out <- StreamChunk{Done: true}
	close(out)
	return out, nil
}

func (p *InProcessProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = l2Normalize(p.hashVector(t))
	}
	return out, nil
}

func (p *InProcessProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return l2Normalize(p.hashVector(text)), nil
}

func (p *InProcessProvider) Caption(ctx context.Context, image []byte, prompt string) (string, error) {
	return fmt.Sprintf("[inprocess] image of %d bytes", len(image)), nil
}

func (p *InProcessProvider) CheckHealth(ctx context.Context) HealthStatus {
	return HealthStatus{Available: true, LatencyMS: 0, Identifier: p.modelName}
}

// hashVector derives a stable pseudo-embedding from text by repeatedly
// hashing a rolling seed, giving reproducible (not semantically meaningful)
// vectors suitable for exercising the retrieval pipeline end to end.
func (p *InProcessProvider) hashVector(text string) []float32 {
	vec := make([]float32, p.dimension)
	state := sha256.Sum256([]byte(text))
	pos := 0
	for i := 0; i < p.dimension; i++ {
		if pos+4 > len(state) {
			state = sha256.Sum256(state[:])
			pos = 0
		}
		u := binary.BigEndian.Uint32(state[pos : pos+4])
		pos += 4
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return vec
}
