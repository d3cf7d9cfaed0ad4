package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"srg/internal/apperr"
)

// HTTPProvider talks to a local HTTP-server-backed inference endpoint (the
// "local HTTP-server-backed provider" of spec.md §4.A — an Ollama-compatible
// sidecar is the reference target). Generate, Embed and Caption run through
// the circuit breaker and retry policy; Stream goes through the breaker
// only, and CheckHealth through neither. When RequestsPerSec is set it also
// rate-limits outbound requests with x/time/rate, the way the teacher's
// flow.Client throttles access-node calls; llm.New leaves it unset.
type HTTPProvider struct {
	host        string
	model       string
	visionModel string
	httpClient  *http.Client
	breaker     *CircuitBreaker
	limiter     *rate.Limiter

	maxRetries      int
	retryDelay      time.Duration
	retryMultiplier float64
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	Host             string
	Model            string
	VisionModel      string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	RetryMultiplier  float64
	RequestsPerSec   float64 // 0 disables rate limiting
}

// NewHTTPProvider builds an HTTPProvider from cfg.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), int(cfg.RequestsPerSec)+1)
	}
	return &HTTPProvider{
		host:        strings.TrimRight(cfg.Host, "/"),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		breaker:     NewCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown),
		limiter:     limiter,

		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
		retryMultiplier: cfg.RetryMultiplier,
	}
}

func (p *HTTPProvider) Identifier() string { return p.model }

func (p *HTTPProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Images      []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *HTTPProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var out string
	err := p.breaker.Call(func() error {
		return withRetry(ctx, p.retries(), p.delay(), p.multiplier(), func() error {
			if err := p.wait(ctx); err != nil {
				return err
			}
			resp, err := p.postJSON(ctx, "/api/generate", generateRequest{
				Model: p.model, Prompt: prompt, Stream: false,
				Temperature: opts.Temperature, MaxTokens: opts.MaxTokens,
			})
			if err != nil {
				return Retryable(err)
			}
			defer resp.Body.Close()
			var gr generateResponse
			if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
				return Retryable(fmt.Errorf("decode generate response: %w", err))
			}
			out = gr.Response
			return nil
		})
	})
	if err != nil {
		return "", classifyError(err)
	}
	return out, nil
}

// Stream returns a lazy finite sequence of tokens terminated by a Done
// chunk. The caller may abandon the channel at any point; the underlying
// HTTP response body is closed by the background goroutine on return,
// releasing the network handle as spec.md §5 requires of streaming
// producers.
func (p *HTTPProvider) Stream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	if err := p.wait(ctx); err != nil {
		return nil, classifyError(err)
	}

	var resp *http.Response
	err := p.breaker.Call(func() error {
		r, err := p.postJSON(ctx, "/api/generate", generateRequest{
			Model: p.model, Prompt: prompt, Stream: true,
			Temperature: opts.Temperature, MaxTokens: opts.MaxTokens,
		})
		if err != nil {
			return Retryable(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Text()
			if line == "" {
				continue
			}
			var gr generateResponse
			if err := json.Unmarshal([]byte(line), &gr); err != nil {
				select {
				case out <- StreamChunk{Err: fmt.Errorf("decode stream chunk: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- StreamChunk{Token: gr.Response, Done: gr.Done}:
			case <-ctx.Done():
				return
			}
			if gr.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	err := p.breaker.Call(func() error {
		return withRetry(ctx, p.retries(), p.delay(), p.multiplier(), func() error {
			if err := p.wait(ctx); err != nil {
				return err
			}
			resp, err := p.postJSON(ctx, "/api/embed", embedRequest{Model: p.model, Input: texts})
			if err != nil {
				return Retryable(err)
			}
			defer resp.Body.Close()
			var er embedResponse
			if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
				return Retryable(fmt.Errorf("decode embed response: %w", err))
			}
			for i := range er.Embeddings {
				l2Normalize(er.Embeddings[i])
			}
			out = er.Embeddings
			return nil
		})
	})
	if err != nil {
		return nil, classifyError(err, apperr.CodeEmbeddingError)
	}
	return out, nil
}

func (p *HTTPProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.CodeEmbeddingError, "provider returned no embedding", "retry the request")
	}
	return vecs[0], nil
}

func (p *HTTPProvider) Caption(ctx context.Context, image []byte, prompt string) (string, error) {
	if p.visionModel == "" {
		return "", ErrCaptionUnsupported
	}
	encoded := base64.StdEncoding.EncodeToString(image)
	var out string
	err := p.breaker.Call(func() error {
		return withRetry(ctx, p.retries(), p.delay(), p.multiplier(), func() error {
			if err := p.wait(ctx); err != nil {
				return err
			}
			resp, err := p.postJSON(ctx, "/api/generate", generateRequest{
				Model: p.visionModel, Prompt: prompt, Stream: false, Images: []string{encoded},
			})
			if err != nil {
				return Retryable(err)
			}
			defer resp.Body.Close()
			var gr generateResponse
			if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
				return Retryable(fmt.Errorf("decode caption response: %w", err))
			}
			out = gr.Response
			return nil
		})
	})
	if err != nil {
		return "", classifyError(err)
	}
	return out, nil
}

func (p *HTTPProvider) CheckHealth(ctx context.Context) HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return HealthStatus{Available: false, Error: err.Error(), Identifier: p.model}
	}
	resp, err := p.httpClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Available: false, LatencyMS: latency, Identifier: p.model, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return HealthStatus{Available: false, LatencyMS: latency, Identifier: p.model, Error: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return HealthStatus{Available: true, LatencyMS: latency, Identifier: p.model}
}

// Warmup issues a cheap no-op generate so the first real request doesn't
// pay cold-start latency (spec.md §4.A mentions warmup in the capability
// list without specifying a call site; main.go invokes it once after
// construction and only logs a failure, per SPEC_FULL.md §5).
func (p *HTTPProvider) Warmup(ctx context.Context) error {
	_, err := p.Generate(ctx, "ping", GenerateOptions{MaxTokens: 1})
	return err
}

func (p *HTTPProvider) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

func (p *HTTPProvider) retries() int {
	if p.maxRetries <= 0 {
		return 3
	}
	return p.maxRetries
}

func (p *HTTPProvider) delay() time.Duration {
	if p.retryDelay <= 0 {
		return 500 * time.Millisecond
	}
	return p.retryDelay
}

func (p *HTTPProvider) multiplier() float64 {
	if p.retryMultiplier <= 0 {
		return 2.0
	}
	return p.retryMultiplier
}

// classifyError maps a breaker/retry/transport failure onto a stable
// apperr code. CIRCUIT_BREAKER_OPEN and LLM_TIMEOUT are already apperr
// errors from the breaker/retry layers and pass through unchanged; anything
// else becomes LLM_UNAVAILABLE (or the override code, for embedding calls).
func classifyError(err error, override ...apperr.Code) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	code := apperr.CodeLLMUnavailable
	if len(override) > 0 {
		code = override[0]
	}
	return apperr.Wrap(code, "model provider call failed", "check provider health and retry", err)
}
