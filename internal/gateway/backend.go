package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/resilience"
	"github.com/sells-group/payai/pkg/anthropic"
	"github.com/sells-group/payai/pkg/groq"
)

// Request is one completion call, independent of the backend.
type Request struct {
	Operation   string
	System      string
	Prompt      string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Backend performs a single completion with one credential. Failures that
// carry an HTTP status must be returned as *resilience.StatusError so the
// gateway can tell throttled or rejected credentials from fatal errors.
type Backend interface {
	Complete(ctx context.Context, credential string, req Request) (string, error)
}

// NewBackend builds the backend selected by llm.provider.
func NewBackend(cfg *config.Config) (Backend, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	switch strings.ToLower(cfg.LLM.Provider) {
	case "groq", "":
		return NewGroqBackend(cfg.LLM.BaseURL, cfg.LLM.Model, timeout), nil
	case "anthropic":
		return NewAnthropicBackend(cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, timeout), nil
	default:
		return nil, eris.Errorf("gateway: unknown llm provider %q", cfg.LLM.Provider)
	}
}

// GroqBackend talks to Groq's OpenAI-compatible API. One client is built
// per credential on first use.
type GroqBackend struct {
	baseURL string
	model   string
	http    *http.Client

	mu      sync.Mutex
	clients map[string]groq.Client
}

// NewGroqBackend creates a GroqBackend. Empty baseURL or model select the
// client defaults.
func NewGroqBackend(baseURL, model string, timeout time.Duration) *GroqBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GroqBackend{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		clients: make(map[string]groq.Client),
	}
}

func (b *GroqBackend) client(credential string) groq.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[credential]
	if !ok {
		c = groq.NewClient(credential,
			groq.WithBaseURL(b.baseURL),
			groq.WithModel(b.model),
			groq.WithHTTPClient(b.http),
		)
		b.clients[credential] = c
	}
	return c
}

// Complete implements Backend.
func (b *GroqBackend) Complete(ctx context.Context, credential string, req Request) (string, error) {
	msgs := make([]groq.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, groq.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, groq.Message{Role: "user", Content: req.Prompt})

	temp := req.Temperature
	creq := groq.ChatCompletionRequest{Messages: msgs, Temperature: &temp}
	if req.MaxTokens > 0 {
		creq.MaxTokens = &req.MaxTokens
	}
	if req.JSON {
		creq.ResponseFormat = groq.JSONObject
	}

	resp, err := b.client(credential).ChatCompletion(ctx, creq)
	if err != nil {
		if code := groq.StatusCode(err); code != 0 {
			return "", resilience.NewStatusError(err, code)
		}
		return "", err
	}
	return resp.Content(), nil
}

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	model     string
	maxTokens int64
	opts      []option.RequestOption

	mu      sync.Mutex
	clients map[string]anthropic.Client
}

// NewAnthropicBackend creates an AnthropicBackend. Extra options are passed
// to every SDK client it builds.
func NewAnthropicBackend(model string, maxTokens int64, timeout time.Duration, opts ...option.RequestOption) *AnthropicBackend {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &AnthropicBackend{
		model:     model,
		maxTokens: maxTokens,
		opts:      opts,
		clients:   make(map[string]anthropic.Client),
	}
}

func (b *AnthropicBackend) client(credential string) anthropic.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[credential]
	if !ok {
		c = anthropic.NewClient(credential, b.opts...)
		b.clients[credential] = c
	}
	return c
}

// Complete implements Backend. The Messages API has no JSON mode, so JSON
// requests get an output instruction appended to the system prompt.
func (b *AnthropicBackend) Complete(ctx context.Context, credential string, req Request) (string, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}
	maxTokens := b.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	temp := req.Temperature

	resp, err := b.client(credential).CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code != 0 {
			return "", resilience.NewStatusError(err, code)
		}
		return "", err
	}
	resp.Usage.LogCost(b.model, req.Operation)
	return resp.Text(), nil
}
