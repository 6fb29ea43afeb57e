package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/callreward/internal/model"
)

// ErrNoChoices is returned when a provider answers without any completion text
var ErrNoChoices = errors.New("no completion in response")

// DefaultSystemPrompt asks the model to answer with python call blocks,
// which is the shape the reward function scores.
const DefaultSystemPrompt = "You are a function-calling assistant. " +
	"When a tool is needed, answer with a ```python fenced block containing one call per line, " +
	"using keyword arguments with literal values only."

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates the assistant turn that follows the given messages
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the conversation to continue
type CompletionRequest struct {
	// Messages is the prompt, oldest first
	Messages []model.Message

	// System overrides the configured system prompt
	System string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured temperature when set
	Temperature *float64
}

// CompletionResponse contains the generated assistant turn
type CompletionResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
	Cached     bool   `json:"-"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float64

	// System prompt used when a request does not carry one
	System string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     60,
		MaxTokens:   1024,
		Temperature: 0.7,
		System:      DefaultSystemPrompt,
	}
}

// settings are the effective parameters of one request
type settings struct {
	model       string
	system      string
	maxTokens   int
	temperature float64
}

func (c Config) resolve(req CompletionRequest, defaultModel string) settings {
	s := settings{
		model:       req.Model,
		system:      req.System,
		maxTokens:   req.MaxTokens,
		temperature: c.Temperature,
	}
	if s.model == "" {
		s.model = c.Model
	}
	if s.model == "" {
		s.model = defaultModel
	}
	if s.system == "" {
		s.system = c.System
	}
	if s.maxTokens == 0 {
		s.maxTokens = c.MaxTokens
	}
	if s.maxTokens == 0 {
		s.maxTokens = 1024
	}
	if req.Temperature != nil {
		s.temperature = *req.Temperature
	}
	return s
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}
