// Package llm submits prompts to a pluggable text-generation backend with
// content-addressed response caching and bounded retry.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/user/policygen/pkg/model"
)

// Params are the generation knobs forwarded to the backend. They are part
// of the cache key, so identical inputs always replay from cache.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Generator is the capability interface every backend implements.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
	Model() string
}

// Config selects and parameterizes a backend. The provider set is closed;
// selection happens once at startup.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	OllamaURL string
}

// NewGenerator constructs the configured backend.
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaGenerator(cfg.OllamaURL, cfg.Model)
	case "openai":
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicGenerator(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, &model.ConfigurationError{Msg: fmt.Sprintf("unknown LLM provider %q (supported: ollama, openai, anthropic, gemini)", cfg.Provider)}
	}
}

// GenerationError signals that the backend could not produce usable text:
// either retries were exhausted on transient failures, or a non-transient
// failure occurred. It carries the last underlying error.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// backendError is an HTTP-level failure from a hosted backend.
type backendError struct {
	Status int
	Body   string
}

func (e *backendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// errEmptyResponse marks an empty or whitespace-only generation, which is
// retried like any other transient failure.
var errEmptyResponse = errors.New("backend returned empty response")

// isTransient reports whether an error is worth retrying. Rate limiting
// and server-side failures are transient; client-side rejections such as
// auth failures or malformed requests are not. Network-level errors have
// no status to inspect and default to transient.
func isTransient(err error) bool {
	var be *backendError
	if errors.As(err, &be) {
		return be.Status == http.StatusTooManyRequests || be.Status >= 500
	}
	return true
}
