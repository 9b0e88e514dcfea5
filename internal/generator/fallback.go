package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/partsflow/descgen-backend/internal/pkg/httpx"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// ChatMessage is one turn of a provider conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// PrimaryProvider streams chat completions. It is tried first, across the
// whole model waterfall.
type PrimaryProvider interface {
	StreamChat(ctx context.Context, model string, messages []ChatMessage, onDelta func(delta string)) (string, error)
}

// SecondaryProvider is the single-shot fallback consulted only after every
// primary model is exhausted.
type SecondaryProvider interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// GenerationRequest is the per-row input to the engine. Template, when
// non-empty, overrides the built-in prompt templates.
type GenerationRequest struct {
	Article  string
	Name     string
	Template string
}

const retryNudge = "Предыдущий ответ был пустой или не на русском. " +
	"Сейчас обязательно верни развёрнутое описание на русском языке."

// EngineConfig tunes the retry waterfall.
type EngineConfig struct {
	// Models are tried in order against the primary provider.
	Models []string
	// SecondaryModel is used for the single secondary-provider call.
	SecondaryModel string
	MaxRetries     int
	RetryDelay     time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Models: []string{
			"openai/gpt-oss-120b",
			"openai/gpt-oss-20b",
			"llama-3.3-70b-versatile",
		},
		SecondaryModel: "deepseek/deepseek-chat-v3.1",
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// Engine walks an ordered list of primary-provider models, retrying each a
// bounded number of times, and falls back to the secondary provider when the
// whole list is exhausted. Validation failures count as transient; hard
// provider errors skip straight to the next model.
type Engine struct {
	log       *logger.Logger
	primary   PrimaryProvider
	secondary SecondaryProvider // nil when OPENROUTER_API_KEY is absent
	validator Validator
	cfg       EngineConfig

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewEngine(log *logger.Logger, primary PrimaryProvider, secondary SecondaryProvider, validator Validator, cfg EngineConfig) *Engine {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultEngineConfig().Models
	}
	if cfg.SecondaryModel == "" {
		cfg.SecondaryModel = DefaultEngineConfig().SecondaryModel
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Engine{
		log:       log.With("component", "FallbackEngine"),
		primary:   primary,
		secondary: secondary,
		validator: validator,
		cfg:       cfg,
		sleep:     time.Sleep,
	}
}

// Generate produces validated description text for one row, or a terminal
// *GenerationError once every model and both providers have failed.
func (e *Engine) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	// The prompt is built once and shared across every attempt and provider.
	prompt := BuildPrompt(req.Article, req.Name, req.Template)

	var lastErr error

	for modelIdx, model := range e.cfg.Models {
		e.log.Info("Trying model", "model", model, "article", req.Article)

		for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			text, err := e.tryOnce(ctx, model, prompt, attempt)
			if err == nil {
				e.log.Info("Generated description", "model", model, "article", req.Article, "attempt", attempt)
				return text, nil
			}
			lastErr = err

			if !errors.Is(err, ErrInvalidText) && !httpx.IsRetryableError(err) {
				// Malformed request, auth rejection: retrying the same model
				// cannot succeed.
				e.log.Error("Hard provider error, skipping model",
					"model", model, "article", req.Article, "attempt", attempt, "error", err)
				break
			}

			e.log.Warn("Attempt failed",
				"model", model, "article", req.Article,
				"attempt", attempt, "max_retries", e.cfg.MaxRetries, "error", err)

			if attempt < e.cfg.MaxRetries {
				delay := httpx.RetryAfterOf(err)
				if delay <= 0 {
					delay = httpx.Jitter(e.cfg.RetryDelay)
				}
				e.sleep(delay)
			}
		}

		if modelIdx < len(e.cfg.Models)-1 {
			e.log.Warn("Model exhausted, moving to next", "model", model)
			e.sleep(httpx.Jitter(e.cfg.RetryDelay))
		}
	}

	e.log.Warn("All primary models exhausted, falling back to secondary provider",
		"models", strings.Join(e.cfg.Models, ", "), "last_error", fmt.Sprint(lastErr))

	text, err := e.generateSecondary(ctx, prompt)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%v (secondary: %w)", lastErr, err)
		}
		return "", &GenerationError{Last: lastErr}
	}
	return text, nil
}

func (e *Engine) tryOnce(ctx context.Context, model, prompt string, attempt int) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: prompt},
	}
	if attempt > 1 {
		messages = append(messages, ChatMessage{Role: "user", Content: retryNudge})
	}

	raw, err := e.primary.StreamChat(ctx, model, messages, nil)
	if err != nil {
		return "", err
	}

	text := stripCodeFence(raw)
	if !e.validator.IsValid(text) {
		return "", ErrInvalidText
	}
	return text, nil
}

func (e *Engine) generateSecondary(ctx context.Context, prompt string) (string, error) {
	if e.secondary == nil {
		return "", fmt.Errorf("secondary provider unavailable: OPENROUTER_API_KEY not configured")
	}

	messages := []ChatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: prompt},
	}

	raw, err := e.secondary.Chat(ctx, e.cfg.SecondaryModel, messages)
	if err != nil {
		return "", err
	}

	text := stripCodeFence(raw)
	if !e.validator.IsValid(text) {
		return "", ErrInvalidText
	}
	e.log.Info("Generated description via secondary provider", "model", e.cfg.SecondaryModel)
	return text, nil
}

// stripCodeFence removes a wrapping markdown code fence some models add
// around HTML output.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```html")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
