package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/partsflow/descgen-backend/internal/pkg/httpx"
	"github.com/partsflow/descgen-backend/internal/platform/envutil"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// Message is a single chat turn sent to the completions endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the Groq chat client used by the generation engine. Groq speaks
// the OpenAI chat-completions dialect, including SSE streaming.
type Client interface {
	// StreamChatCompletion issues a streaming chat request and returns the
	// concatenated text. Every non-empty delta is forwarded to onDelta when
	// the callback is non-nil. The stream is finite and not restartable.
	StreamChatCompletion(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client

	temperature float64
	maxTokens   int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	if apiKey == "" {
		// Legacy variable name carried over from early deployments.
		apiKey = strings.TrimSpace(os.Getenv("QROQ_TOKEN"))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing GROQ_API_KEY")
	}

	baseURL := envutil.String("GROQ_BASE_URL", "https://api.groq.com/openai")
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := envutil.DurationSeconds("GROQ_TIMEOUT_SECONDS", 120*time.Second)

	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &client{
		log:         log.With("service", "GroqClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		temperature: envutil.Float("GROQ_TEMPERATURE", 0.4),
		maxTokens:   envutil.Int("GROQ_MAX_COMPLETION_TOKENS", 900),
	}, nil
}

type groqHTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *groqHTTPError) Error() string {
	return fmt.Sprintf("groq http %d: %s", e.StatusCode, e.Body)
}

func (e *groqHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *groqHTTPError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

// groqStreamError is a fault Groq reports inside an already-open response
// stream, typically over-capacity. The connection succeeded, so there is no
// HTTP status; these are retryable on the same model.
type groqStreamError struct {
	Message string
}

func (e *groqStreamError) Error() string {
	return fmt.Sprintf("groq stream error: %s", e.Message)
}

func (e *groqStreamError) Transient() bool { return true }

type chatCompletionRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	Temperature         float64   `json:"temperature"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	TopP                float64   `json:"top_p,omitempty"`
	Stream              bool      `json:"stream"`
}

func (c *client) StreamChatCompletion(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("model required")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("messages required")
	}

	reqBody := chatCompletionRequest{
		Model:               model,
		Messages:            messages,
		Temperature:         c.temperature,
		MaxCompletionTokens: c.maxTokens,
		TopP:                1,
		Stream:              true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return "", &groqHTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, 30*time.Second),
		}
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = streamChatChunks(resp.Body, func(chunk chatCompletionChunk) error {
		if chunk.Error != nil && strings.TrimSpace(chunk.Error.Message) != "" {
			return &groqStreamError{Message: chunk.Error.Message}
		}
		for _, choice := range chunk.Choices {
			d := choice.Delta.Content
			if d == "" {
				continue
			}
			full.WriteString(d)
			if onDelta != nil {
				onDelta(d)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
