package openrouter

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

	"github.com/partsflow/descgen-backend/internal/platform/envutil"
	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// Message mirrors the OpenAI chat message shape OpenRouter accepts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the OpenRouter fallback client. Unlike the primary provider it
// performs a single request/response chat call, no streaming.
type Client interface {
	ChatCompletion(ctx context.Context, model string, messages []Message) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	referer    string
	appTitle   string
	httpClient *http.Client

	temperature float64
	maxTokens   int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENROUTER_API_KEY")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := envutil.String("OPENROUTER_BASE_URL", "https://openrouter.ai/api")
	baseURL = strings.TrimRight(baseURL, "/")

	return &client{
		log:         log.With("service", "OpenRouterClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		referer:     envutil.String("OPENROUTER_REFERER", "https://github.com/partsflow/descgen-backend"),
		appTitle:    envutil.String("OPENROUTER_APP_TITLE", "Description Generator"),
		httpClient:  &http.Client{Timeout: envutil.DurationSeconds("OPENROUTER_TIMEOUT_SECONDS", 60*time.Second)},
		temperature: envutil.Float("OPENROUTER_TEMPERATURE", 0.4),
		maxTokens:   envutil.Int("OPENROUTER_MAX_TOKENS", 900),
	}, nil
}

type openRouterHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openRouterHTTPError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Body)
}

func (e *openRouterHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) ChatCompletion(ctx context.Context, model string, messages []Message) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("model required")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("messages required")
	}

	reqBody := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
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
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.appTitle)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &openRouterHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openrouter decode error: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
