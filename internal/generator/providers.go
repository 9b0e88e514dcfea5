package generator

import (
	"context"

	"github.com/partsflow/descgen-backend/internal/platform/groq"
	"github.com/partsflow/descgen-backend/internal/platform/openrouter"
)

// GroqProvider adapts the Groq client to the engine's primary interface.
type GroqProvider struct {
	Client groq.Client
}

func (p GroqProvider) StreamChat(ctx context.Context, model string, messages []ChatMessage, onDelta func(string)) (string, error) {
	msgs := make([]groq.Message, len(messages))
	for i, m := range messages {
		msgs[i] = groq.Message{Role: m.Role, Content: m.Content}
	}
	return p.Client.StreamChatCompletion(ctx, model, msgs, onDelta)
}

// OpenRouterProvider adapts the OpenRouter client to the secondary interface.
type OpenRouterProvider struct {
	Client openrouter.Client
}

func (p OpenRouterProvider) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	msgs := make([]openrouter.Message, len(messages))
	for i, m := range messages {
		msgs[i] = openrouter.Message{Role: m.Role, Content: m.Content}
	}
	return p.Client.ChatCompletion(ctx, model, msgs)
}
