// Package llm provides chat and embedding model backends behind a common interface.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
)

// GroqBaseURL is the OpenAI-compatible endpoint used for the groq provider.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// ToolSpec describes a function the model may call.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON schema object.
	Parameters json.RawMessage
}

// Request is one chat call.
type Request struct {
	Messages []models.Message
	Tools    []ToolSpec
	// Temperature overrides the configured temperature when set.
	Temperature *float64
	// JSON asks for a single JSON object as the response.
	JSON bool
}

// Response holds the model's reply as an AI message.
type Response struct {
	Message models.Message
}

// Model is a chat model backend.
type Model interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New creates the chat model for a configured role.
func New(ctx context.Context, role config.ModelRole, apiKey string, logger zerolog.Logger) (Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingCredentials, role.Provider)
	}
	switch role.Provider {
	case config.ProviderOpenAI, config.ProviderGroq:
		return NewOpenAIModel(role, apiKey, logger), nil
	case config.ProviderGemini:
		return NewGeminiModel(ctx, role, apiKey, logger)
	case config.ProviderAnthropic:
		return NewAnthropicModel(role, apiKey, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownProvider, role.Provider)
	}
}

// NewEmbedder creates the embedding backend.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingModel, apiKey string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingCredentials, cfg.Provider)
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg, apiKey), nil
	case config.ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg, apiKey)
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownProvider, cfg.Provider)
	}
}

// temperature resolves the request override against the configured default.
func temperature(req Request, fallback float64) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return fallback
}

// aiMessage builds the reply message, assigning ids to tool calls that lack one.
func aiMessage(content string, calls []models.ToolCall) models.Message {
	msg := models.AIMessage(strings.TrimSpace(content))
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%s_%d", msg.ID[:8], i)
		}
		if len(calls[i].Arguments) == 0 {
			calls[i].Arguments = json.RawMessage("{}")
		}
	}
	msg.ToolCalls = calls
	return msg
}

// jsonInstruction is appended to the system prompt for backends without a
// native JSON response mode.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// systemText joins every system message in order.
func systemText(msgs []models.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == models.RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
