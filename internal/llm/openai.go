package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/logging"
	"marketminds/internal/models"
)

// OpenAIModel implements Model on the OpenAI chat completions API. Groq and
// other compatible endpoints are reached through the base URL.
type OpenAIModel struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// NewOpenAIModel creates a chat model for an OpenAI-compatible provider.
func NewOpenAIModel(role config.ModelRole, apiKey string, logger zerolog.Logger) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	switch {
	case role.BaseURL != "":
		cfg.BaseURL = role.BaseURL
	case role.Provider == config.ProviderGroq:
		cfg.BaseURL = GroqBaseURL
	}
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(cfg),
		provider:    role.Provider,
		model:       role.Model,
		temperature: role.Temperature,
		maxTokens:   role.MaxTokens,
		logger:      logger,
	}
}

// Name returns provider/model.
func (m *OpenAIModel) Name() string { return m.provider + "/" + m.model }

// Chat sends the conversation and returns the assistant reply.
func (m *OpenAIModel) Chat(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	request := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(temperature(req, m.temperature)),
		MaxTokens:   m.maxTokens,
		Tools:       toOpenAITools(req.Tools),
	}
	if req.JSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := m.client.CreateChatCompletion(ctx, request)
	logging.LogModelCall(m.logger, m.provider, m.model, len(req.Messages), time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewModelError(m.provider, "chat", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewModelError(m.provider, "chat", apperrors.ErrEmptyResponse)
	}

	choice := resp.Choices[0].Message
	calls := make([]models.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		calls = append(calls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return &Response{Message: aiMessage(choice.Content, calls)}, nil
}

func toOpenAIMessages(msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case models.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case models.RoleAI:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, m)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				Name:       msg.Name,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg config.EmbeddingModel, apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed returns one vector per text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, apperrors.NewModelError(config.ProviderOpenAI, "embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewModelError(config.ProviderOpenAI, "embed",
			fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
