package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/logging"
	"marketminds/internal/models"
)

// GeminiModel implements Model on the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// NewGeminiModel creates a Gemini chat model.
func NewGeminiModel(ctx context.Context, role config.ModelRole, apiKey string, logger zerolog.Logger) (*GeminiModel, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiModel{
		client:      client,
		model:       role.Model,
		temperature: role.Temperature,
		maxTokens:   role.MaxTokens,
		logger:      logger,
	}, nil
}

func newGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.NewModelError(config.ProviderGemini, "init", err)
	}
	return client, nil
}

// Name returns provider/model.
func (m *GeminiModel) Name() string { return config.ProviderGemini + "/" + m.model }

// Chat sends the conversation and returns the assistant reply.
func (m *GeminiModel) Chat(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	contents, system := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature(req, m.temperature))),
		Tools:       toGeminiTools(req.Tools),
	}
	if m.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(m.maxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	logging.LogModelCall(m.logger, config.ProviderGemini, m.model, len(req.Messages), time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewModelError(config.ProviderGemini, "chat", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, apperrors.NewModelError(config.ProviderGemini, "chat", apperrors.ErrEmptyResponse)
	}

	var text string
	var calls []models.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			text += part.Text
		}
		if fc := part.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				return nil, apperrors.NewModelError(config.ProviderGemini, "chat", err)
			}
			calls = append(calls, models.ToolCall{ID: fc.ID, Name: fc.Name, Arguments: args})
		}
	}
	return &Response{Message: aiMessage(text, calls)}, nil
}

// toGeminiContents converts the history, returning system messages separately.
// Consecutive tool results are grouped into one user turn.
func toGeminiContents(msgs []models.Message) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleHuman:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case models.RoleAI:
			c := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				c.Parts = append(c.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
				})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		case models.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{"output": msg.Content},
			}}
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	return contents, systemText(msgs)
}

func isFunctionResponseTurn(c *genai.Content) bool {
	return c.Role == genai.RoleUser && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func toGeminiTools(specs []ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// GeminiEmbedder implements Embedder on the Gemini embeddings API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedder creates a Gemini embedder.
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingModel, apiKey string) (*GeminiEmbedder, error) {
	client, err := newGenaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: cfg.Model, dimensions: cfg.Dimensions}, nil
}

// Embed returns one vector per text, in input order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{}
	if e.dimensions > 0 {
		dim := int32(e.dimensions)
		cfg.OutputDimensionality = &dim
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, apperrors.NewModelError(config.ProviderGemini, "embed", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, apperrors.NewModelError(config.ProviderGemini, "embed",
			fmt.Errorf("embedding count mismatch for %d texts", len(texts)))
	}
	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
