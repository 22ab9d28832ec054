package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/logging"
	"marketminds/internal/models"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicModel implements Model on the Claude messages API. It serves text
// roles only and rejects requests that carry tools.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
	logger      zerolog.Logger
}

// NewAnthropicModel creates a Claude chat model.
func NewAnthropicModel(role config.ModelRole, apiKey string, logger zerolog.Logger) *AnthropicModel {
	maxTokens := role.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       role.Model,
		temperature: role.Temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Name returns provider/model.
func (m *AnthropicModel) Name() string { return config.ProviderAnthropic + "/" + m.model }

// Chat sends the conversation and returns the assistant reply.
func (m *AnthropicModel) Chat(ctx context.Context, req Request) (*Response, error) {
	if len(req.Tools) > 0 {
		return nil, apperrors.NewModelError(config.ProviderAnthropic, "chat", apperrors.ErrToolsUnsupported)
	}
	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   int64(m.maxTokens),
		Messages:    toAnthropicMessages(req.Messages),
		Temperature: anthropic.Float(temperature(req, m.temperature)),
	}
	system := systemText(req.Messages)
	if req.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := m.client.Messages.New(ctx, params)
	logging.LogModelCall(m.logger, config.ProviderAnthropic, m.model, len(req.Messages), time.Since(start), err)
	if err != nil {
		return nil, apperrors.NewModelError(config.ProviderAnthropic, "chat", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, apperrors.NewModelError(config.ProviderAnthropic, "chat", apperrors.ErrEmptyResponse)
	}
	return &Response{Message: aiMessage(text.String(), nil)}, nil
}

// toAnthropicMessages renders the history as alternating user and assistant
// turns. Tool results become user text; adjacent turns of one side merge.
func toAnthropicMessages(msgs []models.Message) []anthropic.MessageParam {
	type turn struct {
		assistant bool
		text      []string
	}
	var turns []turn
	push := func(assistant bool, text string) {
		if text == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].text = append(turns[n-1].text, text)
			return
		}
		turns = append(turns, turn{assistant: assistant, text: []string{text}})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleHuman:
			push(false, msg.Content)
		case models.RoleAI:
			push(true, msg.Content)
		case models.RoleTool:
			push(false, "Result of "+msg.Name+": "+msg.Content)
		}
	}

	// The API requires the conversation to open with a user turn.
	if len(turns) > 0 && turns[0].assistant {
		turns = append([]turn{{text: []string{"(conversation continues)"}}}, turns...)
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.assistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
