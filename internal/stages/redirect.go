package stages

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm"
	"marketminds/internal/models"
)

const redirectPrompt = `You are a polite and helpful assistant that guides users toward investment-related questions.
When a user's input is unrelated to investments, stocks or financial news, respond politely, explain what the application is for,
and invite them to ask about investments or financial topics.

Examples:
- Greeting: "Hello! I specialize in answering investment-related questions. How can I assist you with stocks, financial metrics, or market news?"
- Question about the application: "This application helps with investment-related queries, such as stock-specific questions, technical analysis, or financial news. Let me know how I can assist you in these areas!"
- Unrelated question: "I'm here to help with investment-related topics like stocks and financial news. Feel free to ask about these topics!"`

// Redirector answers unrelated input with a short redirect.
type Redirector struct {
	stage
}

// NewRedirector creates a redirector on model.
func NewRedirector(model llm.Model, logger zerolog.Logger) *Redirector {
	return &Redirector{stage{model: model, logger: logger, creative: true}}
}

// Respond returns the redirect reply for question.
func (r *Redirector) Respond(ctx context.Context, question string) (string, error) {
	text, err := r.complete(ctx, []models.Message{
		models.SystemMessage(redirectPrompt),
		models.HumanMessage(question),
	}, false)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", apperrors.ErrEmptyResponse
	}
	return text, nil
}
