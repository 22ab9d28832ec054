package stages

import (
	"context"

	"github.com/rs/zerolog"

	"marketminds/internal/llm"
	"marketminds/internal/models"
)

const formulatePrompt = `You are an AI assistant that formulates a standalone question when given
chat history, a chat summary and the latest user question, which might reference
context in the chat history and summary.
First decide whether the user question is already standalone.
If it can be answered without the chat history and summary, do not reformulate it.
Otherwise reformulate it, referring to the chat history and summary.
Do NOT answer the question.
Output only the standalone question, or the original if no reformulation is needed.`

// Formulator rewrites a follow-up question into a standalone one.
type Formulator struct {
	stage
}

// NewFormulator creates a formulator on model.
func NewFormulator(model llm.Model, logger zerolog.Logger) *Formulator {
	return &Formulator{stage{model: model, logger: logger}}
}

// Formulate returns a standalone version of input. A blank model reply
// yields input unchanged.
func (f *Formulator) Formulate(ctx context.Context, history []models.Message, input, summary string) (string, error) {
	msgs := []models.Message{
		models.SystemMessage(formulatePrompt),
		models.HumanMessage("User question: " + input + " \n\n Chat summary: " + summary),
	}
	msgs = append(msgs, models.StripUnansweredToolCalls(history)...)

	text, err := f.complete(ctx, msgs, false)
	if err != nil {
		return "", err
	}
	if text == "" {
		return input, nil
	}
	f.logger.Debug().Str("query", text).Msg("Query formulated")
	return text, nil
}
