package stages

import (
	"context"

	"github.com/rs/zerolog"

	"marketminds/internal/llm"
	"marketminds/internal/models"
)

const classifyPrompt = `You are a question classification expert.
Classify input questions related to investments, such as stocks and financial news, into one of the following categories:
- stock_specific: Questions about stocks
- technical_analysis: Questions about financial metrics regarding stocks
- news_based: Questions about news
- unrelated: Any other input, such as greetings, application inquiries, or non-relevant topics.
Respond with a JSON object of the form {"category": "<category name>"}.`

// Classifier assigns a question to exactly one Category.
type Classifier struct {
	stage
}

// NewClassifier creates a classifier on model.
func NewClassifier(model llm.Model, logger zerolog.Logger) *Classifier {
	return &Classifier{stage{model: model, logger: logger}}
}

// Classify returns the question's category. A label outside the known set
// is an error.
func (c *Classifier) Classify(ctx context.Context, question string) (Category, error) {
	text, err := c.complete(ctx, []models.Message{
		models.SystemMessage(classifyPrompt),
		models.HumanMessage("Question : " + question),
	}, true)
	if err != nil {
		return "", err
	}

	var out struct {
		Category string `json:"category"`
	}
	if err := decodeJSONObject(text, &out); err != nil {
		// Bare labels are accepted from backends that ignore JSON mode.
		if category, perr := ParseCategory(text); perr == nil {
			return category, nil
		}
		return "", err
	}
	category, err := ParseCategory(out.Category)
	if err != nil {
		return "", err
	}
	c.logger.Debug().Str("category", string(category)).Msg("Question classified")
	return category, nil
}
