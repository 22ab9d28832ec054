// Package stages holds the single-shot model mappings that surround the
// conversation graph: question classification, context extraction, query
// formulation and the redirect reply for unrelated input.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm"
	"marketminds/internal/models"
)

// Category is a question category.
type Category string

const (
	CategoryStockSpecific     Category = "stock_specific"
	CategoryNewsBased         Category = "news_based"
	CategoryTechnicalAnalysis Category = "technical_analysis"
	CategoryUnrelated         Category = "unrelated"
)

// Categories lists every category in prompt order.
var Categories = []Category{
	CategoryStockSpecific,
	CategoryNewsBased,
	CategoryTechnicalAnalysis,
	CategoryUnrelated,
}

// ParseCategory validates a category label.
func ParseCategory(s string) (Category, error) {
	label := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Categories {
		if c == label {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, s)
}

// Context is the structured information extracted from a question.
type Context struct {
	Symbols []string      `json:"symbols"`
	Period  models.Period `json:"period"`
	Metrics []string      `json:"metrics"`
}

// IsEmpty reports whether nothing was extracted.
func (c *Context) IsEmpty() bool {
	return c == nil || (len(c.Symbols) == 0 && c.Period == "" && len(c.Metrics) == 0)
}

// Hint renders the context as a system hint for the agent prompt.
func (c *Context) Hint() string {
	if c.IsEmpty() {
		return ""
	}
	var parts []string
	if len(c.Symbols) > 0 {
		parts = append(parts, "symbols: "+strings.Join(c.Symbols, ", "))
	}
	if c.Period != "" {
		parts = append(parts, "period: "+string(c.Period))
	}
	if len(c.Metrics) > 0 {
		parts = append(parts, "metrics: "+strings.Join(c.Metrics, ", "))
	}
	return "Context extracted from the question (" + strings.Join(parts, "; ") + ")"
}

// stage is the shared plumbing of every single-shot call.
type stage struct {
	model  llm.Model
	logger zerolog.Logger
	// creative keeps the model's configured temperature instead of 0.
	creative bool
}

func (s stage) complete(ctx context.Context, msgs []models.Message, jsonMode bool) (string, error) {
	req := llm.Request{Messages: msgs, JSON: jsonMode}
	if !s.creative {
		zero := 0.0
		req.Temperature = &zero
	}
	resp, err := s.model.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// decodeJSONObject decodes the first JSON object found in text. Code fences
// and surrounding prose are ignored.
func decodeJSONObject(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in response", apperrors.ErrEmptyResponse)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("decoding model response: %w", err)
	}
	return nil
}
