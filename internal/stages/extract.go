package stages

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"marketminds/internal/llm"
	"marketminds/internal/models"
)

const extractPrompt = `You are a financial assistant. Analyze the following question and extract:
1. Stock symbols mentioned (in uppercase). If company names are mentioned instead of stock symbols, resolve them to their stock symbols.
2. Time period mentioned. Choose the most suitable one from the following options: ['1d', '5d', '1mo', '3mo', '6mo', '1y', '2y', '5y', '10y', 'ytd', 'max'].
3. Any specific metrics requested.

If you cannot find:
- A stock symbol or company name, return an empty list for "symbols".
- A time period, return an empty string for "period".
- Specific metrics, return an empty list for "metrics".

Respond with a JSON object with the keys "symbols", "period" and "metrics".`

// Extractor pulls symbols, period and metrics out of a question.
type Extractor struct {
	stage
}

// NewExtractor creates an extractor on model.
func NewExtractor(model llm.Model, logger zerolog.Logger) *Extractor {
	return &Extractor{stage{model: model, logger: logger}}
}

// Extract returns the question's context. Symbols are upper-cased and
// de-duplicated; a period outside the enumeration becomes empty.
func (e *Extractor) Extract(ctx context.Context, question string) (Context, error) {
	text, err := e.complete(ctx, []models.Message{
		models.SystemMessage(extractPrompt),
		models.HumanMessage("Question: " + question),
	}, true)
	if err != nil {
		return Context{}, err
	}

	var raw struct {
		Symbols json.RawMessage `json:"symbols"`
		Period  string          `json:"period"`
		Metrics json.RawMessage `json:"metrics"`
	}
	if err := decodeJSONObject(text, &raw); err != nil {
		return Context{}, err
	}

	out := Context{
		Symbols: normalizeSymbols(stringList(raw.Symbols)),
		Metrics: stringList(raw.Metrics),
	}
	if p := models.Period(strings.ToLower(strings.TrimSpace(raw.Period))); p.Valid() {
		out.Period = p
	}
	e.logger.Debug().Strs("symbols", out.Symbols).Str("period", string(out.Period)).Msg("Context extracted")
	return out, nil
}

// stringList accepts a JSON list of strings or a single string, and drops blanks.
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []string{single}
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
