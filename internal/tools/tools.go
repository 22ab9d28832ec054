// Package tools exposes market data, indicators and news retrieval to the
// agent as model-callable functions.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketminds/internal/analysis/indicators"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm"
	"marketminds/internal/logging"
	"marketminds/internal/market"
	"marketminds/internal/news"
)

// Tool names exposed to the model.
const (
	RetrieveStocksData     = "retrieve_stocks_data"
	RetrieveStockIndicator = "retreive_stock_indicators_for_single_stock"
	RetrieveNewsData       = "retrieve_news_data"
)

// NewsOptions sizes news retrieval.
type NewsOptions struct {
	K      int
	FetchK int
}

// Executor runs tool calls against market data and the news store.
type Executor struct {
	provider   market.Provider
	searcher   news.Searcher
	calculator *indicators.Calculator
	news       NewsOptions
	logger     zerolog.Logger
}

// NewExecutor creates a tool executor. A nil searcher makes news retrieval
// return no documents.
func NewExecutor(provider market.Provider, searcher news.Searcher, opts NewsOptions, logger zerolog.Logger) *Executor {
	if opts.K <= 0 {
		opts.K = news.DefaultK
	}
	if opts.FetchK < opts.K {
		opts.FetchK = news.DefaultFetchK
		if opts.FetchK < opts.K {
			opts.FetchK = opts.K
		}
	}
	return &Executor{
		provider:   provider,
		searcher:   searcher,
		calculator: indicators.NewCalculator(),
		news:       opts,
		logger:     logger.With().Str("component", "tools").Logger(),
	}
}

const periodSchema = `{
	"type": "string",
	"enum": ["1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"],
	"description": "Time period for historical data. Defaults to 1mo",
	"default": "1mo"
}`

// Definitions returns the tool definitions offered to the model.
func Definitions() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        RetrieveNewsData,
			Description: "Retrieve relevant news documents for a query using max marginal relevance search.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"news_data_request": {
						"type": "string",
						"description": "Query string to search for relevant news data"
					}
				},
				"required": ["news_data_request"]
			}`),
		},
		{
			Name:        RetrieveStocksData,
			Description: "Retrieve essential stock data (price summary, returns and company metrics) for one or more stock symbols.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"stock_symbols": {
						"type": "array",
						"items": {"type": "string"},
						"description": "List of stock symbols to retrieve data for (e.g., AAPL, MSFT)"
					},
					"period": ` + periodSchema + `
				},
				"required": ["stock_symbols"]
			}`),
		},
		{
			Name:        RetrieveStockIndicator,
			Description: "Calculate key performance indicators for one stock: SMA trend, RSI, support, resistance, volume trend and momentum.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"stock_symbol": {
						"type": "string",
						"description": "The stock symbol to analyze (e.g., AAPL)"
					},
					"period": ` + periodSchema + `
				},
				"required": ["stock_symbol"]
			}`),
		},
	}
}

// ExecuteTool executes a tool call and returns its JSON result.
func (e *Executor) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	start := time.Now()
	logger := logging.WithTool(e.logger, toolName)

	result, err := e.dispatch(ctx, toolName, args)
	logging.LogToolCall(logger, toolName, args, time.Since(start), err)
	return result, err
}

func (e *Executor) dispatch(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	params := map[string]interface{}{}
	if len(strings.TrimSpace(string(args))) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", apperrors.NewValidationError("arguments", string(args), "failed to parse tool arguments")
		}
	}

	var result interface{}
	var err error
	switch toolName {
	case RetrieveStocksData:
		result, err = e.executeStocksData(ctx, params)
	case RetrieveStockIndicator:
		result, err = e.executeIndicators(ctx, params)
	case RetrieveNewsData:
		result = e.executeNews(ctx, params)
	default:
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnknownTool, toolName)
	}
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding %s result: %w", toolName, err)
	}
	return string(data), nil
}

// IsRecoverable reports whether a tool error should be handed back to the
// model rather than abort the turn.
func IsRecoverable(err error) bool {
	return errors.Is(err, apperrors.ErrUnknownTool) || errors.Is(err, apperrors.ErrInputValidation)
}

// Helper to get string param with default
func getStringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return defaultVal
}

// Helper to get a string list param; a single string counts as one item.
func getStringListParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	default:
		return nil
	}
}
