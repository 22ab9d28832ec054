package tools

import (
	"context"
	"sort"
	"sync"

	"marketminds/internal/analysis"
	"marketminds/internal/analysis/indicators"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/market"
	"marketminds/internal/models"
)

// StockData is the per-symbol result of retrieve_stocks_data.
type StockData struct {
	HistoricalData *analysis.Summary `json:"historical_data"`
	StockInfo      models.StockInfo  `json:"stock_info"`
}

func parsePeriodParam(params map[string]interface{}) (models.Period, error) {
	raw := getStringParam(params, "period", "")
	period, err := models.ParsePeriod(raw)
	if err != nil {
		return "", apperrors.NewValidationError("period", raw, "must be one of 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max")
	}
	return period, nil
}

func (e *Executor) executeStocksData(ctx context.Context, params map[string]interface{}) (map[string]StockData, error) {
	period, err := parsePeriodParam(params)
	if err != nil {
		return nil, err
	}
	return e.StocksData(ctx, getStringListParam(params, "stock_symbols"), period)
}

// StocksData returns the summary and company metrics of every symbol. The
// first unknown symbol, in input order, fails the whole call.
func (e *Executor) StocksData(ctx context.Context, symbols []string, period models.Period) (map[string]StockData, error) {
	symbols = normalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, apperrors.NewMissingStockSymbolError()
	}

	results := make([]StockData, len(symbols))
	errs := make([]error, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i], errs[i] = e.stockData(ctx, symbol, period)
		}(i, symbol)
	}
	wg.Wait()

	out := make(map[string]StockData, len(symbols))
	for i, symbol := range symbols {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out[symbol] = results[i]
	}
	return out, nil
}

func (e *Executor) stockData(ctx context.Context, symbol string, period models.Period) (StockData, error) {
	candles, err := e.history(ctx, symbol, period)
	if err != nil {
		return StockData{}, err
	}
	summary, err := analysis.Summarize(candles)
	if err != nil {
		return StockData{}, err
	}

	info, err := e.provider.Info(ctx, symbol)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", symbol).Msg("Stock info unavailable")
		info = models.StockInfo{}
	}
	return StockData{HistoricalData: summary, StockInfo: info}, nil
}

func (e *Executor) executeIndicators(ctx context.Context, params map[string]interface{}) (*indicators.Result, error) {
	period, err := parsePeriodParam(params)
	if err != nil {
		return nil, err
	}
	return e.Indicators(ctx, getStringParam(params, "stock_symbol", ""), period)
}

// Indicators returns the technical snapshot of one symbol.
func (e *Executor) Indicators(ctx context.Context, symbol string, period models.Period) (*indicators.Result, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.NewMissingStockSymbolError()
	}
	candles, err := e.history(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	return e.calculator.Compute(ctx, candles)
}

// history fetches candles, turning an empty series into InvalidStockSymbolError.
func (e *Executor) history(ctx context.Context, symbol string, period models.Period) ([]models.Candle, error) {
	candles, err := e.provider.History(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, apperrors.NewInvalidStockSymbolError(symbol)
	}
	return candles, nil
}

// ComparisonRow is one symbol of a comparison.
type ComparisonRow struct {
	Symbol             string           `json:"symbol"`
	CurrentPrice       float64          `json:"current_price"`
	PriceChangePercent float64          `json:"price_change_percent"`
	Volatility         float64          `json:"volatility"`
	Returns            analysis.Returns `json:"returns"`
	Trend              indicators.Trend `json:"trend"`
}

// Compare summarizes at least two symbols side by side, best performer first.
func (e *Executor) Compare(ctx context.Context, symbols []string, period models.Period) ([]ComparisonRow, error) {
	symbols = normalizeSymbols(symbols)
	if len(symbols) < 2 {
		return nil, apperrors.NewInsufficientStockSymbolsError(len(symbols))
	}
	data, err := e.StocksData(ctx, symbols, period)
	if err != nil {
		return nil, err
	}

	rows := make([]ComparisonRow, 0, len(symbols))
	for _, symbol := range symbols {
		summary := data[symbol].HistoricalData
		row := ComparisonRow{
			Symbol:             symbol,
			CurrentPrice:       summary.PriceMetrics.CurrentPrice,
			PriceChangePercent: summary.PriceMetrics.PriceChangePercent,
			Volatility:         summary.Volatility,
			Returns:            summary.Returns,
			Trend:              indicators.TrendUndetermined,
		}
		if result, err := e.Indicators(ctx, symbol, period); err == nil {
			row.Trend = result.Trend
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PriceChangePercent > rows[j].PriceChangePercent
	})
	return rows, nil
}

// normalizeSymbols upper-cases, trims and de-duplicates symbols, dropping blanks.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = market.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
