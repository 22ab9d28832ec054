package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/models"
	"marketminds/internal/tools"
	"marketminds/pkg/utils"
)

// addMarketDataCommands adds commands that call the tools directly.
func addMarketDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStockCmd(app))
	rootCmd.AddCommand(newIndicatorsCmd(app))
	rootCmd.AddCommand(newCompareCmd(app))
	rootCmd.AddCommand(newNewsCmd(app))
}

func periodFlag(cmd *cobra.Command) (models.Period, error) {
	raw, _ := cmd.Flags().GetString("period")
	period, err := models.ParsePeriod(raw)
	if err != nil {
		return "", apperrors.NewValidationError("period", raw, "must be one of 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max")
	}
	return period, nil
}

// reportError prints finance errors as their chat message.
func reportError(output *Output, err error) error {
	if fe, ok := apperrors.AsFinanceError(err); ok {
		output.Warning("%s", fe.ChatMessage())
		return err
	}
	output.Error("%v", err)
	return err
}

func newStockCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock <symbol> [symbol...]",
		Short: "Show price summary and company metrics",
		Long: `Fetch price history for one or more symbols and summarize it.

The summary includes price change, volatility, trailing returns and the
company metrics the market data provider supplies.`,
		Example: `  marketminds stock AAPL
  marketminds stock AAPL MSFT --period 3mo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			period, err := periodFlag(cmd)
			if err != nil {
				return reportError(output, err)
			}
			exec, err := app.executor(cmd.Context())
			if err != nil {
				return reportError(output, err)
			}

			ctx, cancel := requestContext(cmd.Context())
			defer cancel()
			data, err := exec.StocksData(ctx, args, period)
			if err != nil {
				return reportError(output, err)
			}
			if output.IsJSON() {
				return output.JSON(data)
			}

			status := utils.GetMarketStatus()
			if status == utils.MarketOpen {
				output.Printf("Market: %s\n\n", output.MarketStatus(status))
			} else {
				next := utils.NextMarketOpen(time.Now()).Format("Mon 15:04 MST")
				output.Printf("Market: %s %s\n\n", output.MarketStatus(status), output.DimText("(opens "+next+")"))
			}
			symbols := make([]string, 0, len(data))
			for symbol := range data {
				symbols = append(symbols, symbol)
			}
			sort.Strings(symbols)
			for _, symbol := range symbols {
				displayStock(output, symbol, period, data[symbol])
			}
			return nil
		},
	}
	cmd.Flags().StringP("period", "p", string(models.DefaultPeriod), "history period (1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)")
	return cmd
}

func displayStock(output *Output, symbol string, period models.Period, data tools.StockData) {
	s := data.HistoricalData
	output.Bold("%s (%s)", symbol, period)
	output.Printf("  Price:       %s  %s\n", utils.FormatUSD(s.PriceMetrics.CurrentPrice), output.FormatPercent(s.PriceMetrics.PriceChangePercent))
	output.Printf("  Range:       %s - %s\n", utils.FormatUSD(s.PriceMetrics.Low), utils.FormatUSD(s.PriceMetrics.High))
	output.Printf("  Volume:      %s\n", utils.FormatVolume(s.Volume))
	output.Printf("  Volatility:  %.2f%%\n", s.Volatility)
	output.Printf("  Returns:     1w %s  1mo %s  3mo %s\n",
		output.FormatPercent(s.Returns.Week), output.FormatPercent(s.Returns.Month), output.FormatPercent(s.Returns.Quarter))
	output.Printf("  Dates:       %s to %s\n", s.DateRange.Start, s.DateRange.End)

	info := data.StockInfo
	if info.MarketCap != nil {
		output.Printf("  Market Cap:  %s\n", utils.FormatCompact(*info.MarketCap))
	}
	if info.TrailingPE != nil {
		output.Printf("  P/E:         %.2f\n", *info.TrailingPE)
	}
	if info.RecommendationKey != nil {
		output.Printf("  Rating:      %s\n", *info.RecommendationKey)
	}
	output.Println()
}

func newIndicatorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators <symbol>",
		Short: "Show technical indicators for a symbol",
		Long: `Compute trend, RSI(14), support, resistance, volume trend and momentum
from the symbol's price history.`,
		Example: `  marketminds indicators NVDA --period 6mo`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			period, err := periodFlag(cmd)
			if err != nil {
				return reportError(output, err)
			}
			exec, err := app.executor(cmd.Context())
			if err != nil {
				return reportError(output, err)
			}

			ctx, cancel := requestContext(cmd.Context())
			defer cancel()
			result, err := exec.Indicators(ctx, args[0], period)
			if err != nil {
				return reportError(output, err)
			}
			if output.IsJSON() {
				return output.JSON(result)
			}

			rsi := "n/a"
			if result.RSI != nil {
				rsi = fmt.Sprintf("%.2f", *result.RSI)
			}
			output.Bold("%s indicators (%s)", strings.ToUpper(args[0]), period)
			output.Printf("  Trend:       %s\n", output.Trend(result.Trend))
			output.Printf("  RSI(14):     %s\n", rsi)
			output.Printf("  Support:     %s\n", utils.FormatUSD(result.Support))
			output.Printf("  Resistance:  %s\n", utils.FormatUSD(result.Resistance))
			output.Printf("  Volume:      %s\n", result.VolumeTrend)
			output.Printf("  Momentum:    %s\n", result.Momentum)
			return nil
		},
	}
	cmd.Flags().StringP("period", "p", string(models.DefaultPeriod), "history period")
	return cmd
}

func newCompareCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compare <symbol> <symbol> [symbol...]",
		Short:   "Compare symbols side by side",
		Example: `  marketminds compare AAPL MSFT GOOG --period 1y`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			period, err := periodFlag(cmd)
			if err != nil {
				return reportError(output, err)
			}
			exec, err := app.executor(cmd.Context())
			if err != nil {
				return reportError(output, err)
			}

			ctx, cancel := requestContext(cmd.Context())
			defer cancel()
			rows, err := exec.Compare(ctx, args, period)
			if err != nil {
				return reportError(output, err)
			}
			if output.IsJSON() {
				return output.JSON(rows)
			}

			table := NewTable(output, "SYMBOL", "PRICE", "CHANGE", "VOLATILITY", "1W", "1MO", "3MO", "TREND")
			for _, r := range rows {
				table.AddRow(
					r.Symbol,
					utils.FormatUSD(r.CurrentPrice),
					output.FormatPercent(r.PriceChangePercent),
					fmt.Sprintf("%.2f%%", r.Volatility),
					output.FormatPercent(r.Returns.Week),
					output.FormatPercent(r.Returns.Month),
					output.FormatPercent(r.Returns.Quarter),
					output.Trend(r.Trend),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringP("period", "p", string(models.DefaultPeriod), "history period")
	return cmd
}

func newNewsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "news <query>",
		Short:   "Search ingested news articles",
		Example: `  marketminds news "Apple earnings guidance"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			exec, err := app.executor(cmd.Context())
			if err != nil {
				return reportError(output, err)
			}

			ctx, cancel := requestContext(cmd.Context())
			defer cancel()
			docs := exec.News(ctx, strings.Join(args, " "))
			if output.IsJSON() {
				return output.JSON(docs)
			}
			if len(docs) == 0 {
				output.Dim("No matching articles")
				return nil
			}

			width, _ := cmd.Flags().GetInt("width")
			for i, d := range docs {
				title := strings.SplitN(d.PageContent, "\n", 2)[0]
				output.Bold("%d. %s", i+1, utils.TruncateString(title, width))
				if src, ok := d.Metadata["source"]; ok {
					output.Dim("   %v", src)
				}
				if url, ok := d.Metadata["url"]; ok {
					output.Dim("   %v", url)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("width", 100, "maximum title width")
	return cmd
}
