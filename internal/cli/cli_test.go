package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketminds/internal/agent"
	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm/llmtest"
	"marketminds/internal/models"
)

type stubProvider struct {
	candles map[string][]models.Candle
}

func (p *stubProvider) History(_ context.Context, symbol string, _ models.Period) ([]models.Candle, error) {
	return p.candles[symbol], nil
}

func (p *stubProvider) Info(_ context.Context, _ string) (models.StockInfo, error) {
	capital := 3.1e12
	return models.StockInfo{MarketCap: &capital}, nil
}

type stubSearcher struct {
	docs []models.Document
}

func (s *stubSearcher) Search(_ context.Context, _ string, k, _ int) ([]models.Document, error) {
	if k < len(s.docs) {
		return s.docs[:k], nil
	}
	return s.docs, nil
}

type constantEmbedder struct{}

func (constantEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i + 1)}
	}
	return out, nil
}

func candles(n int, base, step float64) []models.Candle {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := base + float64(i)*step
		out[i] = models.Candle{Timestamp: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app := &App{
		Config: config.Default(t.TempDir()),
		Logger: zerolog.Nop(),
		Provider: &stubProvider{candles: map[string][]models.Candle{
			"AAPL": candles(60, 100, 1),
			"MSFT": candles(60, 300, -1),
		}},
		Searcher: &stubSearcher{docs: []models.Document{
			{ID: "1", Content: "Apple raises guidance\n\nDetails", Metadata: map[string]any{"source": "wire"}},
		}},
		Checkpoints: agent.NewMemoryCheckpoints(),
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func run(t *testing.T, app *App, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "version", "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
}

func TestAskPrintsAnswer(t *testing.T) {
	app := newTestApp(t)
	app.AgentModel = llmtest.Text("AAPL gained 59% this month.")
	app.TextModel = llmtest.New()

	out, err := run(t, app, "", "ask", "--json", "--session", "s-1", "How", "did", "AAPL", "do?")
	require.NoError(t, err)

	var got turnResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "AAPL gained 59% this month.", got.Answer)

	state, err := app.Checkpoints.Get(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "How did AAPL do?", state.Messages[0].Content)
}

func TestAskHidesInternalErrors(t *testing.T) {
	app := newTestApp(t)
	app.AgentModel = llmtest.New(llmtest.Reply{Err: errors.New("backend down at 10.0.0.7")})
	app.TextModel = llmtest.New()

	out, err := run(t, app, "", "ask", "hello")
	require.ErrorIs(t, err, apperrors.ErrTurnFailed)
	assert.NotContains(t, err.Error(), "10.0.0.7")
	assert.Contains(t, out, apperrors.GenericFailureMessage)
	assert.NotContains(t, out, "backend down")
}

func TestAskJSONHidesInternalErrors(t *testing.T) {
	app := newTestApp(t)
	app.AgentModel = llmtest.New(llmtest.Reply{Err: errors.New("backend down at 10.0.0.7")})
	app.TextModel = llmtest.New()

	out, err := run(t, app, "", "ask", "--json", "hello")
	require.ErrorIs(t, err, apperrors.ErrTurnFailed)
	assert.NotContains(t, err.Error(), "10.0.0.7")

	var got turnResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, apperrors.GenericFailureMessage, got.Answer)
	assert.Equal(t, "internal", got.Error)
	assert.NotContains(t, out, "10.0.0.7")
}

func TestChatSession(t *testing.T) {
	app := newTestApp(t)
	app.AgentModel = llmtest.Text("Hello, ask me about stocks.")
	app.TextModel = llmtest.New()

	out, err := run(t, app, "hi\n/sessions\n/bogus\n/exit\nnever read\n", "chat", "--session", "chat-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, ask me about stocks.")
	assert.Contains(t, out, "chat-1")
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Len(t, app.AgentModel.(*llmtest.Model).Requests(), 1)
}

func TestChatReset(t *testing.T) {
	app := newTestApp(t)
	app.AgentModel = llmtest.Text("First.")
	app.TextModel = llmtest.New()

	_, err := run(t, app, "hi\n/reset\n", "chat", "--session", "r-1")
	require.NoError(t, err)

	state, err := app.Checkpoints.Get(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStockJSON(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "stock", "aapl", "--period", "3mo", "--json")
	require.NoError(t, err)

	var got map[string]struct {
		HistoricalData struct {
			PriceMetrics struct {
				CurrentPrice float64 `json:"current_price"`
			} `json:"price_metrics"`
		} `json:"historical_data"`
		StockInfo models.StockInfo `json:"stock_info"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Contains(t, got, "AAPL")
	assert.Equal(t, 159.0, got["AAPL"].HistoricalData.PriceMetrics.CurrentPrice)
	require.NotNil(t, got["AAPL"].StockInfo.MarketCap)
}

func TestStockText(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "stock", "AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL (1mo)")
	assert.Contains(t, out, "$159.00")
	assert.Contains(t, out, "3.10T")
}

func TestStockUnknownSymbol(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "stock", "ZZZZ")
	var invalid *apperrors.InvalidStockSymbolError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, out, "**ZZZZ**")
}

func TestIndicatorsRejectsBadPeriod(t *testing.T) {
	_, err := run(t, newTestApp(t), "", "indicators", "AAPL", "--period", "7w")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestIndicatorsJSON(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "indicators", "AAPL", "--json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bullish", got["trend"])
	assert.Equal(t, "positive", got["momentum"])
}

func TestCompare(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "compare", "MSFT", "AAPL")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "AAPL"), "best performer first: %q", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "MSFT"))
}

func TestCompareNeedsTwoSymbols(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "compare", "AAPL")
	var insufficient *apperrors.InsufficientStockSymbolsError
	require.ErrorAs(t, err, &insufficient)
	assert.Contains(t, out, "at least two")
}

func TestNews(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "news", "apple", "guidance")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Apple raises guidance")
	assert.Contains(t, out, "wire")
}

func TestClassifyRespond(t *testing.T) {
	app := newTestApp(t)
	app.TextModel = llmtest.Text(`{"category": "unrelated"}`, "I can only help with stocks and market news.")

	out, err := run(t, app, "", "classify", "--respond", "--json", "Who", "won", "the", "match?")
	require.NoError(t, err)

	var got classifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "unrelated", string(got.Category))
	assert.Equal(t, "I can only help with stocks and market news.", got.Response)
}

func TestExtract(t *testing.T) {
	app := newTestApp(t)
	app.TextModel = llmtest.Text(`{"symbols": ["aapl", "msft"], "period": "1y", "metrics": ["pe ratio"]}`)

	out, err := run(t, app, "", "extract", "Compare", "AAPL", "and", "MSFT")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL, MSFT")
	assert.Contains(t, out, "1y")
	assert.Contains(t, out, "pe ratio")
}

func TestIngest(t *testing.T) {
	app := newTestApp(t)
	app.Embedder = constantEmbedder{}

	dir := t.TempDir()
	articles := `[{"title": "Apple beats", "content": "<p>Record <b>iPhone</b> sales</p>", "url": "https://example.com/a"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch-1.json"), []byte(articles), 0o644))

	out, err := run(t, app, "", "ingest", dir, "--json")
	require.NoError(t, err)
	var report struct {
		Files     int `json:"files"`
		Documents int `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Documents)

	out, err = run(t, app, "", "ingest", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "batch-1.json")
}

func TestConfigValidate(t *testing.T) {
	out, err := run(t, newTestApp(t), "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}
