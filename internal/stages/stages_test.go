package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm/llmtest"
	"marketminds/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Category
		wantErr error
	}{
		{"json", `{"category": "news_based"}`, CategoryNewsBased, nil},
		{"fenced", "```json\n{\"category\": \"technical_analysis\"}\n```", CategoryTechnicalAnalysis, nil},
		{"bare label", "unrelated", CategoryUnrelated, nil},
		{"unknown label", `{"category": "weather"}`, "", apperrors.ErrUnknownCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.Text(tt.reply)
			got, err := NewClassifier(model, zerolog.Nop()).Classify(context.Background(), "What is AAPL at?")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			req := model.Requests()[0]
			assert.True(t, req.JSON)
			require.NotNil(t, req.Temperature)
			assert.Equal(t, 0.0, *req.Temperature)
			assert.Equal(t, "Question : What is AAPL at?", req.Messages[1].Content)
		})
	}
}

func TestClassifyPropagatesModelError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewClassifier(llmtest.New(llmtest.Reply{Err: boom}), zerolog.Nop()).Classify(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
}

func TestExtract(t *testing.T) {
	model := llmtest.Text(`{"symbols": ["aapl", " msft", "AAPL"], "period": "6MO", "metrics": ""}`)
	got, err := NewExtractor(model, zerolog.Nop()).Extract(context.Background(), "Compare apple and microsoft over six months")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)
	assert.Equal(t, models.Period6M, got.Period)
	assert.Empty(t, got.Metrics)
	assert.Contains(t, got.Hint(), "symbols: AAPL, MSFT")
}

func TestExtractDropsInvalidPeriod(t *testing.T) {
	model := llmtest.Text(`{"symbols": [], "period": "3w", "metrics": ["pe ratio"]}`)
	got, err := NewExtractor(model, zerolog.Nop()).Extract(context.Background(), "pe ratio?")
	require.NoError(t, err)
	assert.Empty(t, got.Symbols)
	assert.Equal(t, models.Period(""), got.Period)
	assert.Equal(t, []string{"pe ratio"}, got.Metrics)
	assert.False(t, got.IsEmpty())
}

func TestExtractRejectsProse(t *testing.T) {
	_, err := NewExtractor(llmtest.Text("I could not find anything"), zerolog.Nop()).Extract(context.Background(), "hi")
	assert.Error(t, err)
}

func TestFormulate(t *testing.T) {
	ctx := context.Background()
	history := []models.Message{models.HumanMessage("Tell me about AAPL"), models.AIMessage("AAPL is up.")}

	model := llmtest.Text("What is the RSI of AAPL?")
	got, err := NewFormulator(model, zerolog.Nop()).Formulate(ctx, history, "and its RSI?", "talked about AAPL")
	require.NoError(t, err)
	assert.Equal(t, "What is the RSI of AAPL?", got)

	msgs := model.Requests()[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "User question: and its RSI? \n\n Chat summary: talked about AAPL", msgs[1].Content)
	assert.Equal(t, "AAPL is up.", msgs[3].Content)

	got, err = NewFormulator(llmtest.Text("  "), zerolog.Nop()).Formulate(ctx, history, "and its RSI?", "")
	require.NoError(t, err)
	assert.Equal(t, "and its RSI?", got)
}

func TestRedirectorKeepsConfiguredTemperature(t *testing.T) {
	model := llmtest.Text("Hello! I specialize in investment questions.")
	got, err := NewRedirector(model, zerolog.Nop()).Respond(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, got, "investment")
	assert.Nil(t, model.Requests()[0].Temperature)

	_, err = NewRedirector(llmtest.Text(""), zerolog.Nop()).Respond(context.Background(), "hello")
	assert.ErrorIs(t, err, apperrors.ErrEmptyResponse)
}

func TestParseCategory(t *testing.T) {
	got, err := ParseCategory(" Stock_Specific ")
	require.NoError(t, err)
	assert.Equal(t, CategoryStockSpecific, got)

	_, err = ParseCategory("")
	assert.ErrorIs(t, err, apperrors.ErrUnknownCategory)
}
