package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm/llmtest"
	"marketminds/internal/models"
	"marketminds/internal/stages"
	"marketminds/internal/store"
	"marketminds/internal/tools"
)

type fakeTools struct {
	mu     sync.Mutex
	calls  []string
	result string
	err    error
}

func (f *fakeTools) ExecuteTool(_ context.Context, name string, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	if name == "unknown_tool" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnknownTool, name)
	}
	return f.result, nil
}

type fakeFormulator struct {
	mu    sync.Mutex
	query string
	calls int
}

func (f *fakeFormulator) Formulate(_ context.Context, _ []models.Message, input, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.query == "" {
		return input, nil
	}
	return f.query, nil
}

type fakeExtractor struct {
	ctx stages.Context
	err error
}

func (f *fakeExtractor) Extract(context.Context, string) (stages.Context, error) {
	return f.ctx, f.err
}

func toolCall(id, name string) models.ToolCall {
	return models.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(`{}`)}
}

type fixture struct {
	agent      *llmtest.Model
	text       *llmtest.Model
	tools      *fakeTools
	formulator *fakeFormulator
	service    *Service
	store      CheckpointStore
}

func newFixture(t *testing.T, agent *llmtest.Model, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		agent:      agent,
		text:       llmtest.New(),
		tools:      &fakeTools{result: `{"ok":true}`},
		formulator: &fakeFormulator{},
		store:      NewMemoryCheckpoints(),
	}
	f.text.Repeat = &llmtest.Reply{Content: "summary"}
	graph := NewGraph(GraphDeps{
		Agent:         agent,
		Text:          f.text,
		Tools:         f.tools,
		ToolSpecs:     tools.Definitions(),
		Formulator:    f.formulator,
		IsRecoverable: tools.IsRecoverable,
	}, opts, zerolog.Nop())
	f.service = NewService(graph, f.store, zerolog.Nop())
	return f
}

func TestFirstTurnWithoutTools(t *testing.T) {
	f := newFixture(t, llmtest.Text("AAPL trades at 190."), DefaultOptions())
	ctx := context.Background()

	answer, err := f.service.Run(ctx, "s1", "What is AAPL at?")
	require.NoError(t, err)
	assert.Equal(t, "AAPL trades at 190.", answer)
	assert.Equal(t, 0, f.formulator.calls, "empty history skips formulation")

	state, err := f.service.State(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, models.RoleHuman, state.Messages[0].Role)
	assert.Equal(t, "What is AAPL at?", state.Messages[0].Content)
	assert.Equal(t, "What is AAPL at?", state.FormattedQuery)

	req := f.agent.Requests()[0]
	assert.Len(t, req.Tools, 3)
	assert.Equal(t, models.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "What is AAPL at?", req.Messages[1].Content)
}

func TestToolLoopPrunesToolTraffic(t *testing.T) {
	agent := llmtest.New(
		llmtest.Reply{ToolCalls: []models.ToolCall{toolCall("c1", tools.RetrieveStocksData), toolCall("c2", tools.RetrieveNewsData)}},
		llmtest.Reply{Content: "Here is the data."},
	)
	f := newFixture(t, agent, DefaultOptions())
	ctx := context.Background()

	answer, err := f.service.Run(ctx, "s1", "Compare AAPL and MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Here is the data.", answer)
	assert.Equal(t, []string{tools.RetrieveStocksData, tools.RetrieveNewsData}, f.tools.calls)

	second := agent.Requests()[1].Messages
	var toolMsgs []models.Message
	for _, m := range second {
		if m.Role == models.RoleTool {
			toolMsgs = append(toolMsgs, m)
		}
	}
	require.Len(t, toolMsgs, 2)
	assert.Equal(t, "c1", toolMsgs[0].ToolCallID)
	assert.Equal(t, "c2", toolMsgs[1].ToolCallID)

	state, err := f.service.State(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 2, "tool messages and empty AI message are pruned")
	assert.Equal(t, "Here is the data.", state.Messages[1].Content)
}

func TestRecoverableToolErrorsReturnToModel(t *testing.T) {
	agent := llmtest.New(
		llmtest.Reply{ToolCalls: []models.ToolCall{toolCall("c1", "unknown_tool")}},
		llmtest.Reply{Content: "Sorry, I could not use that tool."},
	)
	f := newFixture(t, agent, DefaultOptions())

	answer, err := f.service.Run(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Contains(t, answer, "Sorry")

	msgs := agent.Requests()[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.RoleTool, last.Role)
	assert.Contains(t, last.Content, "Error executing tool unknown_tool")
}

func TestFinanceErrorAbortsTurnWithoutPersisting(t *testing.T) {
	agent := llmtest.New(
		llmtest.Reply{Content: "First answer."},
		llmtest.Reply{ToolCalls: []models.ToolCall{toolCall("c1", tools.RetrieveStockIndicator)}},
	)
	f := newFixture(t, agent, DefaultOptions())
	ctx := context.Background()

	_, err := f.service.Run(ctx, "s1", "hello")
	require.NoError(t, err)
	before, err := f.service.State(ctx, "s1")
	require.NoError(t, err)

	f.tools.err = apperrors.NewInvalidStockSymbolError("ZZZZ")
	reply := f.service.Respond(ctx, "s1", "indicators for ZZZZ")
	require.Error(t, reply.Err)
	assert.Contains(t, reply.Text, "**ZZZZ**")

	after, err := f.service.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before.Messages, after.Messages, "failed turn leaves the checkpoint untouched")
}

func TestRespondHidesInternalErrors(t *testing.T) {
	f := newFixture(t, llmtest.New(llmtest.Reply{Err: errors.New("provider exploded: key=secret")}), DefaultOptions())
	reply := f.service.Respond(context.Background(), "s1", "hi")
	require.Error(t, reply.Err)
	assert.Equal(t, apperrors.GenericFailureMessage, reply.Text)
}

func TestMaxToolHops(t *testing.T) {
	agent := llmtest.New()
	agent.Repeat = &llmtest.Reply{ToolCalls: []models.ToolCall{toolCall("loop", tools.RetrieveNewsData)}}
	opts := DefaultOptions()
	opts.MaxToolHops = 3
	f := newFixture(t, agent, opts)

	_, err := f.service.Run(context.Background(), "s1", "loop forever")
	assert.ErrorIs(t, err, apperrors.ErrMaxToolHops)
	assert.Len(t, f.tools.calls, 3)

	state, err := f.service.State(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMaxSteps(t *testing.T) {
	agent := llmtest.New()
	agent.Repeat = &llmtest.Reply{ToolCalls: []models.ToolCall{toolCall("loop", tools.RetrieveNewsData)}}
	opts := DefaultOptions()
	opts.MaxToolHops = 100
	opts.MaxSteps = 6
	f := newFixture(t, agent, opts)

	_, err := f.service.Run(context.Background(), "s1", "loop")
	assert.ErrorIs(t, err, apperrors.ErrMaxSteps)
}

func TestSummarizationKeepsLastMessages(t *testing.T) {
	agent := llmtest.Text("one", "two", "three")
	f := newFixture(t, agent, DefaultOptions())
	f.formulator.query = "standalone follow-up"
	ctx := context.Background()

	for i, q := range []string{"q1", "q2"} {
		_, err := f.service.Run(ctx, "s1", q)
		require.NoError(t, err, "turn %d", i)
	}
	state, err := f.service.State(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 4, "four messages do not trigger a summary")
	assert.Empty(t, state.Summary)
	assert.Equal(t, 0, f.text.Calls())

	_, err = f.service.Run(ctx, "s1", "q3")
	require.NoError(t, err)
	state, err = f.service.State(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "q3", state.Messages[0].Content)
	assert.Equal(t, "three", state.Messages[1].Content)
	assert.Equal(t, "summary", state.Summary)

	summaryReq := f.text.Requests()[0].Messages
	assert.Equal(t, "Create a summary of the conversation above.", summaryReq[len(summaryReq)-1].Content)

	third := agent.Requests()[2].Messages
	assert.Equal(t, "Standalone version of the latest question: standalone follow-up", third[1].Content)
}

func TestSummarizeThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		seeded    int
		wantLen   int
		summarize bool
	}{
		{name: "three messages after turn", seeded: 1, wantLen: 3},
		{name: "four messages after turn", seeded: 2, wantLen: 4},
		{name: "five messages after turn", seeded: 3, wantLen: 2, summarize: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, llmtest.Text("answer"), DefaultOptions())
			ctx := context.Background()

			var seeded []models.Message
			for i := 0; i < tt.seeded; i++ {
				if i%2 == 0 {
					seeded = append(seeded, models.HumanMessage(fmt.Sprintf("h%d", i)))
				} else {
					seeded = append(seeded, models.AIMessage(fmt.Sprintf("a%d", i)))
				}
			}
			require.NoError(t, f.store.Put(ctx, &State{SessionID: "s1", Messages: seeded}))

			_, err := f.service.Run(ctx, "s1", "next")
			require.NoError(t, err)

			state, err := f.service.State(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, state.Messages, tt.wantLen)
			assert.Equal(t, "answer", state.Messages[len(state.Messages)-1].Content)
			if tt.summarize {
				assert.Equal(t, "summary", state.Summary)
				assert.Equal(t, 1, f.text.Calls())
				assert.Equal(t, "next", state.Messages[0].Content)
			} else {
				assert.Empty(t, state.Summary)
				assert.Equal(t, 0, f.text.Calls())
			}
		})
	}
}

func (s *Service) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func TestResetReleasesSessionLock(t *testing.T) {
	agent := llmtest.New()
	agent.Repeat = &llmtest.Reply{Content: "answer"}
	f := newFixture(t, agent, DefaultOptions())
	ctx := context.Background()

	_, err := f.service.Run(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, f.service.lockCount(), "finished turns keep no lock")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, f.service.Reset(ctx, "s1"))
				return
			}
			_, err := f.service.Run(ctx, "s1", fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, f.service.Reset(ctx, "s1"))
	assert.Equal(t, 0, f.service.lockCount())
}

func TestSummaryIsExtendedAndInjected(t *testing.T) {
	agent := llmtest.Text("a1", "a2", "a3", "a4")
	f := newFixture(t, agent, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, &State{
		SessionID: "s1",
		Summary:   "earlier talk",
		Messages: []models.Message{
			models.HumanMessage("h1"), models.AIMessage("a0"),
			models.HumanMessage("h2"), models.AIMessage("a00"),
		},
	}))

	_, err := f.service.Run(ctx, "s1", "next")
	require.NoError(t, err)

	prompt := agent.Requests()[0].Messages
	assert.Equal(t, "Summary of conversation earlier: earlier talk", prompt[1].Content)

	summaryReq := f.text.Requests()[0].Messages
	assert.Equal(t,
		"This is summary of the conversation to date: earlier talk\n\nExtend the summary by taking into account the new messages above:",
		summaryReq[len(summaryReq)-1].Content)
}

func TestExtractContextHint(t *testing.T) {
	agent := llmtest.Text("ok")
	f := newFixture(t, agent, DefaultOptions())
	opts := DefaultOptions()
	opts.ExtractContext = true
	graph := NewGraph(GraphDeps{
		Agent:     agent,
		Text:      f.text,
		Tools:     f.tools,
		Extractor: &fakeExtractor{ctx: stages.Context{Symbols: []string{"AAPL"}, Period: models.Period3M}},
	}, opts, zerolog.Nop())

	_, answer, stats, err := graph.Run(context.Background(), NewState("s"), "apple over 3 months")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, 4, stats.Steps)
	prompt := agent.Requests()[0].Messages
	assert.Contains(t, prompt[1].Content, "symbols: AAPL")
	assert.Contains(t, prompt[1].Content, "period: 3mo")
}

func TestExtractionFailureDoesNotFailTurn(t *testing.T) {
	agent := llmtest.Text("ok")
	opts := DefaultOptions()
	opts.ExtractContext = true
	graph := NewGraph(GraphDeps{
		Agent:     agent,
		Text:      llmtest.New(),
		Tools:     &fakeTools{},
		Extractor: &fakeExtractor{err: errors.New("bad json")},
	}, opts, zerolog.Nop())

	_, answer, _, err := graph.Run(context.Background(), NewState("s"), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestEmptyInputRejected(t *testing.T) {
	f := newFixture(t, llmtest.New(), DefaultOptions())
	_, err := f.service.Run(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
	assert.Equal(t, 0, f.agent.Calls())
}

func TestSessionsAreIsolated(t *testing.T) {
	agent := llmtest.New()
	agent.Repeat = &llmtest.Reply{Content: "answer"}
	f := newFixture(t, agent, DefaultOptions())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", i%2)
			_, err := f.service.Run(ctx, session, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"s0", "s1"} {
		state, err := f.service.State(ctx, id)
		require.NoError(t, err)
		require.Len(t, state.Messages, 4)
		for _, m := range state.Messages {
			if m.Role == models.RoleHuman {
				n := strings.TrimPrefix(m.Content, "question ")
				assert.Equal(t, id[1:], fmt.Sprint(int(n[0]-'0')%2), "message leaked across sessions")
			}
		}
	}

	sessions, err := f.service.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, f.service.Reset(ctx, "s0"))
	state, err := f.service.State(ctx, "s0")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryCheckpointsReturnCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCheckpoints()
	original := &State{SessionID: "s", Messages: []models.Message{models.HumanMessage("hi")}}
	require.NoError(t, m.Put(ctx, original))

	original.Messages[0].Content = "mutated"
	got, err := m.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Messages[0].Content)

	got.Messages[0].Content = "mutated again"
	again, err := m.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
}

func TestSQLiteCheckpointsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := NewSQLiteCheckpoints(db)

	missing, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	call := models.AIMessage("")
	call.ToolCalls = []models.ToolCall{toolCall("c1", tools.RetrieveNewsData)}
	state := &State{
		SessionID: "s",
		Summary:   "sum",
		Messages:  []models.Message{models.HumanMessage("hi"), call},
		Context:   &stages.Context{Symbols: []string{"AAPL"}, Period: models.Period1Y},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.Put(ctx, state))

	got, err := c.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, state.Summary, got.Summary)
	assert.Equal(t, state.Messages[0], got.Messages[0])
	assert.JSONEq(t, `{}`, string(got.Messages[1].ToolCalls[0].Arguments))
	assert.Equal(t, []string{"AAPL"}, got.Context.Symbols)

	sessions, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, c.Delete(ctx, "s"))
	got, err = c.Get(ctx, "s")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func genMessage() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 3),
		gen.AlphaString(),
		gen.Bool(),
	).Map(func(values []interface{}) models.Message {
		roles := []models.Role{models.RoleHuman, models.RoleAI, models.RoleSystem, models.RoleTool}
		m := models.NewMessage(roles[values[0].(int)], values[1].(string))
		if m.Role == models.RoleAI && values[2].(bool) {
			m.ToolCalls = []models.ToolCall{toolCall(m.ID, tools.RetrieveNewsData)}
		}
		return m
	})
}

// Property: pruning removes exactly tool messages and empty AI messages and is idempotent.
func TestDeleteMessagesProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("pruned history has no tool or empty AI messages", prop.ForAll(
		func(msgs []models.Message) bool {
			s := &State{Messages: msgs}
			s = s.Clone()
			s.Apply(deleteMessages(s))
			for _, m := range s.Messages {
				if m.Role == models.RoleTool || (m.Role == models.RoleAI && m.Content == "") {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genMessage()),
	))

	properties.Property("pruning is idempotent and keeps order", prop.ForAll(
		func(msgs []models.Message) bool {
			s := (&State{Messages: msgs}).Clone()
			s.Apply(deleteMessages(s))
			once := models.CloneMessages(s.Messages)
			s.Apply(deleteMessages(s))
			if len(once) != len(s.Messages) {
				return false
			}
			j := 0
			for _, m := range msgs {
				if j < len(once) && m.ID == once[j].ID {
					j++
				}
			}
			return j == len(once)
		},
		gen.SliceOf(genMessage()),
	))

	properties.Property("summarize leaves at most keep messages", prop.ForAll(
		func(msgs []models.Message, keep int) bool {
			text := llmtest.New()
			text.Repeat = &llmtest.Reply{Content: "s"}
			g := NewGraph(GraphDeps{Text: text}, Options{KeepMessages: keep}, zerolog.Nop())
			s := (&State{Messages: msgs}).Clone()
			u, err := g.summarize(context.Background(), s)
			if err != nil {
				return false
			}
			s.Apply(u)
			want := keep
			if len(msgs) < want {
				want = len(msgs)
			}
			if len(s.Messages) != want {
				return false
			}
			for i := range s.Messages {
				if s.Messages[i].ID != msgs[len(msgs)-want+i].ID {
					return false
				}
			}
			return s.Summary == "s"
		},
		gen.SliceOf(genMessage()),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
