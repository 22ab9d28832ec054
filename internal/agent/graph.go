package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"marketminds/internal/config"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/llm"
	"marketminds/internal/logging"
	"marketminds/internal/models"
	"marketminds/internal/stages"
)

// Node names a step of the conversation graph.
type Node string

const (
	NodeFormulateQuery Node = "formulate_query"
	NodeExtractContext Node = "extract_context"
	NodeAgent          Node = "agent"
	NodeTools          Node = "tools"
	NodeDeleteMessages Node = "delete_messages"
	NodeSummarize      Node = "summarize_conversation"
	NodeEnd            Node = "__end__"
)

const agentPrompt = "You are an expert in stock data and financial news data analysis. " +
	"Give answers in a professional tone. " +
	"Provide a detailed and insightful answer. " +
	"Give answers in a structured format and use tables to represent data when applicable."

// ToolExecutor runs a named tool with JSON arguments.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Formulator rewrites a follow-up into a standalone question.
type Formulator interface {
	Formulate(ctx context.Context, history []models.Message, input, summary string) (string, error)
}

// Extractor pulls structured context out of a question.
type Extractor interface {
	Extract(ctx context.Context, question string) (stages.Context, error)
}

// Options bounds and toggles the graph.
type Options struct {
	MaxToolHops        int
	MaxSteps           int
	SummarizeThreshold int
	KeepMessages       int
	ExtractContext     bool
}

// OptionsFromConfig maps workflow configuration to graph options.
func OptionsFromConfig(cfg config.WorkflowConfig) Options {
	return Options{
		MaxToolHops:        cfg.MaxToolHops,
		MaxSteps:           cfg.MaxSteps,
		SummarizeThreshold: cfg.SummarizeThreshold,
		KeepMessages:       cfg.KeepMessages,
		ExtractContext:     cfg.ExtractContext,
	}
}

// DefaultOptions returns the stock graph bounds.
func DefaultOptions() Options {
	return Options{MaxToolHops: 8, MaxSteps: 50, SummarizeThreshold: 4, KeepMessages: 2}
}

// Graph executes one user turn over a working copy of the state.
type Graph struct {
	agent         llm.Model
	text          llm.Model
	tools         ToolExecutor
	toolSpecs     []llm.ToolSpec
	formulator    Formulator
	extractor     Extractor
	isRecoverable func(error) bool
	opts          Options
	logger        zerolog.Logger
}

// GraphDeps wires the graph's collaborators.
type GraphDeps struct {
	// Agent is the tool-capable model.
	Agent llm.Model
	// Text serves summarization.
	Text       llm.Model
	Tools      ToolExecutor
	ToolSpecs  []llm.ToolSpec
	Formulator Formulator
	// Extractor is optional; it runs only when Options.ExtractContext is set.
	Extractor Extractor
	// IsRecoverable selects tool errors returned to the model instead of
	// failing the turn. Nil treats every tool error as fatal.
	IsRecoverable func(error) bool
}

// NewGraph creates a graph.
func NewGraph(deps GraphDeps, opts Options, logger zerolog.Logger) *Graph {
	def := DefaultOptions()
	if opts.MaxToolHops <= 0 {
		opts.MaxToolHops = def.MaxToolHops
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}
	if opts.SummarizeThreshold <= 0 {
		opts.SummarizeThreshold = def.SummarizeThreshold
	}
	if opts.KeepMessages < 0 {
		opts.KeepMessages = def.KeepMessages
	}
	return &Graph{
		agent:         deps.Agent,
		text:          deps.Text,
		tools:         deps.Tools,
		toolSpecs:     deps.ToolSpecs,
		formulator:    deps.Formulator,
		extractor:     deps.Extractor,
		isRecoverable: deps.IsRecoverable,
		opts:          opts,
		logger:        logger,
	}
}

// TurnStats describes a completed turn.
type TurnStats struct {
	Steps      int
	Hops       int
	Summarized bool
}

// Run executes one turn for input on a copy of state. The returned state is
// the full next state; state itself is never modified. The answer is the
// content of the AI message that ended the tool loop.
func (g *Graph) Run(ctx context.Context, state *State, input string) (*State, string, TurnStats, error) {
	work := state.Clone()
	work.Input = input
	work.FormattedQuery = ""
	work.Context = nil

	var stats TurnStats
	var answer string
	node := NodeFormulateQuery
	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			return nil, "", stats, err
		}
		stats.Steps++
		if stats.Steps > g.opts.MaxSteps {
			return nil, "", stats, apperrors.ErrMaxSteps
		}

		update, err := g.step(ctx, node, work)
		if err != nil {
			return nil, "", stats, apperrors.NewNodeError(string(node), err)
		}
		work.Apply(update)

		next := g.route(node, work)
		switch {
		case node == NodeAgent && next == NodeTools:
			stats.Hops++
			if stats.Hops > g.opts.MaxToolHops {
				return nil, "", stats, apperrors.ErrMaxToolHops
			}
		case node == NodeAgent:
			if last, ok := work.LastAI(); ok {
				answer = last.Content
			}
		case node == NodeSummarize:
			stats.Summarized = true
		}
		node = next
	}

	if answer == "" {
		return nil, "", stats, apperrors.ErrEmptyResponse
	}
	return work, answer, stats, nil
}

func (g *Graph) step(ctx context.Context, node Node, state *State) (Update, error) {
	logger := logging.WithNode(g.logger, string(node))
	logger.Debug().Int("messages", len(state.Messages)).Msg("Entering node")

	switch node {
	case NodeFormulateQuery:
		return g.formulateQuery(ctx, state)
	case NodeExtractContext:
		return g.extractContext(ctx, state, logger)
	case NodeAgent:
		return g.callAgent(ctx, state)
	case NodeTools:
		return g.runTools(ctx, state, logger)
	case NodeDeleteMessages:
		return deleteMessages(state), nil
	case NodeSummarize:
		return g.summarize(ctx, state)
	default:
		return Update{}, fmt.Errorf("unknown node %q", node)
	}
}

func (g *Graph) route(node Node, state *State) Node {
	switch node {
	case NodeFormulateQuery:
		if g.opts.ExtractContext && g.extractor != nil {
			return NodeExtractContext
		}
		return NodeAgent
	case NodeExtractContext:
		return NodeAgent
	case NodeAgent:
		if n := len(state.Messages); n > 0 && state.Messages[n-1].HasToolCalls() {
			return NodeTools
		}
		return NodeDeleteMessages
	case NodeTools:
		return NodeAgent
	case NodeDeleteMessages:
		if len(state.Messages) > g.opts.SummarizeThreshold {
			return NodeSummarize
		}
		return NodeEnd
	default:
		return NodeEnd
	}
}

func (g *Graph) formulateQuery(ctx context.Context, state *State) (Update, error) {
	query := state.Input
	if len(state.Messages) > 0 && g.formulator != nil {
		var err error
		query, err = g.formulator.Formulate(ctx, state.Messages, state.Input, state.Summary)
		if err != nil {
			return Update{}, err
		}
	}
	g.logger.Info().Str("formatted_query", query).Msg("Formatted query")
	return Update{
		FormattedQuery: &query,
		Append:         []models.Message{models.HumanMessage(state.Input)},
	}, nil
}

// extractContext is an enrichment; a failed extraction leaves the turn
// without hints.
func (g *Graph) extractContext(ctx context.Context, state *State, logger zerolog.Logger) (Update, error) {
	extracted, err := g.extractor.Extract(ctx, state.FormattedQuery)
	if err != nil {
		if ctx.Err() != nil {
			return Update{}, ctx.Err()
		}
		logger.Warn().Err(err).Msg("Context extraction failed")
		return Update{}, nil
	}
	return Update{Context: &extracted}, nil
}

// agentPromptMessages builds the model input for the agent node.
func agentPromptMessages(state *State) []models.Message {
	msgs := []models.Message{models.SystemMessage(agentPrompt)}
	if state.Summary != "" {
		msgs = append(msgs, models.SystemMessage("Summary of conversation earlier: "+state.Summary))
	}
	if q := state.FormattedQuery; q != "" && q != state.Input {
		msgs = append(msgs, models.SystemMessage("Standalone version of the latest question: "+q))
	}
	if hint := state.Context.Hint(); hint != "" {
		msgs = append(msgs, models.SystemMessage(hint))
	}
	return append(msgs, models.StripUnansweredToolCalls(state.Messages)...)
}

func (g *Graph) callAgent(ctx context.Context, state *State) (Update, error) {
	resp, err := g.agent.Chat(ctx, llm.Request{
		Messages: agentPromptMessages(state),
		Tools:    g.toolSpecs,
	})
	if err != nil {
		return Update{}, err
	}
	return Update{Append: []models.Message{resp.Message}}, nil
}

func (g *Graph) runTools(ctx context.Context, state *State, logger zerolog.Logger) (Update, error) {
	last := state.Messages[len(state.Messages)-1]
	var out []models.Message
	for _, call := range last.ToolCalls {
		result, err := g.tools.ExecuteTool(ctx, call.Name, call.Arguments)
		if err != nil {
			if g.isRecoverable == nil || !g.isRecoverable(err) {
				return Update{}, err
			}
			logger.Warn().Err(err).Str("tool", call.Name).Msg("Tool error returned to model")
			result = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
		}
		out = append(out, models.ToolMessage(call.ID, call.Name, result))
	}
	return Update{Append: out}, nil
}

// deleteMessages marks every tool result and every empty AI message for removal.
func deleteMessages(state *State) Update {
	var remove []string
	for _, m := range state.Messages {
		if m.Role == models.RoleTool || (m.Role == models.RoleAI && m.Content == "") {
			remove = append(remove, m.ID)
		}
	}
	return Update{Remove: remove}
}

// summaryInstruction asks for a new summary or an extension of summary.
func summaryInstruction(summary string) string {
	if summary != "" {
		return "This is summary of the conversation to date: " + summary +
			"\n\nExtend the summary by taking into account the new messages above:"
	}
	return "Create a summary of the conversation above."
}

func (g *Graph) summarize(ctx context.Context, state *State) (Update, error) {
	msgs := append(models.StripUnansweredToolCalls(state.Messages), models.HumanMessage(summaryInstruction(state.Summary)))
	resp, err := g.text.Chat(ctx, llm.Request{Messages: msgs})
	if err != nil {
		return Update{}, err
	}
	summary := resp.Message.Content
	g.logger.Info().Int("chars", len(summary)).Msg("Conversation summarized")

	var remove []string
	if keep := g.opts.KeepMessages; len(state.Messages) > keep {
		for _, m := range state.Messages[:len(state.Messages)-keep] {
			remove = append(remove, m.ID)
		}
	}
	return Update{Summary: &summary, Remove: remove}, nil
}
