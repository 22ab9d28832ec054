package cli

import (
	"bufio"
	"context"
	"strings"

	"github.com/spf13/cobra"

	"marketminds/internal/agent"
	apperrors "marketminds/internal/errors"
	"marketminds/internal/store"
)

// addChatCommands adds the conversational commands.
func addChatCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newChatCmd(app))
	rootCmd.AddCommand(newAskCmd(app))
	rootCmd.AddCommand(newSessionsCmd(app))
}

// turnResult is the JSON form of one answered turn.
type turnResult struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Error     string `json:"error,omitempty"`
}

func newAskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Run one conversation turn and print the answer.

Pass --session to continue an earlier conversation.`,
		Example: `  marketminds ask "How did AAPL do over the last 3 months?"
  marketminds ask --session 6f1c... "And compared to MSFT?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.agentService(cmd.Context())
			if err != nil {
				output.Error("Failed to start the assistant: %v", err)
				return err
			}

			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				sessionID = agent.NewSessionID()
			}

			reply := runTurn(cmd.Context(), app, svc, sessionID, strings.Join(args, " "))
			printReply(output, sessionID, reply)
			return turnError(reply)
		},
	}
	cmd.Flags().StringP("session", "s", "", "session ID to continue")
	return cmd
}

func newChatCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation with the assistant.

Commands inside the chat:
  /new        start a new session
  /reset      forget the current session
  /sessions   list stored sessions
  /exit       leave the chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.agentService(cmd.Context())
			if err != nil {
				output.Error("Failed to start the assistant: %v", err)
				return err
			}

			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				sessionID = agent.NewSessionID()
			}
			if !output.IsJSON() {
				output.Bold("Market Minds")
				output.Dim("Session %s. Type /exit to leave.", sessionID)
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				if !output.IsJSON() {
					output.Printf("%s ", output.Cyan("You:"))
				}
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				if strings.HasPrefix(line, "/") {
					next, quit, err := chatCommand(cmd.Context(), output, svc, sessionID, line)
					if err != nil {
						output.Error("%v", err)
					}
					if quit {
						return nil
					}
					sessionID = next
					continue
				}

				reply := runTurn(cmd.Context(), app, svc, sessionID, line)
				printReply(output, sessionID, reply)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringP("session", "s", "", "session ID to resume")
	return cmd
}

// chatCommand handles a slash command and returns the session to continue with.
func chatCommand(ctx context.Context, output *Output, svc *agent.Service, sessionID, line string) (string, bool, error) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/exit", "/quit":
		return sessionID, true, nil
	case "/new":
		next := agent.NewSessionID()
		output.Info("New session %s", next)
		return next, false, nil
	case "/reset":
		if err := svc.Reset(ctx, sessionID); err != nil {
			return sessionID, false, err
		}
		output.Info("Session %s cleared", sessionID)
		return sessionID, false, nil
	case "/sessions":
		return sessionID, false, printSessions(ctx, output, svc.Sessions)
	default:
		output.Warning("Unknown command %s (try /new, /reset, /sessions, /exit)", line)
		return sessionID, false, nil
	}
}

func runTurn(ctx context.Context, app *App, svc *agent.Service, sessionID, input string) agent.Reply {
	ctx, cancel := app.turnContext(ctx)
	defer cancel()
	return svc.Respond(ctx, sessionID, input)
}

func printReply(output *Output, sessionID string, reply agent.Reply) {
	if output.IsJSON() {
		res := turnResult{SessionID: sessionID, Answer: reply.Text}
		res.Error = errorCode(reply.Err)
		_ = output.JSON(res)
		return
	}
	label := output.Green("Assistant:")
	if reply.Err != nil {
		label = output.Yellow("Assistant:")
	}
	output.Printf("%s %s\n\n", label, reply.Text)
}

// errorCode is the JSON error field of a reply. Finance errors keep their
// text; anything else is reported as "internal" and only logged in full.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := apperrors.AsFinanceError(err); ok {
		return err.Error()
	}
	return "internal"
}

// turnError reports failures other than finance errors, whose chat message
// already is the answer. The detail stays in the log.
func turnError(reply agent.Reply) error {
	if reply.Err == nil {
		return nil
	}
	if _, ok := apperrors.AsFinanceError(reply.Err); ok {
		return nil
	}
	return apperrors.ErrTurnFailed
}

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := app.checkpoints()
			if err != nil {
				return err
			}
			return printSessions(cmd.Context(), NewOutput(cmd), checkpoints.List)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the stored history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			checkpoints, err := app.checkpoints()
			if err != nil {
				return err
			}
			state, err := checkpoints.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if state == nil {
				output.Warning("No session %s", args[0])
				return nil
			}
			if output.IsJSON() {
				return output.JSON(state)
			}
			if state.Summary != "" {
				output.Bold("Summary")
				output.Println(state.Summary)
				output.Println()
			}
			for _, m := range state.Messages {
				output.Printf("%s %s\n", output.DimText(string(m.Role)+":"), m.Content)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <session-id>",
		Short: "Forget a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := app.checkpoints()
			if err != nil {
				return err
			}
			if err := checkpoints.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			NewOutput(cmd).Success("✓ Session %s cleared", args[0])
			return nil
		},
	})

	return cmd
}

func printSessions(ctx context.Context, output *Output, list func(context.Context) ([]store.SessionInfo, error)) error {
	sessions, err := list(ctx)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(sessions)
	}
	if len(sessions) == 0 {
		output.Dim("No stored sessions")
		return nil
	}
	table := NewTable(output, "SESSION", "UPDATED")
	for _, s := range sessions {
		table.AddRow(s.SessionID, s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	table.Render()
	return nil
}
