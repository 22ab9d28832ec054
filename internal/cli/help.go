package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds the guide commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

type example struct {
	title    string
	commands []string
}

var workflowExamples = []example{
	{
		title: "First Run",
		commands: []string{
			"marketminds config path          # Where the TOML files live",
			"marketminds config validate      # Check keys and settings",
			"marketminds ingest ./news        # Load news articles",
		},
	},
	{
		title: "Conversation",
		commands: []string{
			"marketminds chat                 # Interactive session",
			"marketminds ask \"How is NVDA doing this quarter?\"",
			"marketminds ask -s <id> \"And its RSI?\"  # Follow-up in the same session",
			"marketminds sessions             # Stored conversations",
		},
	},
	{
		title: "Market Data Without the Model",
		commands: []string{
			"marketminds stock AAPL MSFT -p 3mo  # Price summary and metrics",
			"marketminds indicators TSLA      # Trend, RSI, levels",
			"marketminds compare AAPL MSFT GOOG -p 1y",
			"marketminds news \"chip export rules\"",
		},
	},
	{
		title: "Question Stages",
		commands: []string{
			"marketminds classify \"Is the Fed meeting priced in?\"",
			"marketminds extract \"AAPL vs MSFT margins over 2y\"",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflowExamples))
				for _, ex := range workflowExamples {
					out[ex.title] = ex.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()
			for _, ex := range workflowExamples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Market Minds - Quick Start")
			output.Println()

			steps := []struct {
				title string
				lines []string
			}{
				{"1. Add credentials", []string{
					"Edit credentials.toml in the config directory, or export",
					"OPENAI_API_KEY, GOOGLE_API_KEY, APCA_API_KEY_ID and APCA_API_SECRET_KEY.",
					"A .env file in the working or config directory is read too.",
				}},
				{"2. Pick models", []string{
					"models.toml selects the agent, text and embedding backends",
					"(openai, groq, gemini; anthropic for the text role only).",
				}},
				{"3. Load news", []string{
					"Drop JSON article files into a directory and run 'marketminds ingest <dir>'.",
				}},
				{"4. Ask", []string{
					"Run 'marketminds chat' and ask about any listed US company.",
				}},
			}
			for _, s := range steps {
				output.Info("%s", s.title)
				for _, l := range s.lines {
					output.Printf("   %s\n", l)
				}
				output.Println()
			}
			return nil
		},
	}
}
