package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"marketminds/internal/stages"
)

// addStageCommands adds commands that run a single question stage.
func addStageCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newClassifyCmd(app))
	rootCmd.AddCommand(newExtractCmd(app))
}

type classifyResult struct {
	Question string          `json:"question"`
	Category stages.Category `json:"category"`
	Response string          `json:"response,omitempty"`
}

func newClassifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <question>",
		Short: "Classify a question",
		Long: `Classify a question as stock_specific, news_based, technical_analysis
or unrelated. With --respond an unrelated question also gets the polite
redirect the assistant would give.`,
		Example: `  marketminds classify "What is the RSI of TSLA?"
  marketminds classify --respond "Who won the match yesterday?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			model, err := app.textModel(cmd.Context())
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, cancel := app.turnContext(cmd.Context())
			defer cancel()

			question := strings.Join(args, " ")
			category, err := stages.NewClassifier(model, app.Logger).Classify(ctx, question)
			if err != nil {
				output.Error("Classification failed: %v", err)
				return err
			}
			res := classifyResult{Question: question, Category: category}

			if respond, _ := cmd.Flags().GetBool("respond"); respond && category == stages.CategoryUnrelated {
				res.Response, err = stages.NewRedirector(model, app.Logger).Respond(ctx, question)
				if err != nil {
					output.Error("Redirect failed: %v", err)
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Printf("%s %s\n", output.DimText("Category:"), output.BoldText(string(category)))
			if res.Response != "" {
				output.Println()
				output.Println(res.Response)
			}
			return nil
		},
	}
	cmd.Flags().Bool("respond", false, "answer unrelated questions with a redirect")
	return cmd
}

func newExtractCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "extract <question>",
		Short:   "Extract symbols, period and metrics from a question",
		Example: `  marketminds extract "Compare AAPL and MSFT P/E over the last year"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			model, err := app.textModel(cmd.Context())
			if err != nil {
				output.Error("%v", err)
				return err
			}

			ctx, cancel := app.turnContext(cmd.Context())
			defer cancel()

			extracted, err := stages.NewExtractor(model, app.Logger).Extract(ctx, strings.Join(args, " "))
			if err != nil {
				output.Error("Extraction failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(extracted)
			}

			output.Printf("  Symbols:  %s\n", orDash(strings.Join(extracted.Symbols, ", ")))
			output.Printf("  Period:   %s\n", orDash(string(extracted.Period)))
			output.Printf("  Metrics:  %s\n", orDash(strings.Join(extracted.Metrics, ", ")))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
