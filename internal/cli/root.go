// Package cli provides the command-line interface for the assistant.
package cli

import (
	"github.com/spf13/cobra"

	"marketminds/internal/config"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marketminds",
		Short: "Market Minds - conversational stock and news assistant",
		Long: `Market Minds answers questions about listed companies.

It rewrites follow-up questions into standalone ones, lets a language model
call tools for price history, technical indicators and news articles, and
keeps a summarized conversation per session.

Use 'marketminds chat' for an interactive session or 'marketminds ask' for
a single question.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return app.loadConfig(configDir, debug)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/market-minds)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addChatCommands(rootCmd, app)
	addMarketDataCommands(rootCmd, app)
	addIngestCommands(rootCmd, app)
	addStageCommands(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Market Minds v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Workflow")
	output.Printf("  Max Tool Hops:   %d\n", cfg.Workflow.MaxToolHops)
	output.Printf("  Max Steps:       %d\n", cfg.Workflow.MaxSteps)
	output.Printf("  Summarize After: %d messages\n", cfg.Workflow.SummarizeThreshold)
	output.Printf("  Keep Messages:   %d\n", cfg.Workflow.KeepMessages)
	output.Printf("  Extract Context: %v\n", cfg.Workflow.ExtractContext)
	output.Printf("  Turn Timeout:    %s\n", cfg.Workflow.TurnTimeout)
	output.Println()

	output.Bold("Models")
	output.Printf("  Agent:           %s / %s\n", cfg.Models.Agent.Provider, cfg.Models.Agent.Model)
	output.Printf("  Text:            %s / %s\n", cfg.Models.Text.Provider, cfg.Models.Text.Model)
	output.Printf("  Embedding:       %s / %s\n", cfg.Models.Embedding.Provider, cfg.Models.Embedding.Model)
	output.Println()

	output.Bold("News")
	output.Printf("  Store:           %s\n", cfg.News.StoreDir)
	output.Printf("  Ingest Dir:      %s\n", cfg.News.IngestDir)
	output.Printf("  k / fetch_k:     %d / %d\n", cfg.News.K, cfg.News.FetchK)
	output.Printf("  Lambda:          %.2f\n", cfg.News.Lambda)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Provider:        %s (%s feed)\n", cfg.Market.Provider, cfg.Market.Feed)
	output.Printf("  Rate Limit:      %.1f req/s\n", cfg.Market.RateLimit)
	output.Printf("  Cache:           %v (ttl %s)\n", cfg.Market.Cache, cfg.Market.CacheTTL)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Storage.DBPath)
	output.Printf("  Checkpoints:     %s\n", cfg.Storage.Checkpoints)
}
