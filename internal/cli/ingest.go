package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"marketminds/internal/news"
)

// addIngestCommands adds the news ingestion commands.
func addIngestCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newIngestCmd(app))
}

func newIngestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Load news articles into the document store",
		Long: `Read JSON article files from a directory, embed them and add them to the
news document store. Files are recorded once processed and skipped on later
runs. A file holds an array of articles or an object with an "articles"
array; each article needs one of content, text, body or description.

With --watch the directory is scanned again on the configured schedule
until interrupted.`,
		Example: `  marketminds ingest ./news
  marketminds ingest --watch --schedule "@every 10m"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.Config.News.IngestDir
			if len(args) == 1 {
				dir = args[0]
			}

			docs, err := app.documentStore(cmd.Context())
			if err != nil {
				output.Error("Failed to open news store: %v", err)
				return err
			}
			db, err := app.database()
			if err != nil {
				output.Error("Failed to open database: %v", err)
				return err
			}
			ingester := news.NewIngester(docs, db, app.Logger)

			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				schedule, _ := cmd.Flags().GetString("schedule")
				if schedule == "" {
					schedule = app.Config.News.Schedule
				}
				output.Info("Watching %s (%s)", dir, schedule)
				return ingester.Watch(cmd.Context(), dir, schedule)
			}

			report, err := ingester.IngestDir(cmd.Context(), dir)
			if err != nil {
				output.Error("Ingestion failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			output.Success("✓ %d documents from %d files (%d already processed)",
				report.Documents, report.Files-report.Skipped-len(report.Failed), report.Skipped)
			for _, f := range report.Failed {
				output.Warning("  failed: %s", f)
			}
			return nil
		},
	}
	cmd.Flags().Bool("watch", false, "keep ingesting on a schedule")
	cmd.Flags().String("schedule", "", "cron schedule for --watch (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show processed files and stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			db, err := app.database()
			if err != nil {
				return err
			}
			files, err := db.ListProcessedFiles(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(files)
			}
			if len(files) == 0 {
				output.Dim("No files ingested yet")
				return nil
			}
			table := NewTable(output, "FILE", "DOCUMENTS", "PROCESSED")
			total := 0
			for _, f := range files {
				total += f.Documents
				table.AddRow(f.Path, strconv.Itoa(f.Documents), f.ProcessedAt.Local().Format("2006-01-02 15:04"))
			}
			table.Render()
			output.Dim("%d documents in %d files", total, len(files))
			return nil
		},
	})

	return cmd
}
