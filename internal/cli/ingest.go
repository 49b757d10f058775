package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"fno-signals/internal/feed"
)

// addIngestCommands adds snapshot ingestion commands.
func addIngestCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newIngestCmd(app))
}

func newIngestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.yaml>...",
		Short: "Load snapshot files into the store",
		Long: `Load one or more YAML snapshot dumps into the store. Each file holds a
single instrument's bars, previous day, option-chain snapshots and futures
snapshots. Files are validated before anything is written.`,
		Example: `  signals ingest nifty.yaml banknifty.yaml
  signals ingest --json dumps/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			batches := make([]*feed.Batch, 0, len(args))
			for _, path := range args {
				b, err := feed.LoadFile(path)
				if err != nil {
					output.Error("%s: %v", path, err)
					return err
				}
				batches = append(batches, b)
			}

			ds, err := app.OpenStore()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			summaries := make([]feed.Summary, 0, len(batches))
			for i, b := range batches {
				sum, err := b.Store(ctx, ds)
				if err != nil {
					output.Error("%s: %v", args[i], err)
					return err
				}
				app.Logger.Info().
					Str("file", args[i]).
					Str("symbol", sum.Symbol).
					Int("bars", sum.Bars).
					Int("chains", sum.Chains).
					Int("futures", sum.Futures).
					Msg("Snapshot file ingested")
				summaries = append(summaries, sum)
			}

			if output.IsJSON() {
				return output.JSON(summaries)
			}
			for _, sum := range summaries {
				output.Success("✓ %s", sum)
			}
			return nil
		},
	}
}
