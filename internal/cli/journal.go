package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fno-signals/internal/analysis"
	"fno-signals/internal/store"
	"fno-signals/pkg/utils"
)

// addJournalCommands adds signal journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newJournalCmd(app))
}

func newJournalCmd(app *App) *cobra.Command {
	var (
		symbol      string
		mode        string
		since       string
		until       string
		minPriority string
		notifyOnly  bool
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Review journalled cycles",
		Long:  "List scored cycles from the signal journal, newest first.",
		Example: `  signals journal --symbol NIFTY --limit 20
  signals journal --since 2024-01-15 --min-priority high --notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.JournalFilter{
				Symbol:     strings.ToUpper(symbol),
				NotifyOnly: notifyOnly,
				Limit:      limit,
			}
			if mode != "" {
				m, err := analysis.ParseMode(mode)
				if err != nil {
					return err
				}
				filter.Mode = m
			}
			if minPriority != "" {
				p, err := analysis.ParsePriority(minPriority)
				if err != nil {
					return err
				}
				filter.MinPriority = p
			}
			var err error
			if filter.StartDate, err = parseDay(since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if filter.EndDate, err = parseDay(until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}
			if !filter.EndDate.IsZero() {
				filter.EndDate = filter.EndDate.Add(24 * time.Hour)
			}

			ds, err := app.OpenStore()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			entries, err := ds.GetJournal(ctx, filter)
			if err != nil {
				output.Error("Failed to read journal: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Info("No journalled cycles match.")
				return nil
			}

			table := NewTable(output, "Time", "Symbol", "Mode", "Priority", "Score", "Alignment", "Notify", "Failures").AlignRight(4, 7)
			for _, e := range entries {
				score, alignment := "-", "-"
				if e.Score != nil {
					score = utils.FormatScore(e.Score.TotalScore)
					alignment = string(e.Score.Alignment)
				}
				notify := ""
				if e.Notify {
					notify = "▲"
				}
				failures := ""
				if n := len(e.Failures); n > 0 {
					failures = fmt.Sprintf("%d", n)
				}
				table.AddRow(
					FormatDateTime(e.CycleAt),
					e.Symbol,
					string(e.Mode),
					output.Priority(e.Priority()),
					score,
					alignment,
					notify,
					failures,
				)
			}
			table.Render()
			output.Println()
			output.Dim("%d cycles", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	cmd.Flags().StringVar(&mode, "mode", "", "only this mode: intraday or positional")
	cmd.Flags().StringVar(&since, "since", "", "first day, YYYY-MM-DD (IST)")
	cmd.Flags().StringVar(&until, "until", "", "last day, YYYY-MM-DD (IST)")
	cmd.Flags().StringVar(&minPriority, "min-priority", "", "lowest priority to list")
	cmd.Flags().BoolVar(&notifyOnly, "notify", false, "only cycles that notified")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of cycles")

	return cmd
}

// parseDay parses an IST calendar day; empty input is the zero time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, utils.IndiaLocation)
}
