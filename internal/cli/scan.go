package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"fno-signals/internal/analysis"
	"fno-signals/internal/analysis/detect"
	"fno-signals/internal/metrics"
	"fno-signals/internal/notify"
	"fno-signals/internal/scanner"
	"fno-signals/internal/store"
	"fno-signals/pkg/utils"
)

// addScanCommands adds the single-instrument and scheduled scan commands.
func addScanCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newRunCmd(app *App) *cobra.Command {
	var (
		mode        string
		isIndex     bool
		minPriority string
		at          string
	)

	cmd := &cobra.Command{
		Use:   "run <symbol>",
		Short: "Run one detector cycle for an instrument",
		Long: `Build the instrument's state from stored snapshots, run every detector
family and score the cycle. The cycle is written to the signal journal.`,
		Example: `  signals run NIFTY
  signals run RELIANCE --mode positional --min-priority medium
  signals run BANKNIFTY --at 2024-01-18T14:50:00+05:30 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(args[0])

			m, floor, err := app.resolveRunFlags(mode, minPriority)
			if err != nil {
				return err
			}
			asOf := app.now()
			if at != "" {
				if asOf, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}

			ds, err := app.OpenStore()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			class := analysis.ClassFor(isIndex)
			if !cmd.Flags().Changed("index") {
				if class, err = app.classOf(ctx, ds, symbol); err != nil {
					return err
				}
			}

			sc, err := app.newScanner(ds, floor, nil)
			if err != nil {
				return err
			}
			outcome := sc.Scan(ctx, []scanner.Job{{Symbol: symbol, Class: class, Mode: m, AsOf: asOf}})[0]
			if outcome.Err != nil {
				output.Error("%s: %v", symbol, outcome.Err)
				return outcome.Err
			}

			if output.IsJSON() {
				return output.JSON(newOutcomeView(outcome))
			}
			renderOutcome(output, outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "operating mode: intraday or positional (default: engine.mode)")
	cmd.Flags().BoolVar(&isIndex, "index", false, "use index profiles (default: watch.indices or the stored instrument)")
	cmd.Flags().StringVar(&minPriority, "min-priority", "", "lowest priority that notifies (default: engine.min_priority)")
	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 time (default: now)")

	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var (
		mode string
		once bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan every stored instrument on the watch schedule",
		Long: `Scan every stored instrument on the cron schedule in [watch]. Runs are
skipped outside NSE market hours unless watch.market_hours_only is false.
When [metrics] is enabled, Prometheus metrics are served on metrics.listen.`,
		Example: `  signals watch
  signals watch --mode positional
  signals watch --once --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			m, floor, err := app.resolveRunFlags(mode, "")
			if err != nil {
				return err
			}
			ds, err := app.OpenStore()
			if err != nil {
				return err
			}

			var rec detect.Recorder
			if cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				rec = metrics.New(reg)
				srv := app.serveMetrics(reg)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			sc, err := app.newScanner(ds, floor, rec)
			if err != nil {
				return err
			}
			notifier, err := notify.NewMultiNotifier(cfg.Notify, floor)
			if err != nil {
				return err
			}
			notifier.AddChannel(notify.NewLogNotifier(app.Logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := scanner.NewWatcher(sc, ds, cfg.Watch, m, app.Logger).
				WithClock(app.now).
				OnScan(func(outcomes []scanner.Outcome) {
					renderScan(output, outcomes)
					app.dispatch(ctx, notifier, outcomes)
				})

			if once {
				outcomes, err := watcher.RunOnce(ctx)
				if err != nil {
					return err
				}
				if outcomes == nil {
					output.Dim("Market closed, nothing scanned")
					return nil
				}
				renderScan(output, outcomes)
				app.dispatch(ctx, notifier, outcomes)
				return nil
			}

			if err := watcher.Start(ctx); err != nil {
				return err
			}
			if !output.IsJSON() {
				output.Info("Watching (%s, %s). Press Ctrl+C to stop.", cfg.Watch.Schedule, m)
			}
			<-ctx.Done()
			watcher.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "operating mode: intraday or positional (default: engine.mode)")
	cmd.Flags().BoolVar(&once, "once", false, "scan once now and exit")

	return cmd
}

// resolveRunFlags applies flag overrides on top of the engine config.
func (a *App) resolveRunFlags(mode, minPriority string) (analysis.Mode, analysis.Priority, error) {
	m, err := a.Config.Mode()
	if mode != "" {
		m, err = analysis.ParseMode(mode)
	}
	if err != nil {
		return "", analysis.PriorityNone, err
	}

	floor, err := a.Config.MinPriority()
	if minPriority != "" {
		floor, err = analysis.ParsePriority(minPriority)
	}
	if err != nil {
		return "", analysis.PriorityNone, err
	}
	return m, floor, nil
}

// classOf resolves the instrument class from watch.indices or the stored
// instrument.
func (a *App) classOf(ctx context.Context, ds store.DataStore, symbol string) (analysis.InstrumentClass, error) {
	for _, idx := range a.Config.Watch.Indices {
		if strings.EqualFold(idx, symbol) {
			return analysis.Index, nil
		}
	}
	inst, err := ds.GetInstrument(ctx, symbol)
	if err != nil {
		return "", err
	}
	return analysis.ClassFor(inst != nil && inst.IsIndex), nil
}

func (a *App) newScanner(ds store.DataStore, floor analysis.Priority, rec detect.Recorder) (*scanner.Scanner, error) {
	orch, err := scanner.NewOrchestrator(a.Config, a.Logger, rec)
	if err != nil {
		return nil, err
	}
	builder := scanner.NewStateBuilder(ds, scanner.DefaultBuilderConfig(a.Config.Engine.History), a.Logger)
	freshness := store.NewFreshnessTracker(ds, store.DefaultFreshnessConfig()).WithClock(a.now)
	return scanner.New(orch, builder, a.Config.Engine.Workers, floor, a.Logger,
		scanner.WithJournal(ds),
		scanner.WithFreshness(freshness),
	), nil
}

// dispatch sends every notifying outcome. Delivery failures are logged and
// never stop the watcher.
func (a *App) dispatch(ctx context.Context, notifier *notify.MultiNotifier, outcomes []scanner.Outcome) {
	for _, o := range outcomes {
		if !o.Notify {
			continue
		}
		n, ok := notify.NewNotification(o.State)
		if !ok {
			continue
		}
		if err := notifier.Send(ctx, n); err != nil {
			a.Logger.Warn().Err(err).Str("symbol", n.Symbol).Str("cycle_id", n.CycleID).Msg("Notification delivery failed")
		}
	}
}

func (a *App) serveMetrics(reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              a.Config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.Logger.Info().Str("listen", srv.Addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return srv
}

// outcomeView is the JSON rendering of one scan outcome.
type outcomeView struct {
	Symbol   string                   `json:"symbol"`
	Class    analysis.InstrumentClass `json:"class"`
	Mode     analysis.Mode            `json:"mode"`
	AsOf     time.Time                `json:"as_of"`
	CycleID  string                   `json:"cycle_id,omitempty"`
	Notify   bool                     `json:"notify"`
	Score    *analysis.ScoreResult    `json:"score,omitempty"`
	Signals  *analysis.Bucket         `json:"signals,omitempty"`
	Failures []string                 `json:"failures,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func newOutcomeView(o scanner.Outcome) outcomeView {
	v := outcomeView{
		Symbol: o.Job.Symbol,
		Class:  o.Job.Class,
		Mode:   o.Job.Mode,
		AsOf:   o.Job.AsOf,
		Notify: o.Notify,
		Score:  o.Score,
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	if o.State != nil {
		v.CycleID = o.State.CycleID
		v.Signals = o.State.Bucket
		for _, f := range o.State.Failures {
			v.Failures = append(v.Failures, f.String())
		}
	}
	return v
}

func renderOutcome(output *Output, o scanner.Outcome) {
	st := o.State
	output.Bold("%s  %s / %s  as of %s", o.Job.Symbol, o.Job.Class, o.Job.Mode, FormatDateTime(o.Job.AsOf))
	if spot := st.Spot(); spot > 0 {
		output.Printf("  Spot:    %s\n", utils.FormatPrice(spot))
	}
	if chain := st.CurrentChain(); chain != nil {
		output.Printf("  Chain:   %s expiry, PCR %.2f, %s old\n",
			chain.ExpiryKey(), chain.EffectivePCR(), FormatDuration(o.Job.AsOf.Sub(chain.CapturedAt)))
	}
	if fut := st.Futures; fut != nil {
		output.Printf("  Futures: %s (%s), OI %s (%s)\n",
			utils.FormatPrice(fut.LTP), utils.FormatPercent(fut.PriceChangePercent()),
			utils.FormatOI(float64(fut.OI)), utils.FormatPercent(fut.OIChangePercent()))
	}
	output.Dim("  Cycle %s", st.CycleID)
	output.Println()

	if st.Bucket.IsEmpty() {
		output.Dim("No signals")
	} else {
		table := NewTable(output, "Sentiment", "Type", "Detail")
		for _, s := range analysis.Sentiments {
			for _, e := range st.Bucket.Entries(s) {
				for _, sig := range e.Signals {
					table.AddRow(output.Sentiment(s), e.Type, TruncateString(sig.Payload.Summary(), 80))
				}
			}
		}
		table.Render()
	}
	output.Println()

	res := o.Score
	output.Bold("Score")
	output.Printf("  Total:      %s (base %s + bonus %s)\n",
		utils.FormatScore(res.TotalScore), utils.FormatScore(res.BaseScore), utils.FormatScore(res.AlignmentBonus))
	output.Printf("  Bull/Bear:  %s / %s  (neutral %s)\n",
		utils.FormatScore(res.BullishScore), utils.FormatScore(res.BearishScore), utils.FormatScore(res.NeutralScore))
	output.Printf("  Alignment:  %s, dominant %s\n", res.Alignment, output.Sentiment(res.Dominant))
	output.Printf("  Confidence: %s\n", FormatConfidence(res.ConfidencePct))
	output.Printf("  Priority:   %s\n", output.Priority(res.Priority))
	output.Println()

	for _, f := range st.Failures {
		output.Warning("⚠ detector failed: %s", f)
	}
	if o.Notify {
		output.Success("▲ Notify (%s)", res.Priority)
	} else {
		output.Dim("No notification")
	}
}

func renderScan(output *Output, outcomes []scanner.Outcome) {
	if output.IsJSON() {
		views := make([]outcomeView, 0, len(outcomes))
		for _, o := range outcomes {
			views = append(views, newOutcomeView(o))
		}
		_ = output.JSON(views)
		return
	}

	if len(outcomes) > 0 {
		output.Dim("Scan at %s", FormatTime(outcomes[0].Job.AsOf))
	}
	table := NewTable(output, "Symbol", "Class", "Priority", "Score", "Alignment", "Signals", "Notify").AlignRight(3, 5)
	for _, o := range outcomes {
		if o.Err != nil {
			table.AddRow(o.Job.Symbol, string(o.Job.Class), "-", "-", "-", "-", "error: "+TruncateString(o.Err.Error(), 40))
			continue
		}
		notify := ""
		if o.Notify {
			notify = "▲"
		}
		table.AddRow(
			o.Job.Symbol,
			string(o.Job.Class),
			output.Priority(o.Score.Priority),
			utils.FormatScore(o.Score.TotalScore),
			string(o.Score.Alignment),
			fmt.Sprintf("%d", o.State.Bucket.Len()),
			notify,
		)
	}
	table.Render()
}
