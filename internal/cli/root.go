package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fno-signals/internal/config"
	"fno-signals/internal/logging"
	"fno-signals/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies. Config and Logger are resolved
// before any command runs; Store is opened on first use.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore

	now func() time.Time
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	if app.now == nil {
		app.now = time.Now
	}

	rootCmd := &cobra.Command{
		Use:   "signals",
		Short: "F&O signal engine - detector scans over option chain and futures snapshots",
		Long: `signals ingests periodic NSE snapshots (price bars, option-chain OI and
futures) and runs the technical, OI chain, PCR/max-pain and futures
detector families over them. Each cycle is scored into a priority tier
and journalled.

Use 'signals ingest' to load snapshot files, 'signals run' for a single
instrument and 'signals watch' to scan on a schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/fno-signals)")
	rootCmd.PersistentFlags().String("db", "", "snapshot database path (overrides store.db_path)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addIngestCommands(rootCmd, app)
	addScanCommands(rootCmd, app)
	addProfileCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		a.Config = cfg
		a.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		a.Config.Store.DBPath = db
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// OpenStore opens the snapshot store on first use.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}

	dbPath := a.Config.Store.DBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	ds, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	a.Store = ds
	return ds, nil
}

// Close closes the store if it was opened.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
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
			output.Printf("F&O Signal Engine v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
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
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Mode:           %s\n", cfg.Engine.Mode)
	output.Printf("  Min Priority:   %s\n", cfg.Engine.MinPriority)
	output.Printf("  Workers:        %d\n", cfg.Engine.Workers)
	output.Printf("  History:        %d intraday, %s / %d rows positional\n",
		cfg.Engine.History.IntradayCapacity, cfg.Engine.History.PositionalWindow, cfg.Engine.History.PositionalMaxRows)
	output.Println()

	output.Bold("Store")
	output.Printf("  Database:       %s\n", cfg.Store.DBPath)
	output.Println()

	output.Bold("Watch")
	output.Printf("  Schedule:       %s\n", cfg.Watch.Schedule)
	output.Printf("  Market Hours:   %v\n", cfg.Watch.MarketHoursOnly)
	output.Printf("  Indices:        %v\n", cfg.Watch.Indices)
	output.Println()

	output.Bold("Scoring")
	output.Printf("  Tiers:          low %.1f  medium %.1f  high %.1f  critical %.1f\n",
		cfg.Scoring.Tiers.Low, cfg.Scoring.Tiers.Medium, cfg.Scoring.Tiers.High, cfg.Scoring.Tiers.Critical)
	output.Printf("  Notify Floor:   %.1f\n", cfg.Scoring.MinNotifyScore)
	output.Printf("  Metrics:        %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Listen)
}
