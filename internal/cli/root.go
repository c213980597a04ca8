package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	LogLevel string
	Format   string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fintrack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fintrack",
		Short: "Personal finance tracker with live queries",
		Long: `Record income and expenses in a local SQLite store and watch balances,
totals and transaction lists update as soon as a change is committed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides SQLITE_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewCategoriesCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// bootstrap loads configuration and wires the application for one command.
func (o *RootOptions) bootstrap() (*App, error) {
	cfg, err := LoadAndValidateConfig(o.Database, o.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger, err := SetupLogger(cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "startup failed", err)
	}
	return app, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, WrapExitError(ExitCommandError, "invalid id", fmt.Errorf("%q is not a positive integer", s))
	}
	return id, nil
}

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid amount", err)
	}
	return amount, nil
}

// parseTimestamp reads RFC 3339 or YYYY-MM-DD (local midnight) into epoch
// milliseconds. An empty value means now.
func parseTimestamp(s string, now time.Time) (int64, error) {
	if s == "" {
		return now.UnixMilli(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid time",
			fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s))
	}
	return t.UnixMilli(), nil
}

// monthRange returns the inclusive millisecond range of a YYYY-MM month.
func monthRange(month string) (int64, int64, error) {
	t, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return 0, 0, WrapExitError(ExitCommandError, "invalid month",
			fmt.Errorf("%q is not YYYY-MM", month))
	}
	return t.UnixMilli(), t.AddDate(0, 1, 0).UnixMilli() - 1, nil
}
