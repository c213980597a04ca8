package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/storage"
)

// NewMigrateCommand creates the migrate command. Opening the store migrates
// it as well; this command exists for provisioning and for reporting the
// schema version.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadAndValidateConfig(rootOpts.Database, rootOpts.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			logger, err := SetupLogger(cfg.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}

			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return WrapExitError(ExitFailure, "migrate", err)
			}
			version, dirty, err := storage.SchemaVersion(cfg.SQLiteDBPath)
			if err != nil {
				return WrapExitError(ExitFailure, "read schema version", err)
			}
			logger.Info("Schema up to date", "path", cfg.SQLiteDBPath, "version", version, "dirty", dirty)

			status := map[string]any{"path": cfg.SQLiteDBPath, "version": version, "dirty": dirty}
			return rootOpts.formatter(cmd).Print("schema", status, fmt.Sprintf("schema version %d (dirty=%t)", version, dirty))
		},
	}
}
