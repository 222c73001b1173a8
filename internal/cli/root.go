package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lwoollett/FrameHub/internal/syncer"
)

// RootOptions holds global flags for all commands. Empty flag values fall
// back to the configuration file.
type RootOptions struct {
	ConfigPath string
	Database   string
	Catalog    string
	User       string
	Session    string
	Verbose    bool
	Format     string // "json" | "text"

	// Scheduler overrides the sync engine's timer (for testing).
	Scheduler syncer.Scheduler
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the framehub CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framehub",
		Short: "FrameHub - mastery progress tracker",
		Long: `Track mastery progress through the item catalog.

Every change is applied locally at once and written to the progress
document in a single batch after a short quiet period.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.framehub/config.toml)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite progress database")
	flags.StringVar(&opts.Catalog, "catalog", "", "path to item catalog (JSON or CUE)")
	flags.StringVar(&opts.User, "user", "", "user id of the progress document")
	flags.StringVar(&opts.Session, "session", "", "session kind (authenticated|anonymous|shared)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewIngredientsCommand(opts))
	cmd.AddCommand(NewMasterCommand(opts))
	cmd.AddCommand(NewUnmasterCommand(opts))
	cmd.AddCommand(NewRankCommand(opts))
	cmd.AddCommand(NewMasterAllCommand(opts))
	cmd.AddCommand(NewUnmasterAllCommand(opts))
	cmd.AddCommand(NewCounterCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
