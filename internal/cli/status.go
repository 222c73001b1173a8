package cli

import (
	"github.com/spf13/cobra"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/docstore"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show rank, experience and counters",
		Long: `Show the derived statistics of the progress document.

Example:
  framehub status
  framehub status --user u1 --session shared --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, nil, renderStatus)
		},
	}
}

// NewIngredientsCommand creates the ingredients command.
func NewIngredientsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingredients",
		Short: "List raw components still needed",
		Long: `List the raw components needed to build every item that is
neither mastered nor partially ranked. Generic parts are not counted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, nil, func(env *environment) any {
				return newIngredientsView(env.session.Tracker().Ingredients())
			})
		},
	}
}

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Refresh bool
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Load the item catalog and print its version stamp",
		Long: `Load the item catalog through the local cache.

The cached copy is used when its version stamp matches the catalog file;
otherwise the file is read and the cache replaced. With --refresh the
stamp is checked a second time and the catalog reloaded if it changed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "check the catalog for a newer version after loading")

	return cmd
}

func runCatalog(opts *CatalogOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	st, err := docstore.Open(cfg.Store.Path)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := commandContext(cmd)
	loader := catalog.NewLoader(catalog.NewFileSource(cfg.Catalog.Path), st, catalog.WithLoaderLogger(logger))
	cat, err := loader.Load(ctx)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to load catalog", err))
	}

	changed := false
	if opts.Refresh {
		cat, changed, err = loader.Refresh(ctx)
		if err != nil {
			return out.Fail(WrapExitError(ExitFailure, "failed to refresh catalog", err))
		}
	}

	return out.Success(newCatalogView(cfg.Catalog.Path, loader.Stamp(), changed, cat))
}

// withSession opens a session, applies mutate when it is non-nil, closes the
// session (flushing whatever mutate changed) and prints render's view.
func withSession(opts *RootOptions, cmd *cobra.Command, mutate func(env *environment) error, render func(env *environment) any) error {
	out := opts.formatter(cmd)

	env, err := opts.openEnvironment(cmd)
	if err != nil {
		return out.Fail(err)
	}

	var mutErr error
	if mutate != nil {
		mutErr = mutate(env)
	}
	closeErr := env.close(commandContext(cmd))

	if mutErr != nil {
		if closeErr != nil {
			env.logger.Error("error closing session", "error", closeErr)
		}
		return out.Fail(mutErr)
	}
	if closeErr != nil {
		return out.Fail(saveFailed(closeErr))
	}

	return out.Success(render(env))
}

func renderStatus(env *environment) any {
	return newStatusView(env.session)
}
