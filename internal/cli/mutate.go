package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/mastery"
)

// NewMasterCommand creates the master command.
func NewMasterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "master <item>...",
		Short: "Mark items as mastered",
		Long: `Mark one or more items as mastered. A partial rank on the item is
replaced. Items are applied in order; the first rejected item stops the
command and nothing after it is applied.

Example:
  framehub master Braton "Mk1-Braton"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(env *environment) error {
				for _, name := range args {
					if err := env.session.Tracker().MasterItem(name); err != nil {
						return wrapMutationError("master", err)
					}
				}
				return nil
			}, renderStatus)
		},
	}
}

// NewUnmasterCommand creates the unmaster command.
func NewUnmasterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unmaster <item>...",
		Short:         "Clear mastered and partial progress on items",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(env *environment) error {
				for _, name := range args {
					if err := env.session.Tracker().UnmasterItem(name); err != nil {
						return wrapMutationError("unmaster", err)
					}
				}
				return nil
			}, renderStatus)
		},
	}
}

// NewRankCommand creates the rank command.
func NewRankCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank <item> <rank>",
		Short: "Record a partial rank on an item",
		Long: `Record the current rank of an item that is not yet mastered.

Rank 0 clears the item. A rank equal to the item's level cap marks it as
mastered instead. Only items with a level cap in the catalog accept ranks
in between.

Example:
  framehub rank Lex 12
  framehub rank "Kuva Bramma" 35`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(rootOpts, cmd, args[0], args[1])
		},
	}
}

func runRank(opts *RootOptions, cmd *cobra.Command, name, rankArg string) error {
	rank, err := strconv.Atoi(rankArg)
	if err != nil {
		return opts.formatter(cmd).Fail(WrapExitError(ExitCommandError, fmt.Sprintf("invalid rank %q", rankArg), err))
	}

	return withSession(opts, cmd, func(env *environment) error {
		t := env.session.Tracker()
		if err := t.SetPartialRank(name, rank, levelCap(t.Catalog(), name)); err != nil {
			return wrapMutationError("rank", err)
		}
		return nil
	}, renderStatus)
}

// levelCap returns the item's level cap, or the default for names the
// catalog does not know (the tracker rejects those).
func levelCap(cat *catalog.Catalog, name string) int {
	if item, ok := cat.Item(name); ok {
		return item.Levels()
	}
	return catalog.DefaultMaxLevel
}

// NewMasterAllCommand creates the master-all command.
func NewMasterAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "master-all",
		Short: "Mark every visible item as mastered",
		Long: `Mark every item as mastered, skipping Founders items while the
hideFounders filter is set.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(env *environment) error {
				if err := env.session.Tracker().MasterAll(); err != nil {
					return wrapMutationError("master-all", err)
				}
				return nil
			}, renderStatus)
		},
	}
}

// NewUnmasterAllCommand creates the unmaster-all command.
func NewUnmasterAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmaster-all",
		Short: "Clear progress on every visible item",
		Long: `Clear mastered and partial progress on every visible item. While the
hideFounders filter is set, Founders items that were never mastered are
skipped; mastered ones are still visible and are cleared.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(env *environment) error {
				if err := env.session.Tracker().UnmasterAll(); err != nil {
					return wrapMutationError("unmaster-all", err)
				}
				return nil
			}, renderStatus)
		},
	}
}

// NewCounterCommand creates the counter command.
func NewCounterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counter <missions|junctions|intrinsics> <value>",
		Short: "Set a progress counter",
		Long: `Set one of the manually entered progress counters.

Example:
  framehub counter missions 420
  framehub counter intrinsics 40`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(WrapExitError(ExitCommandError, fmt.Sprintf("invalid counter value %q", args[1]), err))
			}
			kind := mastery.Counter(args[0])

			return withSession(rootOpts, cmd, func(env *environment) error {
				if err := env.session.Tracker().SetCounter(kind, value); err != nil {
					return wrapMutationError("counter", err)
				}
				return nil
			}, renderStatus)
		},
	}
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filter <hideMastered|hideFounders> <true|false>",
		Short: "Set a visibility filter",
		Long: `Set one of the visibility filters stored with the progress document.
hideFounders also limits master-all and unmaster-all.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(WrapExitError(ExitCommandError, fmt.Sprintf("invalid filter value %q", args[1]), err))
			}
			key := args[0]

			return withSession(rootOpts, cmd, func(env *environment) error {
				if err := env.session.Tracker().SetFilter(key, value); err != nil {
					return wrapMutationError("filter", err)
				}
				return nil
			}, renderStatus)
		},
	}
}
