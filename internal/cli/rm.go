package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <schema> <key...>",
		Short: "Remove entities by key",
		Long: `Remove entities by key and print the keys that were removed.

Unknown keys are ignored.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd, rootOpts, args[0], args[1:])
		},
	}
}

func runRemove(cmd *cobra.Command, opts *RootOptions, schema string, keys []string) error {
	items := make([]any, len(keys))
	for i, key := range keys {
		items[i] = key
	}

	result, err := execProc(cmd, opts, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
		return y.Yield(resolveSchema(c, schema).Remove(items...))
	}))
	if err != nil {
		return err
	}

	removed, _ := result.([]string)
	if removed == nil {
		removed = []string{}
	}
	return output(cmd, opts).Success(lines(removed))
}
