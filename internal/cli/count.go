package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <schema>",
		Short: "Print the number of entities in a schema",
		Long: `Print the number of entities in a schema.

Counting reads only the schema's key list, never the entities.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := args[0]
			result, err := execProc(cmd, rootOpts, engine.Routine(func(c *engine.Context, y *engine.Yielder, _ any) (any, error) {
				return y.Yield(resolveSchema(c, schema).Count())
			}))
			if err != nil {
				return err
			}
			return output(cmd, rootOpts).Success(result)
		},
	}
}
