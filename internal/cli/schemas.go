package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/stash/internal/engine"
)

// NewSchemasCommand creates the schemas command.
func NewSchemasCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "Print the names of the stored schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := execProc(cmd, rootOpts, func(c *engine.Context, _ any) (any, error) {
				return c.Schemas(), nil
			})
			if err != nil {
				return err
			}
			names, _ := result.([]string)
			if names == nil {
				names = []string{}
			}
			return output(cmd, rootOpts).Success(lines(names))
		},
	}
}
