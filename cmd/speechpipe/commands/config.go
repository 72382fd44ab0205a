package commands

import (
	"github.com/spf13/cobra"

	"github.com/dcshock/speechpipe/config"
)

func newConfigCmd(a *app) *cobra.Command {
	var bf *bundleFlags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as a recipe file",
		Long: `Print every parameter after defaults, --config and command-line options
are applied and derived values are computed. The output can be passed back
with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := bf.resolve()
			if err != nil {
				return err
			}
			out, err := config.MarshalBundle(b)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
	bf = addBundleFlags(cmd)
	return cmd
}
