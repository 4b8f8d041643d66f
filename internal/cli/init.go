package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bouncer/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default bouncer.yaml",
		Long: `Write the default configuration to the path given by --config
(default: bouncer.yaml). Refuses to overwrite an existing file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Config); err == nil {
		return WrapExitError(ExitCommandError,
			fmt.Sprintf("%s already exists, refusing to overwrite", opts.Config), nil)
	} else if !os.IsNotExist(err) {
		return WrapExitError(ExitCommandError, "stat config", err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return WrapExitError(ExitCommandError, "encode default config", err)
	}
	if err := os.WriteFile(opts.Config, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write config", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "wrote", opts.Config)
	return nil
}
