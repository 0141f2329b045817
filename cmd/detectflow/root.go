package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose      bool
	settingsPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "detectflow",
		Short:         "detectflow runs anomaly detection pipelines declared in YAML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.settingsPath, "config", "", "Path to the settings file (default $DETECTFLOW_CONFIG)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newOperatorsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
