package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "biometric",
		Short:         "Fingerprint capture station",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("config file (default $BIOMETRIC_CONFIG or %s)", defaultConfigPath))

	resolve := func() string {
		if configPath != "" {
			return configPath
		}
		return getConfigPath()
	}

	root.AddCommand(
		newServeCmd(resolve),
		newScoreCmd(),
		newPruneCmd(resolve),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "biometric %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
