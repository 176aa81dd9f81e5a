package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var addrFlag string
	var tokenFlag string

	rootCmd := &cobra.Command{
		Use:           "framecast",
		Short:         "Framecast export CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Agent address (default http://127.0.0.1:<port> from config)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Agent auth token (default $FRAMECAST_TOKEN)")

	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newJobsCommand(&addrFlag, &tokenFlag))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
