package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framecast/framecast-agent/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "framecast %s (commit %s, built %s)\n",
				config.Version, config.GitCommit, config.BuildTime)
			return nil
		},
	}
}
