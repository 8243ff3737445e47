package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/purvisolanki/userdir/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "udcli %s\n", version.VERSION)
		},
	}
}
