package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rlm/internal/httpapi"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rlm version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "rlm %s\n", httpapi.Version)
		return nil
	},
}
