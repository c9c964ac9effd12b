package main

import (
	"fmt"
	"strings"

	"github.com/agent2000/agent2000"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agent2000",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agent2000 version %s\n", strings.TrimSpace(agent2000.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
