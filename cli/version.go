package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"postrelay/routes"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := routes.BuildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "postrelay %s (commit %s, built %s, %s)\n",
			info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
