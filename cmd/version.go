package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version",
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("localmail version %s\n", appVersion)
	if global.verbose {
		fmt.Printf("commit %q built on %q by %q\n", appCommit, appDate, appBuiltBy)
	}
}
