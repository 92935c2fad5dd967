// Stagehand CLI performs common tasks related to developing integration
// tests with stagehand.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use: "stagehand",
	Short: "Stagehand CLI can perform common tasks related to writing " +
		"integration tests with the stagehand lifecycle engine.",
	Long: `Stagehand CLI can perform common tasks related to writing ` +
		`integration tests with the stagehand lifecycle engine. Currently, ` +
		`it lists the built-in hook library and checks the local ` +
		`environment for common test-setup problems.`,
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
