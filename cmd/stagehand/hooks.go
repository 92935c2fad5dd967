package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/stagehand/hookset"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List the built-in hook library in execution order.",
	Run: func(cmd *cobra.Command, args []string) {
		modules := hookset.Default().Modules()
		sort.SliceStable(modules, func(i, j int) bool {
			return modules[i].Hook.Priority() < modules[j].Hook.Priority()
		})

		fmt.Printf("%-12s %-10s %-6s %s\n",
			"NAME", "PRIORITY", "SETUP", "RUNTIME")
		for _, m := range modules {
			fmt.Printf("%-12s %-10d %-6s %s\n",
				m.Name,
				m.Hook.Priority(),
				yesNo(m.Setup != nil),
				yesNo(m.Return != nil),
			)
		}
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func init() {
	rootCmd.AddCommand(hooksCmd)
}
