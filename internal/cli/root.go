// Package cli wires the foodval commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "foodval",
		Short: "Food image memory and valuation experiment",
		Long:  "foodval serves the two-phase food image experiment and records one CSV row per participant event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newPlanCmd(),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("foodval %s\n", Version))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
