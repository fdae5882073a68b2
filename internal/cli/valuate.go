package cli

import (
	"github.com/spf13/cobra"
)

var valuateCmd = &cobra.Command{
	Use:   "valuate",
	Short: "Run one valuation aggregation cycle and print the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Valuate(cmd.Context())
	},
}
