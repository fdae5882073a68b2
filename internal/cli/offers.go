package cli

import (
	"github.com/spf13/cobra"
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "List the account's open DEX offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Offers(cmd.Context())
	},
}
