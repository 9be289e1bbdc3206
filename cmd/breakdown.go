package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/analyze"
	"github.com/lakshaymaurya-felt/macmole/internal/config"
)

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <folder>",
	Short: "List a folder's children by size",
	Long:  "Size and grade every immediate child of one folder, largest first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := filepath.Abs(config.ExpandHome(args[0], deps.settings.Home))
		if err != nil {
			return err
		}
		entries, err := deps.scanner.RunBreakdown(cmd.Context(), folder, nil)
		if err != nil {
			return err
		}
		if structured() {
			return writeReport(cmd.OutOrStdout(), entries)
		}
		analyze.PrintBreakdown(cmd.OutOrStdout(), folder, entries)
		return nil
	},
}
