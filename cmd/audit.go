package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/audit"
	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show past deletions",
	Long:  "List the audit records written for confirmed bulk deletions, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := audit.Open(deps.settings.Audit.Backend, deps.settings.Audit.Path)
		if err != nil {
			return err
		}
		defer sink.Close()

		records, err := sink.List(cmd.Context(), auditLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if structured() {
			if records == nil {
				records = []audit.Record{}
			}
			return writeReport(w, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(w, ui.Dim("No deletions recorded."))
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(w, "%s  %-26s %10s  %-12s %s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				core.Plural(r.ItemCount, "item"),
				core.FormatSize(r.TotalBytes),
				r.Method,
				ui.Dim(r.ID))
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of records to show (0 for all)")
}
