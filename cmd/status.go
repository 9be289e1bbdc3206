package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/status"
)

var refreshSeconds int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show disk capacity",
	Long:  "Live dashboard of mounted volumes and the free space behind each scan root.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := deps.roots(nil)
		if err != nil {
			return err
		}

		if !interactive() {
			snap, err := status.Collect(cmd.Context(), status.OSSource, roots)
			if err != nil {
				return err
			}
			if structured() {
				return writeReport(cmd.OutOrStdout(), snap)
			}
			status.PrintStatic(cmd.OutOrStdout(), snap)
			return nil
		}

		interval := time.Duration(refreshSeconds) * time.Second
		model := status.NewStatusModel(status.OSSource, roots, interval)
		_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

func init() {
	statusCmd.Flags().IntVar(&refreshSeconds, "refresh", 2, "Refresh interval in seconds")
}
