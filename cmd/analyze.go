package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/analyze"
	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var (
	minSizeFlag string
	staticOut   bool
)

var scanCmd = &cobra.Command{
	Use:     "scan [path...]",
	Aliases: []string{"analyze"},
	Short:   "Explore disk usage",
	Long: `Scan the configured roots (or the given paths) and explore the result.

On a terminal this opens the interactive explorer: drill into folders,
toggle the largest-items view with t, mark entries with Space and delete
them with Backspace then Enter. Otherwise a plain report is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := deps.roots(args)
		if err != nil {
			return err
		}
		minSize, err := core.ParseSize(minSizeFlag)
		if err != nil {
			return fmt.Errorf("--min-size: %w", err)
		}

		if !interactive() || staticOut {
			progress := newProgress("Scanning")
			res, err := deps.scanner.Run(cmd.Context(), roots, progress.update)
			progress.done()
			if err != nil {
				return err
			}
			if structured() {
				return writeReport(cmd.OutOrStdout(), res)
			}
			analyze.PrintStatic(cmd.OutOrStdout(), filterResult(res, minSize))
			return nil
		}

		model, err := analyze.NewAnalyzeModel(cmd.Context(), deps.scanner, roots, minSize)
		if err != nil {
			return err
		}
		return explore(cmd, model)
	},
}

func init() {
	scanCmd.Flags().StringVar(&minSizeFlag, "min-size", "", "Minimum size to display (e.g., 100MB)")
	scanCmd.Flags().BoolVar(&staticOut, "static", false, "Print a plain report even on a terminal")
	addGateFlags(scanCmd)
}

// explore runs the explorer until the user quits. A confirmed delete leaves
// the UI, goes through the gate on the plain terminal and reopens the
// explorer without the removed entries.
func explore(cmd *cobra.Command, model analyze.AnalyzeModel) error {
	for {
		final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		if err != nil {
			return err
		}
		model = final.(analyze.AnalyzeModel)
		if !model.DeleteRequested() {
			return nil
		}

		g, closeSink, err := deps.newGate(dryRun, assumeY)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		deleted, err := deleteEntries(cmd.Context(), w, g, model.Marked())
		closeSink()
		if err := gateMessage(cmd.ErrOrStderr(), err); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", ui.Danger(ui.IconError), err)
		}
		if cmd.Context().Err() != nil {
			return nil
		}
		if dryRun {
			deleted = nil
		}
		model.Forget(deleted)
	}
}

// filterResult drops largest items under minSize for the plain report.
func filterResult(res *scan.Result, minSize int64) *scan.Result {
	if minSize <= 0 {
		return res
	}
	out := *res
	out.Largest = nil
	for _, e := range res.Largest {
		if e.Size >= minSize {
			out.Largest = append(out.Largest, e)
		}
	}
	return &out
}
