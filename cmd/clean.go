package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/gate"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var keepPaths []string

var cleanCmd = &cobra.Command{
	Use:   "clean [path...]",
	Short: "Free up disk space",
	Long: `Scan, then delete the largest items graded safe in one confirmed step.

Every safe item among the largest results is selected; --keep deselects
paths. One authorization covers the whole plan and one audit record is
written for it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := deps.roots(args)
		if err != nil {
			return err
		}

		progress := newProgress("Scanning")
		res, err := deps.scanner.Run(cmd.Context(), roots, progress.update)
		progress.done()
		if err != nil {
			return err
		}

		g, closeSink, err := deps.newGate(dryRun, assumeY)
		if err != nil {
			return err
		}
		defer closeSink()

		plan, err := g.Prepare(res.Largest)
		if err != nil {
			return err
		}
		for _, k := range keepPaths {
			p, err := filepath.Abs(config.ExpandHome(k, deps.settings.Home))
			if err != nil {
				return err
			}
			if plan.Selected[p] {
				plan.Toggle(p)
			}
		}

		w := cmd.OutOrStdout()
		if !structured() {
			printPlan(w, plan)
		}
		selected := plan.SelectedPaths()
		if len(selected) == 0 {
			if structured() {
				return writeReport(w, plan)
			}
			return nil
		}

		out, err := g.ConfirmAndDelete(cmd.Context(), selected)
		if out != nil {
			if structured() {
				if werr := writeReport(w, out); werr != nil {
					return werr
				}
			} else {
				printOutcome(w, out)
			}
		}
		return gateMessage(cmd.ErrOrStderr(), err)
	},
}

func init() {
	cleanCmd.Flags().StringSliceVar(&keepPaths, "keep", nil, "Paths to leave out of the plan")
	addGateFlags(cleanCmd)
}

func printPlan(w io.Writer, plan *gate.Plan) {
	fmt.Fprintln(w, ui.Bold(plan.Summary))
	for _, e := range plan.Items {
		box := ui.Success("[x]")
		if !plan.Selected[e.Path] {
			box = ui.Dim("[ ]")
		}
		fmt.Fprintf(w, "  %s %10s  %s\n", box, core.FormatSize(e.Size), e.Path)
	}
}
