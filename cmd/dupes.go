package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/dupes"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var deleteExtras bool

var dupesCmd = &cobra.Command{
	Use:   "dupes [path...]",
	Short: "Find duplicate files",
	Long: `Find files with identical content across the scan roots.

Files are grouped by size, filtered by a hash of their first 64 KiB and
confirmed with a full BLAKE3 digest. With --delete every copy except the
first of each group is offered to the deletion gate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roots, err := deps.roots(args)
		if err != nil {
			return err
		}
		minSize, err := core.ParseSize(minSizeFlag)
		if err != nil {
			return fmt.Errorf("--min-size: %w", err)
		}

		progress := newProgress("Hashing")
		groups, err := deps.dupes.Run(cmd.Context(), roots, progress.update)
		progress.done()
		if err != nil {
			return err
		}
		groups = filterGroups(groups, minSize)

		w := cmd.OutOrStdout()
		if structured() {
			return writeReport(w, groups)
		}
		printGroups(w, groups)
		if !deleteExtras || len(groups) == 0 {
			return nil
		}

		var extras []scan.Entry
		for _, g := range groups {
			extras = append(extras, graded(deps.classifier, g.Extras(), g.Size)...)
		}
		gt, closeSink, err := deps.newGate(dryRun, assumeY)
		if err != nil {
			return err
		}
		defer closeSink()
		_, err = deleteEntries(cmd.Context(), w, gt, extras)
		return gateMessage(cmd.ErrOrStderr(), err)
	},
}

func init() {
	dupesCmd.Flags().StringVar(&minSizeFlag, "min-size", "", "Ignore groups of files smaller than this (e.g., 1MB)")
	dupesCmd.Flags().BoolVar(&deleteExtras, "delete", false, "Delete every copy but the first of each group")
	addGateFlags(dupesCmd)
}

func filterGroups(groups []dupes.Group, minSize int64) []dupes.Group {
	if minSize <= 0 {
		return groups
	}
	out := make([]dupes.Group, 0, len(groups))
	for _, g := range groups {
		if g.Size >= minSize {
			out = append(out, g)
		}
	}
	return out
}

func printGroups(w io.Writer, groups []dupes.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, ui.Success(ui.IconCheck)+" No duplicate files found.")
		return
	}
	for i, g := range groups {
		fmt.Fprintf(w, "%s %s x%d  %s\n", ui.Accent(fmt.Sprintf("%3d.", i+1)),
			core.FormatSize(g.Size), len(g.Paths), ui.Dim(g.Hash[:12]))
		for j, p := range g.Paths {
			marker := ui.Success("keep ")
			if j > 0 {
				marker = ui.Warning("extra")
			}
			fmt.Fprintf(w, "     %s %s\n", marker, p)
		}
	}
	fmt.Fprintf(w, "\n%s in %s, %s reclaimable\n", ui.Bold("Duplicates"),
		core.Plural(len(groups), "group"), core.FormatSize(dupes.TotalWasted(groups)))
}
