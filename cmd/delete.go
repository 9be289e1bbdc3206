package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/gate"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

var (
	dryRun  bool
	assumeY bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Permanently delete one file or folder",
	Long: `Permanently delete one file or folder after re-authentication.

Entries graded "leave alone" (system areas, application bundles) are
refused before any prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		g, closeSink, err := deps.newGate(dryRun, assumeY)
		if err != nil {
			return err
		}
		defer closeSink()

		if err := g.DeletePermanently(cmd.Context(), path); err != nil {
			return gateMessage(cmd.ErrOrStderr(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ui.Success(ui.IconCheck), deleteVerb(), path)
		return nil
	},
}

func deleteVerb() string {
	if dryRun {
		return "Would delete"
	}
	return "Deleted"
}

func addGateFlags(c *cobra.Command) {
	c.Flags().BoolVar(&dryRun, "dry-run", false, "Authorize and report, but delete nothing")
	c.Flags().BoolVarP(&assumeY, "yes", "y", false, "Skip the authorization prompt")
}

func init() {
	addGateFlags(deleteCmd)
}

// deleteEntries sends entries through the gate: a single entry is deleted
// directly, several become a plan of their Safe members confirmed at once.
// It returns the paths actually removed.
func deleteEntries(ctx context.Context, w io.Writer, g *gate.Gate, entries []scan.Entry) ([]string, error) {
	switch len(entries) {
	case 0:
		return nil, gate.ErrEmptySelection
	case 1:
		if err := g.DeletePermanently(ctx, entries[0].Path); err != nil {
			return nil, err
		}
		fmt.Fprintf(w, "%s %s %s\n", ui.Success(ui.IconCheck), deleteVerb(), entries[0].Path)
		return []string{entries[0].Path}, nil
	}

	plan, err := g.Prepare(entries)
	if err != nil {
		return nil, err
	}
	if held := len(entries) - plan.Count; held > 0 {
		fmt.Fprintf(w, "%s %s not graded safe and kept; delete those one at a time.\n",
			ui.Warning(ui.IconWarning), core.Plural(held, "marked item"))
	}
	fmt.Fprintln(w, plan.Summary)

	out, err := g.ConfirmAndDelete(ctx, plan.SelectedPaths())
	if out != nil {
		printOutcome(w, out)
		return out.Deleted, err
	}
	return nil, err
}

func printOutcome(w io.Writer, out *gate.Outcome) {
	mark := ui.Success(ui.IconCheck)
	if len(out.Failed) > 0 {
		mark = ui.Warning(ui.IconWarning)
	}
	fmt.Fprintf(w, "%s %s\n", mark, out.Status())
	for _, f := range out.Failed {
		fmt.Fprintf(w, "  %s %s\n", ui.Danger(ui.IconError), f.Error())
	}
	for _, p := range out.Skipped {
		fmt.Fprintf(w, "  %s skipped %s\n", ui.Dim(ui.IconBullet), p)
	}
}

// gateMessage turns the gate's expected refusals into one-line notices.
// Other errors are returned unchanged.
func gateMessage(w io.Writer, err error) error {
	switch {
	case errors.Is(err, gate.ErrNotAuthorized):
		fmt.Fprintln(w, ui.Warning("Deletion not authorized; nothing was removed."))
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, ui.Warning("Cancelled; nothing was removed."))
	case errors.Is(err, gate.ErrEmptySelection):
		fmt.Fprintln(w, ui.Dim("Nothing selected to delete."))
	case errors.Is(err, gate.ErrLeaveAlone):
		fmt.Fprintln(w, ui.Danger(err.Error()))
	default:
		return err
	}
	return nil
}

// graded classifies bare paths for the gate.
func graded(c *safety.Classifier, paths []string, size int64) []scan.Entry {
	out := make([]scan.Entry, len(paths))
	for i, p := range paths {
		grade, reason := c.Classify(p, false)
		out[i] = scan.Entry{Path: p, Size: size, Grade: grade, Reason: reason}
	}
	return out
}
