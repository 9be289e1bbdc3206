// Package gate guards every destructive operation behind a plan, a single
// authorization step and an audit record.
package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/lakshaymaurya-felt/macmole/internal/audit"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

var (
	// ErrNoScanResults is returned by Prepare when there is nothing from a
	// completed scan to work with.
	ErrNoScanResults = errors.New("no completed scan results; run a scan first")

	// ErrNotPrepared is returned by ConfirmAndDelete before Prepare.
	ErrNotPrepared = errors.New("no deletion plan prepared")

	// ErrEmptySelection is returned when nothing deletable is selected.
	ErrEmptySelection = errors.New("nothing selected for deletion")

	// ErrNotAuthorized is returned when the user declines.
	ErrNotAuthorized = errors.New("deletion not authorized")

	// ErrAuthUnavailable wraps failures of the authorization collaborator.
	ErrAuthUnavailable = errors.New("authorization unavailable")

	// ErrLeaveAlone is returned when a single delete targets an entry that
	// must be left alone.
	ErrLeaveAlone = errors.New("entry must be left alone")
)

// Decision is the outcome of an authorization request.
type Decision struct {
	Granted bool
	Method  string
}

// Authorizer asks the user to approve a destructive operation. It may
// block for as long as the user takes and must return ctx.Err() when the
// context is cancelled.
type Authorizer interface {
	Authorize(ctx context.Context, reason string) (Decision, error)
}

// AuditSink receives one record per bulk deletion.
type AuditSink interface {
	Append(ctx context.Context, r audit.Record) error
}

// Remover performs the irreversible removal of one entry.
type Remover interface {
	Remove(path string, isDir bool) error
}

// Options tunes a Gate.
type Options struct {
	// DryRun authorizes and reports but removes nothing and writes no
	// audit record.
	DryRun bool
}

// Gate turns a set of scan entries into an authorized deletion. It keeps
// the most recent plan between Prepare and ConfirmAndDelete.
type Gate struct {
	classifier *safety.Classifier
	auth       Authorizer
	sink       AuditSink
	remover    Remover
	dryRun     bool
	log        zerolog.Logger

	mu   sync.Mutex
	plan *Plan
}

// New creates a gate.
func New(c *safety.Classifier, a Authorizer, s AuditSink, r Remover, opts Options, log zerolog.Logger) *Gate {
	return &Gate{
		classifier: c,
		auth:       a,
		sink:       s,
		remover:    r,
		dryRun:     opts.DryRun,
		log:        log,
	}
}

// Failure is one entry that could not be removed.
type Failure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Error renders the failure for display.
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// Outcome reports what a confirmed deletion actually did.
type Outcome struct {
	Deleted      []string      `json:"deleted"`
	Skipped      []string      `json:"skipped"`
	Failed       []Failure     `json:"failed"`
	DeletedBytes int64         `json:"deleted_bytes"`
	Method       string        `json:"method"`
	DryRun       bool          `json:"dry_run"`
	Record       *audit.Record `json:"record,omitempty"`
}

// Status is a one-line description for the status bar.
func (o *Outcome) Status() string {
	verb, freed := "Deleted", "freed"
	if o.DryRun {
		verb, freed = "Would delete", "would free"
	}
	s := fmt.Sprintf("%s %d items, %s %s", verb, len(o.Deleted), freed, humanize.IBytes(uint64(o.DeletedBytes)))
	if len(o.Skipped) > 0 {
		s += fmt.Sprintf(", skipped %d", len(o.Skipped))
	}
	if len(o.Failed) > 0 {
		s += fmt.Sprintf(", %d failed", len(o.Failed))
	}
	return s
}

// ConfirmAndDelete authorizes once and then removes every selected entry
// from the current plan, re-checking its grade first. Removal is best
// effort per item. Exactly one audit record is written for the attempt.
// The returned Outcome is non-nil whenever removal was attempted, even if
// writing the audit record then fails.
func (g *Gate) ConfirmAndDelete(ctx context.Context, selected []string) (*Outcome, error) {
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	g.mu.Lock()
	plan := g.plan
	g.mu.Unlock()
	if plan == nil {
		return nil, ErrNotPrepared
	}

	byPath := lo.SliceToMap(plan.Items, func(e scan.Entry) (string, scan.Entry) { return e.Path, e })
	var outcome Outcome
	var targets []scan.Entry
	for _, p := range lo.Uniq(selected) {
		e, ok := byPath[filepath.Clean(p)]
		if !ok {
			outcome.Skipped = append(outcome.Skipped, p)
			continue
		}
		targets = append(targets, e)
	}
	if len(targets) == 0 {
		return nil, ErrEmptySelection
	}

	total := lo.SumBy(targets, func(e scan.Entry) int64 { return e.Size })
	reason := fmt.Sprintf("Permanently delete %d items (%s)", len(targets), humanize.IBytes(uint64(total)))
	dec, err := g.authorize(ctx, reason)
	if err != nil {
		return nil, err
	}

	outcome.Method = dec.Method
	outcome.DryRun = g.dryRun
	for _, e := range targets {
		g.removeOne(e, &outcome)
	}

	g.mu.Lock()
	if g.plan == plan {
		plan.forget(outcome.Deleted)
	}
	g.mu.Unlock()

	log := g.log.With().Int("deleted", len(outcome.Deleted)).Int("failed", len(outcome.Failed)).
		Int("skipped", len(outcome.Skipped)).Int64("bytes", outcome.DeletedBytes).Str("method", dec.Method).Logger()
	if g.dryRun {
		log.Info().Msg("dry run finished")
		return &outcome, nil
	}
	log.Info().Msg("deletion finished")

	rec := audit.NewRecord(len(outcome.Deleted), outcome.DeletedBytes, dec.Method)
	outcome.Record = &rec
	// The removals already happened; a cancelled context must not lose the
	// record.
	if err := g.sink.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Msg("audit record not written")
		return &outcome, fmt.Errorf("write audit record: %w", err)
	}
	return &outcome, nil
}

// removeOne re-verifies e against the filesystem and the classifier before
// removing it.
func (g *Gate) removeOne(e scan.Entry, o *Outcome) {
	info, err := os.Lstat(e.Path)
	if err != nil {
		o.Failed = append(o.Failed, Failure{Path: e.Path, Err: err})
		return
	}
	isDir := info.IsDir()
	if grade, reason := g.classifier.Classify(e.Path, isDir); grade == safety.LeaveAlone {
		g.log.Warn().Str("path", e.Path).Str("reason", reason).Msg("skipping entry that must be left alone")
		o.Skipped = append(o.Skipped, e.Path)
		return
	}

	if !g.dryRun {
		if err := g.remover.Remove(e.Path, isDir); err != nil {
			g.log.Warn().Err(err).Str("path", e.Path).Msg("remove failed")
			o.Failed = append(o.Failed, Failure{Path: e.Path, Err: err})
			return
		}
	}
	o.Deleted = append(o.Deleted, e.Path)
	o.DeletedBytes += e.Size
}

// DeletePermanently authorizes and removes a single entry. It writes no
// audit record.
func (g *Gate) DeletePermanently(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if grade, reason := g.classifier.Classify(path, info.IsDir()); grade == safety.LeaveAlone {
		return fmt.Errorf("%w: %s", ErrLeaveAlone, reason)
	}

	dec, err := g.authorize(ctx, fmt.Sprintf("Permanently delete %s", filepath.Base(path)))
	if err != nil {
		return err
	}
	if g.dryRun {
		g.log.Info().Str("path", path).Msg("dry run: would delete")
		return nil
	}
	if err := g.remover.Remove(path, info.IsDir()); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	g.mu.Lock()
	if g.plan != nil {
		g.plan.forget([]string{path})
	}
	g.mu.Unlock()
	g.log.Info().Str("path", path).Str("method", dec.Method).Msg("deleted")
	return nil
}

func (g *Gate) authorize(ctx context.Context, reason string) (Decision, error) {
	dec, err := g.auth.Authorize(ctx, reason)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Decision{}, fmt.Errorf("authorization cancelled: %w", err)
	case err != nil:
		return Decision{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	case !dec.Granted:
		return Decision{}, ErrNotAuthorized
	}
	// Dismissed after granting still counts as a cancellation.
	if err := ctx.Err(); err != nil {
		return Decision{}, fmt.Errorf("authorization cancelled: %w", err)
	}
	return dec, nil
}
