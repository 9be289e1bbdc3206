package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/macmole/internal/audit"
	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type fakeAuth struct {
	mu      sync.Mutex
	calls   int
	reasons []string
	dec     Decision
	err     error
	block   bool
}

func (f *fakeAuth) Authorize(ctx context.Context, reason string) (Decision, error) {
	f.mu.Lock()
	f.calls++
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return Decision{}, ctx.Err()
	}
	return f.dec, f.err
}

type fakeSink struct {
	records []audit.Record
	err     error
}

func (f *fakeSink) Append(_ context.Context, r audit.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

type fakeRemover struct {
	removed []string
	fail    map[string]error
}

func (f *fakeRemover) Remove(path string, _ bool) error {
	if err := f.fail[path]; err != nil {
		return err
	}
	f.removed = append(f.removed, path)
	return os.RemoveAll(path)
}

type fixture struct {
	gate    *Gate
	auth    *fakeAuth
	sink    *fakeSink
	remover *fakeRemover
	dir     string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		auth:    &fakeAuth{dec: Decision{Granted: true, Method: "password"}},
		sink:    &fakeSink{},
		remover: &fakeRemover{fail: map[string]error{}},
		dir:     t.TempDir(),
	}
	f.gate = New(safety.New(t.TempDir()), f.auth, f.sink, f.remover, opts, zerolog.Nop())
	return f
}

func (f *fixture) file(t *testing.T, rel string, size int, grade safety.Grade) scan.Entry {
	t.Helper()
	p := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return scan.Entry{Path: p, Size: int64(size), Grade: grade, Reason: "test"}
}

// ─── Prepare ─────────────────────────────────────────────────────────────────

func TestPrepare_KeepsOnlySafe(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.file(t, "cache/a.log", 100, safety.Safe)
	b := f.file(t, "movies/b.mov", 900, safety.Review)
	c := f.file(t, "cache/c.zip", 50, safety.Safe)
	d := f.file(t, "sys/d", 10, safety.LeaveAlone)

	plan, err := f.gate.Prepare([]scan.Entry{a, b, c, d})
	require.NoError(t, err)

	assert.Equal(t, []scan.Entry{a, c}, plan.Items)
	assert.Equal(t, 2, plan.Count)
	assert.Equal(t, int64(150), plan.TotalBytes)
	assert.Equal(t, []string{a.Path, c.Path}, plan.SelectedPaths())
	assert.Contains(t, plan.Summary, "2 items")

	cur, ok := f.gate.Current()
	require.True(t, ok)
	assert.Same(t, plan, cur)
}

func TestPrepare_EmptyCandidates(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.gate.Prepare(nil)
	assert.ErrorIs(t, err, ErrNoScanResults)
}

func TestPrepare_NothingSafe(t *testing.T) {
	f := newFixture(t, Options{})
	plan, err := f.gate.Prepare([]scan.Entry{f.file(t, "x.mov", 1, safety.Review)})
	require.NoError(t, err)
	assert.Zero(t, plan.Count)
	assert.Empty(t, plan.SelectedPaths())
	assert.Equal(t, "Nothing in the results is safe to delete.", plan.Summary)
}

func TestPrepare_TopContributorsTiesInFirstSeenOrder(t *testing.T) {
	f := newFixture(t, Options{})
	entries := []scan.Entry{
		f.file(t, "one/a.log", 10, safety.Safe),
		f.file(t, "two/b.zip", 10, safety.Safe),
		f.file(t, "three/c.dmg", 30, safety.Safe),
		f.file(t, "four/d.txt", 10, safety.Safe),
		f.file(t, "one/e.log", 5, safety.Safe),
	}

	plan, err := f.gate.Prepare(entries)
	require.NoError(t, err)

	assert.Equal(t, []Contribution{
		{Key: filepath.Join(f.dir, "three"), Bytes: 30},
		{Key: filepath.Join(f.dir, "one"), Bytes: 15},
		{Key: filepath.Join(f.dir, "two"), Bytes: 10},
	}, plan.TopFolders)
	assert.Equal(t, []Contribution{
		{Key: ".dmg", Bytes: 30},
		{Key: ".log", Bytes: 15},
		{Key: ".zip", Bytes: 10},
	}, plan.TopExtensions)
}

func TestPlan_Toggle(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.file(t, "a", 1, safety.Safe)
	plan, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	assert.False(t, plan.Toggle(a.Path))
	assert.Empty(t, plan.SelectedPaths())
	assert.True(t, plan.Toggle(a.Path))
}

// ─── ConfirmAndDelete ────────────────────────────────────────────────────────

func TestConfirmAndDelete_EmptySelectionNeverAuthorizes(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.gate.Prepare([]scan.Entry{f.file(t, "a", 1, safety.Safe)})
	require.NoError(t, err)

	_, err = f.gate.ConfirmAndDelete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
	_, err = f.gate.ConfirmAndDelete(context.Background(), []string{"/not/in/plan"})
	assert.ErrorIs(t, err, ErrEmptySelection)

	assert.Zero(t, f.auth.calls)
	assert.Empty(t, f.remover.removed)
	assert.Empty(t, f.sink.records)
}

func TestConfirmAndDelete_NotPrepared(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.gate.ConfirmAndDelete(context.Background(), []string{"/x"})
	assert.ErrorIs(t, err, ErrNotPrepared)
	assert.Zero(t, f.auth.calls)
}

func TestConfirmAndDelete_Success(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.file(t, "cache/a", 100, safety.Safe)
	b := f.file(t, "cache/b", 200, safety.Safe)
	plan, err := f.gate.Prepare([]scan.Entry{a, b})
	require.NoError(t, err)

	out, err := f.gate.ConfirmAndDelete(context.Background(), plan.SelectedPaths())
	require.NoError(t, err)

	assert.Equal(t, 1, f.auth.calls)
	assert.Contains(t, f.auth.reasons[0], "2 items")
	assert.Equal(t, []string{a.Path, b.Path}, out.Deleted)
	assert.Equal(t, int64(300), out.DeletedBytes)
	assert.Equal(t, "password", out.Method)
	assert.NoFileExists(t, a.Path)
	assert.NoFileExists(t, b.Path)

	require.Len(t, f.sink.records, 1)
	rec := f.sink.records[0]
	assert.Equal(t, 2, rec.ItemCount)
	assert.Equal(t, int64(300), rec.TotalBytes)
	assert.Equal(t, "password", rec.Method)
	assert.Equal(t, &rec, out.Record)

	assert.Empty(t, plan.Items, "deleted entries leave the plan")
	assert.Equal(t, "Deleted 2 items, freed 300 B", out.Status())
}

func TestConfirmAndDelete_Denied(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.dec = Decision{Granted: false}
	a := f.file(t, "a", 1, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	_, err = f.gate.ConfirmAndDelete(context.Background(), []string{a.Path})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.FileExists(t, a.Path)
	assert.Empty(t, f.sink.records)
}

func TestConfirmAndDelete_Unavailable(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.err = errors.New("no tty")
	a := f.file(t, "a", 1, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	_, err = f.gate.ConfirmAndDelete(context.Background(), []string{a.Path})
	assert.ErrorIs(t, err, ErrAuthUnavailable)
	assert.FileExists(t, a.Path)
	assert.Empty(t, f.sink.records)
}

func TestConfirmAndDelete_CancelledPrompt(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.block = true
	a := f.file(t, "a", 1, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.gate.ConfirmAndDelete(ctx, []string{a.Path})
		done <- err
	}()
	cancel()

	err = <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.auth.calls)
	assert.FileExists(t, a.Path)
	assert.Empty(t, f.sink.records)
}

func TestConfirmAndDelete_RecheckSkipsLeaveAlone(t *testing.T) {
	f := newFixture(t, Options{})
	ok := f.file(t, "cache/ok", 10, safety.Safe)

	// A bundle that was graded Safe by mistake at selection time.
	bundle := filepath.Join(f.dir, "Thing.app")
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "Contents"), 0o755))
	forged := scan.Entry{Path: bundle, Size: 999, IsDir: true, Grade: safety.Safe}

	_, err := f.gate.Prepare([]scan.Entry{ok, forged})
	require.NoError(t, err)

	out, err := f.gate.ConfirmAndDelete(context.Background(), []string{ok.Path, bundle})
	require.NoError(t, err)

	assert.Equal(t, []string{ok.Path}, out.Deleted)
	assert.Equal(t, []string{bundle}, out.Skipped)
	assert.NotContains(t, f.remover.removed, bundle)
	assert.DirExists(t, bundle)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, 1, f.sink.records[0].ItemCount)
	assert.Equal(t, int64(10), f.sink.records[0].TotalBytes)
}

func TestConfirmAndDelete_BestEffort(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.file(t, "a", 1, safety.Safe)
	b := f.file(t, "b", 2, safety.Safe)
	c := f.file(t, "c", 4, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a, b, c})
	require.NoError(t, err)

	require.NoError(t, os.Remove(a.Path))
	f.remover.fail[b.Path] = errors.New("busy")

	out, err := f.gate.ConfirmAndDelete(context.Background(), []string{a.Path, b.Path, c.Path})
	require.NoError(t, err)

	assert.Equal(t, []string{c.Path}, out.Deleted)
	require.Len(t, out.Failed, 2)
	assert.Equal(t, a.Path, out.Failed[0].Path)
	assert.ErrorIs(t, out.Failed[0].Err, os.ErrNotExist)
	assert.Equal(t, b.Path, out.Failed[1].Path)
	require.Len(t, f.sink.records, 1)
	assert.Equal(t, 1, f.sink.records[0].ItemCount)
	assert.Equal(t, int64(4), f.sink.records[0].TotalBytes)
	assert.Contains(t, out.Status(), "2 failed")
}

func TestConfirmAndDelete_AuditFailureStillReports(t *testing.T) {
	f := newFixture(t, Options{})
	f.sink.err = errors.New("disk full")
	a := f.file(t, "a", 3, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	out, err := f.gate.ConfirmAndDelete(context.Background(), []string{a.Path})
	assert.Error(t, err)
	require.NotNil(t, out)
	assert.Equal(t, []string{a.Path}, out.Deleted)
}

func TestConfirmAndDelete_DryRun(t *testing.T) {
	f := newFixture(t, Options{DryRun: true})
	a := f.file(t, "a", 7, safety.Safe)
	_, err := f.gate.Prepare([]scan.Entry{a})
	require.NoError(t, err)

	out, err := f.gate.ConfirmAndDelete(context.Background(), []string{a.Path})
	require.NoError(t, err)

	assert.Equal(t, 1, f.auth.calls)
	assert.True(t, out.DryRun)
	assert.Equal(t, []string{a.Path}, out.Deleted)
	assert.FileExists(t, a.Path)
	assert.Empty(t, f.remover.removed)
	assert.Empty(t, f.sink.records)
	assert.Nil(t, out.Record)
	assert.Equal(t, "Would delete 1 items, would free 7 B", out.Status())
}

func TestConfirmAndDelete_WithDeleter(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	g := New(safety.New(dir), &fakeAuth{dec: Decision{Granted: true, Method: "flag"}}, sink,
		core.NewDeleter(dir), Options{}, zerolog.Nop())

	p := filepath.Join(dir, "tmpdir")
	require.NoError(t, os.MkdirAll(filepath.Join(p, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p, "nested", "f"), make([]byte, 8), 0o644))

	_, err := g.Prepare([]scan.Entry{{Path: p, Size: 8, IsDir: true, Grade: safety.Safe}})
	require.NoError(t, err)
	out, err := g.ConfirmAndDelete(context.Background(), []string{p})
	require.NoError(t, err)
	assert.Equal(t, []string{p}, out.Deleted)
	assert.NoDirExists(t, p)
}

// ─── DeletePermanently ───────────────────────────────────────────────────────

func TestDeletePermanently(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.file(t, "single", 5, safety.Safe)

	require.NoError(t, f.gate.DeletePermanently(context.Background(), a.Path))
	assert.NoFileExists(t, a.Path)
	assert.Equal(t, 1, f.auth.calls)
	assert.Empty(t, f.sink.records)
}

func TestDeletePermanently_RefusesLeaveAlone(t *testing.T) {
	f := newFixture(t, Options{})
	bundle := filepath.Join(f.dir, "Keep.app")
	require.NoError(t, os.MkdirAll(bundle, 0o755))

	err := f.gate.DeletePermanently(context.Background(), bundle)
	assert.ErrorIs(t, err, ErrLeaveAlone)
	assert.Zero(t, f.auth.calls)
	assert.DirExists(t, bundle)
}

func TestDeletePermanently_Denied(t *testing.T) {
	f := newFixture(t, Options{})
	f.auth.dec = Decision{}
	a := f.file(t, "single", 5, safety.Safe)

	err := f.gate.DeletePermanently(context.Background(), a.Path)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.FileExists(t, a.Path)
}
