package cmd

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

// structured reports whether --json or --yaml was requested.
func structured() bool {
	return asJSON || asYAML
}

// writeReport encodes v in the requested structured format.
func writeReport(w io.Writer, v any) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// interactive reports whether a full-screen UI may take over the terminal.
func interactive() bool {
	return !structured() && isTerminal(os.Stdout) && isTerminal(os.Stdin)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressReporter draws engine progress on stderr. It stays silent when
// stderr is not a terminal.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgress(description string) *progressReporter {
	if !isTerminal(os.Stderr) {
		return &progressReporter{}
	}
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)
	return &progressReporter{bar: bar}
}

// update is the onProgress callback for the engines' blocking runs.
func (p *progressReporter) update(pr scan.Progress) {
	if p.bar == nil {
		return
	}
	if pr.Status != "" {
		p.bar.Describe(pr.Status)
	}
	_ = p.bar.Set(int(pr.Fraction * 100))
}

func (p *progressReporter) done() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
