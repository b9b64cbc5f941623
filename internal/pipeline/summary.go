package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"ingestpipe/internal/domain"
)

// corpusProjectionHours is the corpus size RenderSummary projects total
// processing time against, matching the 1200-hour back-catalogue figure
// quoted throughout the ingestion planning notes.
const corpusProjectionHours = 1200.0

// RenderSummary formats a finished run's stats snapshot as a bordered table,
// grounded on the teacher's cmd/spindle table.go helper. When the observed
// real-time factor is known, it appends a full-corpus time projection; when
// nothing processed but items were skipped, it appends a suggestion rather
// than leaving the operator to guess why the run did nothing.
func RenderSummary(stats domain.IngestionStats, elapsed time.Duration) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total", stats.Total},
		{"Processed", stats.Processed},
		{"Skipped", stats.Skipped},
		{"Errored", stats.Errored},
		{"No audio", stats.NoAudio},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Standard ASR", stats.Methods.StandardOnly},
		{"Refined", stats.Methods.Refined},
		{"Fallback", stats.Methods.Fallback},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Known speaker segments", stats.Segments.Known},
		{"Guest segments", stats.Segments.Guest},
		{"Unknown segments", stats.Segments.Unknown},
	})
	tw.AppendSeparator()
	rtf := stats.RealTimeFactor()
	tw.AppendRows([]table.Row{
		{"Q1 peak depth", stats.Peaks.Q1AudioPeak},
		{"Q2 peak depth", stats.Peaks.Q2ASRPeak},
		{"Real-time factor", fmt.Sprintf("%.2fx", rtf)},
		{"Elapsed", elapsed.Round(time.Second).String()},
	})
	if rtf > 0 {
		projected := time.Duration(corpusProjectionHours * 3600 * rtf * float64(time.Second))
		tw.AppendRow(table.Row{
			fmt.Sprintf("Est. time for %.0fh corpus", corpusProjectionHours),
			projected.Round(time.Minute).String(),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	out := tw.Render()
	if stats.Processed == 0 && stats.Skipped > 0 {
		out += "\n" + nothingProcessedHint
	}
	return out
}

// nothingProcessedHint explains the most common reason a run reports zero
// processed items: every candidate was already ingested. Rather than leave
// the operator to guess, name the three flags that change the outcome.
const nothingProcessedHint = "Nothing processed, everything skipped as already ingested. " +
	"Use --limit-unprocessed to only list videos missing from the store, " +
	"--force to reprocess anyway, or a larger --limit if the skip count " +
	"exhausted the requested batch."

// ProgressReporter emits a live-updating progress line on an interactive
// terminal and periodic log-style lines otherwise, matching the teacher's
// isatty-gated status rendering so CI/non-TTY logs stay line-oriented
// instead of carriage-return spam.
type ProgressReporter struct {
	out         io.Writer
	interactive bool
	last        time.Time
	interval    time.Duration
}

// NewProgressReporter inspects out (normally os.Stdout) to decide whether it
// is a terminal.
func NewProgressReporter(out *os.File, logInterval time.Duration) *ProgressReporter {
	if logInterval <= 0 {
		logInterval = 30 * time.Second
	}
	return &ProgressReporter{
		out:         out,
		interactive: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		interval:    logInterval,
	}
}

// Report writes the current snapshot, throttled to interval on non-TTY
// output and refreshed in place (via carriage return) on a TTY.
func (p *ProgressReporter) Report(stats domain.IngestionStats) {
	line := fmt.Sprintf("processed=%d skipped=%d errored=%d total=%d",
		stats.Processed, stats.Skipped, stats.Errored, stats.Total)

	if p.interactive {
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
		return
	}

	now := time.Now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	fmt.Fprintln(p.out, line)
}

// Done finalises the progress line, moving to a fresh line on a TTY.
func (p *ProgressReporter) Done() {
	if p.interactive {
		fmt.Fprintln(p.out)
	}
}
