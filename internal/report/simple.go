package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nao1215/citawatch/internal/model"
)

// defaultMaxLabels caps the labels shown per row.
const defaultMaxLabels = 4

// SimpleWriter outputs history as terminal tables.
//
// Design decision: Tables are rendered with go-pretty in its light style
// rather than with ANSI colors, so the output can be piped to a file
// without escape codes.
type SimpleWriter struct {
	baseWriter

	// verbose adds the proxy, reason and error columns.
	verbose bool

	// maxLabels caps the labels shown per row.
	maxLabels int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the detail columns.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithMaxLabels sets how many labels a row shows before "(+N)".
func WithMaxLabels(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n > 0 {
			w.maxLabels = n
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		maxLabels:  defaultMaxLabels,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary and the observation table.
func (w *SimpleWriter) Write(h *History) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "History of %s (%d observations)\n\n", h.Scope(), h.Total())
	sb.WriteString(w.summaryTable(h))
	sb.WriteString("\n\n")

	if len(h.Observations) == 0 {
		sb.WriteString("No observations recorded.\n")
	} else {
		sb.WriteString(w.observationTable(h))
		sb.WriteString("\n")
	}
	return io.WriteString(w.output, sb.String())
}

// summaryTable renders the per-outcome counts.
func (w *SimpleWriter) summaryTable(h *History) string {
	t := newTable()
	t.AppendHeader(table.Row{"Outcome", "Count"})
	for _, o := range model.AllOutcomes() {
		t.AppendRow(table.Row{o.String(), h.Counts[o]})
	}
	t.AppendFooter(table.Row{"total", h.Total()})
	return t.Render()
}

// observationTable renders one row per observation.
func (w *SimpleWriter) observationTable(h *History) string {
	t := newTable()
	header := table.Row{"#", "Time", "Target", "Outcome", "Slots", "Attempts", "Action"}
	if w.verbose {
		header = append(header, "Proxy", "Reason", "Error")
	}
	t.AppendHeader(header)

	for _, o := range h.Observations {
		outcome := o.Outcome.String()
		if o.ProbableBlock {
			outcome += " (probable block)"
		}
		row := table.Row{
			o.ID,
			o.Timestamp.Local().Format(timeLayout),
			o.Target,
			outcome,
			labelSummary(o.Labels, w.maxLabels),
			strconv.Itoa(o.Attempts),
			o.Action,
		}
		if w.verbose {
			row = append(row, o.Proxy, orDash(o.Reason), orDash(o.Error))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// newTable returns a table writer in the package style.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}
