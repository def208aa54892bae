package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/citawatch/internal/model"
)

// markdownRows caps the observation table of the Markdown report.
const markdownRows = 50

// MarkdownWriter outputs history in Markdown format for sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, including GitHub alerts and a mermaid pie chart of outcomes.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the history in Markdown format.
func (w *MarkdownWriter) Write(h *History) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, h)
	w.writeSummary(md, h)
	w.writeObservations(md, h)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the scope table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, h *History) {
	md.H1("citawatch history")
	md.PlainText("")

	latest := "-"
	if o := h.Latest(); o != nil {
		latest = o.Timestamp.Local().Format(timeLayout)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scope", h.Scope()},
			{"Observations", strconv.Itoa(h.Total())},
			{"Latest check", latest},
			{"Generated", h.Generated.Local().Format(timeLayout)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the outcome table, the chart and the alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, h *History) {
	md.H2("Outcome Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllOutcomes())+1)
	for _, o := range model.AllOutcomes() {
		rows = append(rows, []string{outcomeIcon(o) + " " + o.String(), strconv.Itoa(h.Counts[o])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(h.Total()) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if h.Total() > 0 {
		w.writePieChart(md, h)
	}
	w.writeAlert(md, h)
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, h *History) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outcome Distribution"),
		piechart.WithShowData(true),
	)
	for _, o := range model.AllOutcomes() {
		if n := h.Counts[o]; n > 0 {
			chart.LabelAndIntValue(o.String(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the latest observation.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, h *History) {
	latest := h.Latest()
	switch {
	case latest == nil:
		md.Note("No observations recorded yet.")
	case latest.Outcome == model.OutcomeSlotsFound:
		md.Importantf("%s had free slots at the latest check: %s.",
			latest.Target, labelSummary(latest.Labels, defaultMaxLabels))
	case latest.ProbableBlock || latest.Outcome == model.OutcomeBlocked:
		md.Warningf("%s looked blocked at the latest check after %d attempt(s).",
			latest.Target, latest.Attempts)
	case latest.Outcome == model.OutcomeTimeout:
		md.Cautionf("The latest check of %s was inconclusive.", latest.Target)
	default:
		md.Tip("No free slots at the latest check.")
	}
	md.PlainText("")
}

// writeObservations writes the newest observations as a table.
func (w *MarkdownWriter) writeObservations(md *markdown.Markdown, h *History) {
	md.H2("Observations")
	md.PlainText("")

	if len(h.Observations) == 0 {
		md.PlainText("No observations recorded.")
		md.PlainText("")
		return
	}

	shown := h.Observations
	if len(shown) > markdownRows {
		shown = shown[:markdownRows]
	}
	rows := make([][]string, len(shown))
	for i, o := range shown {
		rows[i] = []string{
			o.Timestamp.Local().Format(timeLayout),
			o.Target,
			outcomeIcon(o.Outcome) + " " + o.Outcome.String(),
			labelSummary(o.Labels, defaultMaxLabels),
			strconv.Itoa(o.Attempts),
			orDash(o.Reason),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Time", "Target", "Outcome", "Slots", "Attempts", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")

	if rest := len(h.Observations) - len(shown); rest > 0 {
		md.PlainTextf("*%d older observation(s) omitted.*", rest)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by citawatch*")
}

// outcomeIcon returns the marker used for an outcome.
func outcomeIcon(o model.Outcome) string {
	switch o {
	case model.OutcomeSlotsFound:
		return "✅"
	case model.OutcomeNoSlots:
		return "⚪"
	case model.OutcomeBlocked:
		return "⛔"
	default:
		return "⏳"
	}
}
