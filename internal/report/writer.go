package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/citawatch/internal/database"
	"github.com/nao1215/citawatch/internal/model"
)

// History is the input of every writer.
type History struct {
	// Target is the target the history belongs to. Empty means all targets.
	Target string `json:"target,omitempty"`

	// Observations are ordered newest first.
	Observations []database.Observation `json:"observations"`

	// Counts holds the number of observations per outcome.
	Counts map[model.Outcome]int `json:"counts"`

	// Generated is when the history was read.
	Generated time.Time `json:"generated"`
}

// NewHistory builds a History. Nil counts are derived from observations.
func NewHistory(target string, observations []database.Observation, counts map[model.Outcome]int) *History {
	if counts == nil {
		counts = CountOutcomes(observations)
	}
	return &History{
		Target:       target,
		Observations: observations,
		Counts:       counts,
		Generated:    time.Now(),
	}
}

// CountOutcomes counts observations per outcome. Every outcome is present.
func CountOutcomes(observations []database.Observation) map[model.Outcome]int {
	counts := make(map[model.Outcome]int, len(model.AllOutcomes()))
	for _, o := range model.AllOutcomes() {
		counts[o] = 0
	}
	for _, obs := range observations {
		counts[obs.Outcome]++
	}
	return counts
}

// Total returns the number of counted observations.
func (h *History) Total() int {
	total := 0
	for _, n := range h.Counts {
		total += n
	}
	return total
}

// Latest returns the newest observation, or nil for an empty history.
func (h *History) Latest() *database.Observation {
	if len(h.Observations) == 0 {
		return nil
	}
	return &h.Observations[0]
}

// Scope returns the target name, or "all targets".
func (h *History) Scope() string {
	if h.Target == "" {
		return "all targets"
	}
	return h.Target
}

// Writer defines the interface for history output.
type Writer interface {
	// Write outputs the history and returns the number of bytes written.
	Write(h *History) (int, error)
}

// MultiWriter writes to multiple Writers in order.
//
// Design decision: Writer is not an io.Writer, it writes a history value,
// so io.MultiWriter cannot be reused here.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the history to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(h *History) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(h)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for history writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used by the text and Markdown writers.
const timeLayout = "2006-01-02 15:04:05 MST"

// labelSummary joins up to maxLabels labels and notes the rest.
func labelSummary(labels []string, maxLabels int) string {
	if len(labels) == 0 {
		return "-"
	}
	if len(labels) <= maxLabels {
		return strings.Join(labels, ", ")
	}
	return strings.Join(labels[:maxLabels], ", ") + " (+" + strconv.Itoa(len(labels)-maxLabels) + ")"
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
