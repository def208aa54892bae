package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/citawatch/internal/database"
)

// JSONWriter outputs history in JSON format.
//
// Design decision: We use standard encoding/json. Outcomes marshal as their
// text names through model.Outcome's TextMarshaler, so the counts map has
// readable keys without a conversion step.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into the document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the citawatch version into the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a history with output metadata.
type JSONReport struct {
	// Version is the citawatch version that wrote the document.
	Version string `json:"version,omitempty"`

	// Total is the number of counted observations.
	Total int `json:"total"`

	*History
}

// Write outputs the history as a single JSON document.
func (w *JSONWriter) Write(h *History) (int, error) {
	observations := h.Observations
	if observations == nil {
		observations = []database.Observation{}
	}
	copied := *h
	copied.Observations = observations

	return w.writeJSON(JSONReport{Version: w.version, Total: h.Total(), History: &copied})
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
