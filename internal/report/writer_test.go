package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/citawatch/internal/database"
	"github.com/nao1215/citawatch/internal/model"
)

var base = time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)

// createTestHistory creates a history with sample data, newest first.
func createTestHistory() *History {
	observations := []database.Observation{
		{
			ID: 3, Target: "Lima", Outcome: model.OutcomeSlotsFound,
			Labels: []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, Attempts: 1,
			Proxy: "direct", Action: "notified", Reason: "5 free slots", Timestamp: base.Add(12 * time.Minute),
		},
		{
			ID: 2, Target: "Lima", Outcome: model.OutcomeBlocked, ProbableBlock: true, Attempts: 3,
			Proxy: "http://gw.dataimpulse.com:823", Action: "block_alert", Reason: "blank page", Timestamp: base.Add(6 * time.Minute),
		},
		{
			ID: 1, Target: "Lima", Outcome: model.OutcomeNoSlots, Labels: []string{}, Attempts: 1,
			Proxy: "direct", Action: "none", Timestamp: base,
		},
	}
	return NewHistory("Lima", observations, nil)
}

// TestHistory tests the summary helpers.
func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("counts are derived from observations", func(t *testing.T) {
		t.Parallel()

		h := createTestHistory()
		want := map[model.Outcome]int{
			model.OutcomeTimeout:    0,
			model.OutcomeNoSlots:    1,
			model.OutcomeSlotsFound: 1,
			model.OutcomeBlocked:    1,
		}
		if diff := cmp.Diff(want, h.Counts); diff != "" {
			t.Errorf("counts mismatch (-want +got):\n%s", diff)
		}
		if h.Total() != 3 {
			t.Errorf("Total() = %d, want 3", h.Total())
		}
		if h.Latest().ID != 3 {
			t.Errorf("Latest() = %d, want 3", h.Latest().ID)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		h := NewHistory("", nil, nil)
		if h.Latest() != nil || h.Total() != 0 || h.Scope() != "all targets" {
			t.Errorf("unexpected empty history %+v", h)
		}
	})

	t.Run("given counts are kept", func(t *testing.T) {
		t.Parallel()

		counts := map[model.Outcome]int{model.OutcomeNoSlots: 40}
		h := NewHistory("Lima", nil, counts)
		if h.Total() != 40 {
			t.Errorf("Total() = %d, want 40", h.Total())
		}
	})
}

// TestLabelSummary tests label truncation.
func TestLabelSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"no labels", nil, "-"},
		{"under the cap", []string{"09:00", "10:00"}, "09:00, 10:00"},
		{"at the cap", []string{"a", "b", "c"}, "a, b, c"},
		{"over the cap", []string{"a", "b", "c", "d", "e"}, "a, b, c (+2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := labelSummary(tt.labels, 3); got != tt.want {
				t.Errorf("labelSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSimpleWriter tests the table writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes summary and rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestHistory())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"History of Lima (3 observations)",
			"slots_found",
			"blocked (probable block)",
			"09:00, 09:30, 10:00, 10:30 (+1)",
			"block_alert",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "gw.dataimpulse.com") {
			t.Error("proxy column must be hidden without verbose")
		}
	})

	t.Run("verbose adds detail columns", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true), WithMaxLabels(2)).Write(createTestHistory()); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		for _, want := range []string{"gw.dataimpulse.com", "blank page", "09:00, 09:30 (+3)"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(NewHistory("", nil, nil)); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "No observations recorded.") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes a parseable document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("v1.2.3"))
		if _, err := w.Write(createTestHistory()); err != nil {
			t.Fatal(err)
		}

		var doc struct {
			Version      string                 `json:"version"`
			Total        int                    `json:"total"`
			Target       string                 `json:"target"`
			Counts       map[string]int         `json:"counts"`
			Observations []database.Observation `json:"observations"`
		}
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if doc.Version != "v1.2.3" || doc.Total != 3 || doc.Target != "Lima" {
			t.Errorf("unexpected metadata %+v", doc)
		}
		want := map[string]int{"timeout": 0, "no_slots": 1, "slots_found": 1, "blocked": 1}
		if diff := cmp.Diff(want, doc.Counts); diff != "" {
			t.Errorf("counts mismatch (-want +got):\n%s", diff)
		}
		if len(doc.Observations) != 3 || doc.Observations[0].Outcome != model.OutcomeSlotsFound {
			t.Errorf("unexpected observations %+v", doc.Observations)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("empty history has an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(NewHistory("", nil, nil)); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"observations":[]`) {
			t.Errorf("unexpected output %s", buf.String())
		}
		if !strings.HasSuffix(buf.String(), "}\n") {
			t.Error("expected a trailing newline")
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestHistory()); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		for _, want := range []string{
			"# citawatch history",
			"## Outcome Summary",
			"```mermaid",
			"pie",
			"## Observations",
			"[!IMPORTANT]",
			"Lima had free slots",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	tests := []struct {
		name   string
		latest database.Observation
		alert  string
	}{
		{
			name:   "probable block warns",
			latest: database.Observation{Target: "Lima", Outcome: model.OutcomeBlocked, ProbableBlock: true, Attempts: 3},
			alert:  "[!WARNING]",
		},
		{
			name:   "timeout is a caution",
			latest: database.Observation{Target: "Lima", Outcome: model.OutcomeTimeout},
			alert:  "[!CAUTION]",
		},
		{
			name:   "no slots is a tip",
			latest: database.Observation{Target: "Lima", Outcome: model.OutcomeNoSlots},
			alert:  "[!TIP]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			h := NewHistory("Lima", []database.Observation{tt.latest}, nil)
			if _, err := NewMarkdownWriter(&buf).Write(h); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.alert) {
				t.Errorf("expected %s in:\n%s", tt.alert, buf.String())
			}
		})
	}

	t.Run("empty history has a note and no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(NewHistory("", nil, nil)); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!NOTE]") || strings.Contains(output, "```mermaid") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write(*History) (int, error) { return 0, errors.New("disk full") }

// TestMultiWriter tests fan-out and early stop.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
		n, err := mw.Write(createTestHistory())
		if err != nil {
			t.Fatal(err)
		}
		if a.Len() == 0 || b.Len() == 0 || n != a.Len()+b.Len() {
			t.Errorf("n=%d a=%d b=%d", n, a.Len(), b.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var b bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewJSONWriter(&b)).Write(createTestHistory())
		if err == nil {
			t.Fatal("expected an error")
		}
		if b.Len() != 0 {
			t.Error("writer after the failure must not run")
		}
	})
}
