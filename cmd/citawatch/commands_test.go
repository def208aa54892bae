package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nao1215/citawatch/internal/config"
	"github.com/nao1215/citawatch/internal/database"
	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/notify"
	"github.com/nao1215/citawatch/internal/proxy"
	"github.com/nao1215/citawatch/internal/retry"
)

// fakeChecker returns canned reports per target name.
type fakeChecker struct {
	mu      sync.Mutex
	reports map[string]retry.Report
	errs    map[string]error
	calls   []string
}

func (f *fakeChecker) Check(_ context.Context, t model.Target) (retry.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, t.Name)
	return f.reports[t.Name], f.errs[t.Name]
}

func slotsReport(labels ...string) retry.Report {
	return retry.Report{
		AttemptID: "attempt-" + strings.Join(labels, "-"),
		Attempts:  1,
		Result: model.Result{
			Outcome:     model.OutcomeSlotsFound,
			Labels:      labels,
			Diagnostics: model.Diagnostics{Reason: "free slots", DateLabel: "Viernes 7 de marzo"},
		},
	}
}

func noSlotsReport() retry.Report {
	return retry.Report{Attempts: 1, Result: model.Result{Outcome: model.OutcomeNoSlots}}
}

// runConfig returns a Config with targets and a temporary data directory.
func runConfig(t *testing.T, names ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	for _, n := range names {
		cfg.Targets = append(cfg.Targets, model.Target{
			Name:      n,
			Mode:      model.ModeDirectWidget,
			WidgetURL: "https://www.citaconsular.es/es/hosteds/widgetdefault/" + strings.ToLower(n),
		})
	}
	return cfg
}

// storedHistory reads every observation saved under dir.
func storedHistory(t *testing.T, dir string) []database.Observation {
	t.Helper()

	db, err := database.Open(dir, database.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer db.Close()
	obs, err := db.GetHistory(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	return obs
}

// TestWatchWith tests one watch round over a fake checker.
func TestWatchWith(t *testing.T) {
	t.Parallel()

	t.Run("notifies new slots and records the round", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Lima")
		cfg.MaxRounds = 1
		checker := &fakeChecker{reports: map[string]retry.Report{"Lima": slotsReport("09:00", "10:30")}}
		ch := &recordingChannel{}
		var out bytes.Buffer

		if err := watchWith(t.Context(), cfg, checker, ch, &out, discardLogger()); err != nil {
			t.Fatalf("watchWith() = %v", err)
		}

		msgs := ch.messages()
		if len(msgs) != 2 {
			t.Fatalf("expected start and hit messages, got %q", msgs)
		}
		if msgs[0] != notify.StartMessage([]string{"Lima"}) {
			t.Errorf("first message = %q", msgs[0])
		}
		if !strings.Contains(msgs[1], "09:00, 10:30") {
			t.Errorf("hit message = %q", msgs[1])
		}
		if !strings.Contains(out.String(), "SLOTS_FOUND") || !strings.Contains(out.String(), "[notified]") {
			t.Errorf("console output = %q", out.String())
		}

		rows := storedHistory(t, cfg.DBDir)
		if len(rows) != 1 {
			t.Fatalf("expected one stored observation, got %d", len(rows))
		}
		if rows[0].Target != "Lima" || rows[0].Outcome != model.OutcomeSlotsFound || !rows[0].Notified {
			t.Errorf("unexpected row %+v", rows[0])
		}
	})

	t.Run("history can be disabled", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Lima")
		cfg.MaxRounds = 1
		cfg.SaveToDB = false
		checker := &fakeChecker{reports: map[string]retry.Report{"Lima": noSlotsReport()}}

		if err := watchWith(t.Context(), cfg, checker, &recordingChannel{}, &bytes.Buffer{}, discardLogger()); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); !os.IsNotExist(err) {
			t.Error("no database file expected")
		}
	})

	t.Run("a failed start message does not stop the watch", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Lima")
		cfg.MaxRounds = 1
		checker := &fakeChecker{reports: map[string]retry.Report{"Lima": noSlotsReport()}}
		ch := &recordingChannel{err: errors.New("telegram down")}

		if err := watchWith(t.Context(), cfg, checker, ch, &bytes.Buffer{}, discardLogger()); err != nil {
			t.Fatal(err)
		}
		if len(checker.calls) != 1 {
			t.Errorf("expected one check, got %v", checker.calls)
		}
	})

	t.Run("cancelled context stops cleanly", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Lima")
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		checker := &fakeChecker{}

		if err := watchWith(ctx, cfg, checker, &recordingChannel{}, &bytes.Buffer{}, discardLogger()); err != nil {
			t.Errorf("watchWith() = %v", err)
		}
		if len(checker.calls) != 0 {
			t.Errorf("expected no checks, got %v", checker.calls)
		}
	})
}

// TestCheckOnce tests the single pass of the check command.
func TestCheckOnce(t *testing.T) {
	t.Parallel()

	t.Run("checks each target once without alerts", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Bogota", "Lima")
		checker := &fakeChecker{
			reports: map[string]retry.Report{"Bogota": noSlotsReport(), "Lima": slotsReport("09:00")},
		}
		var out bytes.Buffer

		if err := checkOnce(t.Context(), cfg, checker, nil, &out, discardLogger()); err != nil {
			t.Fatal(err)
		}
		if strings.Join(checker.calls, ",") != "Bogota,Lima" {
			t.Errorf("calls = %v", checker.calls)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 2 || !strings.Contains(lines[0], "NO_SLOTS") || !strings.Contains(lines[1], "SLOTS_FOUND") {
			t.Errorf("unexpected output %q", out.String())
		}
		if strings.Contains(out.String(), "[notified]") {
			t.Error("no alert expected without an observer")
		}
		if got := len(storedHistory(t, cfg.DBDir)); got != 2 {
			t.Errorf("expected two stored observations, got %d", got)
		}
	})

	t.Run("alerts through the gate and stores failures", func(t *testing.T) {
		t.Parallel()

		cfg := runConfig(t, "Lima", "Bogota")
		checker := &fakeChecker{
			reports: map[string]retry.Report{"Lima": slotsReport("11:15")},
			errs:    map[string]error{"Bogota": errors.New("open session: chrome not found")},
		}
		ch := &recordingChannel{}
		g, err := gate.New(cfg.GateConfig(), ch, gate.WithLogger(discardLogger()))
		if err != nil {
			t.Fatal(err)
		}

		if err := checkOnce(t.Context(), cfg, checker, g, &bytes.Buffer{}, discardLogger()); err != nil {
			t.Fatal(err)
		}
		if msgs := ch.messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "11:15") {
			t.Errorf("messages = %q", msgs)
		}

		rows := storedHistory(t, cfg.DBDir)
		if len(rows) != 2 {
			t.Fatalf("expected two rows, got %d", len(rows))
		}
		var failed *database.Observation
		for i := range rows {
			if rows[i].Target == "Bogota" {
				failed = &rows[i]
			}
		}
		if failed == nil || failed.Outcome != model.OutcomeTimeout || !strings.Contains(failed.Error, "chrome not found") {
			t.Errorf("unexpected failure row %+v", failed)
		}
	})
}

// writeConfig writes a configuration file for command tests.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

const targetsConfig = `
targets:
  - name: Lima
    mode: landing
    landingUrl: https://www.exteriores.gob.es/Consulados/lima/es/Paginas/index.aspx
  - name: Mexico
    mode: panel
    landingUrl: https://www.exteriores.gob.es/Consulados/mexico/es/Paginas/index.aspx
    panelMarker: Legalizaciones
  - name: Bogota
    mode: direct
    widgetUrl: https://www.citaconsular.es/es/hosteds/widgetdefault/28db
  - name: Quito
    mode: direct
    widgetUrl: https://www.citaconsular.es/es/hosteds/widgetdefault/q
    disabled: true
`

// TestTargetsCmd tests the targets listing.
func TestTargetsCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists enabled targets", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "-c", writeConfig(t, targetsConfig), "targets")
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"Lima", "Mexico", "Legalizaciones", "widgetdefault/28db", "3 target(s)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Quito") {
			t.Error("disabled target listed")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "targets")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestHistoryCmd tests the history command against a seeded database.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("no database yet", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "--data-dir", filepath.Join(t.TempDir(), "empty"), "history")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "No history yet") {
			t.Errorf("unexpected output %q", out)
		}
	})

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range []database.Observation{
		{AttemptID: "1", Target: "Lima", Outcome: model.OutcomeNoSlots, Timestamp: started},
		{AttemptID: "2", Target: "Lima", Outcome: model.OutcomeSlotsFound, Labels: []string{"09:00"}, Timestamp: started.Add(6e10)},
		{AttemptID: "3", Target: "Bogota", Outcome: model.OutcomeBlocked, Timestamp: started.Add(12e10)},
	} {
		if _, err := db.SaveObservation(context.Background(), &o); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "text of every target",
			args: []string{"history"},
			want: []string{"3 observations", "Lima", "Bogota", "09:00"},
		},
		{
			name:    "one target as json",
			args:    []string{"history", "Lima", "--format", "json"},
			want:    []string{`"target": "Lima"`, `"total": 2`, `"slots_found"`},
			notWant: []string{"Bogota"},
		},
		{
			name: "markdown with a limit",
			args: []string{"history", "-n", "1", "-f", "markdown"},
			want: []string{"# citawatch history", "## Outcome Summary"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, append([]string{"--data-dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("did not expect %q in output:\n%s", w, out)
				}
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "--data-dir", dir, "history", "-f", "xml"); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})
}

// TestHistoryWriter tests the format selection.
func TestHistoryWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"", false},
		{"JSON", false},
		{"md", false},
		{"markdown", false},
		{"csv", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("format %q", tt.format), func(t *testing.T) {
			t.Parallel()

			w, err := historyWriter(tt.format, &bytes.Buffer{}, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("historyWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && w == nil {
				t.Error("expected a writer")
			}
		})
	}
}

// telegramServer records the methods called on a fake Bot API.
func telegramServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()

	var (
		mu      sync.Mutex
		methods []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &methods
}

// TestNotifyTestCmd tests the credential check command.
func TestNotifyTestCmd(t *testing.T) {
	t.Parallel()

	t.Run("sends the message and the document", func(t *testing.T) {
		t.Parallel()

		srv, methods := telegramServer(t)
		path := writeConfig(t, fmt.Sprintf("telegram:\n  token: %q\n  chatId: \"42\"\n  baseUrl: %q\n", testBotToken, srv.URL))

		out, err := execute(t, "-c", path, "notify-test", "--document")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "Test message sent.") {
			t.Errorf("unexpected output %q", out)
		}
		if strings.Join(*methods, ",") != "sendMessage,sendDocument" {
			t.Errorf("methods = %v", *methods)
		}
	})

	t.Run("named config file must exist", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "notify-test")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestSendTest tests the test message sequence.
func TestSendTest(t *testing.T) {
	t.Parallel()

	t.Run("text only", func(t *testing.T) {
		t.Parallel()

		ch := &recordingChannel{}
		if err := sendTest(t.Context(), ch, false); err != nil {
			t.Fatal(err)
		}
		if msgs := ch.messages(); len(msgs) != 1 || msgs[0] != notify.TestMessage || len(ch.docs) != 0 {
			t.Errorf("messages = %q, docs = %v", msgs, ch.docs)
		}
	})

	t.Run("with document", func(t *testing.T) {
		t.Parallel()

		ch := &recordingChannel{}
		if err := sendTest(t.Context(), ch, true); err != nil {
			t.Fatal(err)
		}
		if len(ch.docs) != 1 || ch.docs[0] != "citawatch-test.txt" {
			t.Errorf("docs = %v", ch.docs)
		}
	})

	t.Run("send failure", func(t *testing.T) {
		t.Parallel()

		ch := &recordingChannel{err: errors.New("chat not found")}
		if err := sendTest(t.Context(), ch, true); err == nil || !strings.Contains(err.Error(), "send test message") {
			t.Errorf("sendTest() = %v", err)
		}
	})
}

// TestProxyCheckCmd tests the egress health table.
func TestProxyCheckCmd(t *testing.T) {
	t.Parallel()

	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	t.Cleanup(lookup.Close)

	t.Run("direct egress is healthy", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, targetsConfig+"proxy:\n  lookupUrl: "+lookup.URL+"\n")
		out, err := execute(t, "-c", path, "proxy-check")
		if err != nil {
			t.Fatalf("proxy-check: %v\n%s", err, out)
		}
		if !strings.Contains(out, "direct") || !strings.Contains(out, "203.0.113.7") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("unreachable socks proxy fails the command", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.Listener.Addr().String()
		closed.Close()

		path := writeConfig(t, targetsConfig+"proxy:\n  lookupUrl: "+lookup.URL+"\n  servers: [\"socks5://"+addr+"\"]\n")
		out, err := execute(t, "-c", path, "proxy-check")
		if err == nil || !strings.Contains(err.Error(), "1 of 2 egress paths unhealthy") {
			t.Errorf("proxy-check() = %v\n%s", err, out)
		}
	})
}

// TestRenderHealth tests the health table rows.
func TestRenderHealth(t *testing.T) {
	t.Parallel()

	ok := proxy.StatusOK
	results := []proxy.Health{
		{Proxy: "direct", PublicIP: "203.0.113.7"},
		{Proxy: "socks5://127.0.0.1:9050", SOCKS: &ok, PublicIP: "198.51.100.2"},
		{Proxy: "http://gw.dataimpulse.com:823", Err: errors.New("lookup via http://u:p@gw.dataimpulse.com:823 failed")},
	}

	var out bytes.Buffer
	tw := table.NewWriter()
	tw.SetOutputMirror(&out)
	if got := renderHealth(tw, results); got != 1 {
		t.Errorf("unhealthy = %d, want 1", got)
	}
	tw.Render()

	for _, want := range []string{"203.0.113.7", "OK", "198.51.100.2", "***:***@"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "u:p@") {
		t.Error("credentials leaked")
	}
}
