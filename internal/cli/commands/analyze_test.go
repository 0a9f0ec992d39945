package commands

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/output"
	"github.com/ccollicutt/chaturgency/pkg/webhook"
)

func quietGlobals() *GlobalOptions {
	return &GlobalOptions{LogLevel: "error"}
}

func TestRunAnalyze_UrgentExitCode(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", urgentExport)

	out, err := execute(t, NewAnalyzeCommand(quietGlobals()), export)
	if err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if ExitCode != ExitUrgent {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitUrgent)
	}
	if !strings.Contains(out, "Mamá") {
		t.Errorf("output should list the urgent message:\n%s", out)
	}
}

func TestRunAnalyze_CalmExitCode(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", calmExport)

	if _, err := execute(t, NewAnalyzeCommand(quietGlobals()), export); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitOK)
	}
}

func TestRunAnalyze_JSON(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", urgentExport)

	out, err := execute(t, NewAnalyzeCommand(quietGlobals()), "-o", "json", "-v", export)
	if err != nil {
		t.Fatal(err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.Messages != 2 || report.Summary.Urgent != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if len(report.Skipped) != 1 {
		t.Errorf("skipped = %d, want the system notice", len(report.Skipped))
	}
}

func TestRunAnalyze_AuthorFilter(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", urgentExport)

	out, err := execute(t, NewAnalyzeCommand(quietGlobals()), "-o", "json", "--author", "pedro", export)
	if err != nil {
		t.Fatal(err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.Messages != 1 || report.Rows[0].Author != "Pedro" {
		t.Errorf("rows = %+v", report.Rows)
	}
	if ExitCode != ExitOK {
		t.Errorf("ExitCode = %d, filtered export has no urgent message", ExitCode)
	}
}

func TestRunAnalyze_ConfigSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", urgentExport)
	writeFile(t, dir, "b.txt", calmExport)
	configPath := writeFile(t, dir, "config.yaml", "chat_sources:\n  - "+dir+"/*.txt\n")

	g := quietGlobals()
	g.ConfigPath = configPath
	out, err := execute(t, NewAnalyzeCommand(g), "-o", "json")
	if err != nil {
		t.Fatal(err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.Messages != 4 {
		t.Errorf("Messages = %d, want both exports merged", report.Summary.Messages)
	}
	if report.Metadata.ConfigFile != configPath {
		t.Errorf("ConfigFile = %q", report.Metadata.ConfigFile)
	}
}

func TestRunAnalyze_NoSources(t *testing.T) {
	t.Setenv(config.EnvChatSources, "")

	_, err := execute(t, NewAnalyzeCommand(quietGlobals()))
	if err == nil || !strings.Contains(err.Error(), "no chat exports") {
		t.Errorf("error = %v, want no chat exports", err)
	}
}

func TestRunAnalyze_MissingFile(t *testing.T) {
	_, err := execute(t, NewAnalyzeCommand(quietGlobals()), "/nonexistent/chat.txt")
	if err == nil {
		t.Error("expected error for missing export")
	}
}

func TestRunAnalyze_BadFlags(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", urgentExport)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown output", []string{"-o", "xml"}},
		{"bad time range", []string{"--time-range", "ayer"}},
		{"time range with since", []string{"--time-range", "24h", "--since", "2024-01-01"}},
		{"bad since", []string{"--since", "01/02/2024"}},
		{"bad date order", []string{"--date-order", "sideways"}},
		{"bad classifier", []string{"--classifier", "magic"}},
		{"bad webhook trigger", []string{"--webhook-url", "http://localhost:1", "--webhook-trigger", "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewAnalyzeCommand(quietGlobals()), append(tt.args, export)...)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunAnalyze_Webhook(t *testing.T) {
	var hits atomic.Int32
	var payload output.Report
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		if got := r.Header.Get("Authorization"); got != "Bearer secreto" {
			t.Errorf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	urgent := writeFile(t, dir, "urgent.txt", urgentExport)
	calm := writeFile(t, dir, "calm.txt", calmExport)

	args := []string{"-q", "--webhook-url", server.URL, "--webhook-token", "secreto"}

	if _, err := execute(t, NewAnalyzeCommand(quietGlobals()), append(args, calm)...); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 0 {
		t.Errorf("on_urgent webhook fired for a calm export")
	}

	if _, err := execute(t, NewAnalyzeCommand(quietGlobals()), append(args, urgent)...); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
	if payload.Summary.Urgent != 1 {
		t.Errorf("payload summary = %+v", payload.Summary)
	}
}

func TestRunAnalyze_WebhookFailureDoesNotFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	export := writeFile(t, t.TempDir(), "chat.txt", urgentExport)
	_, err := execute(t, NewAnalyzeCommand(quietGlobals()),
		"-q", "--webhook-url", server.URL, "--webhook-trigger", "always", export)
	if err != nil {
		t.Errorf("webhook failure should not fail analysis: %v", err)
	}
	if ExitCode != ExitUrgent {
		t.Errorf("ExitCode = %d, want %d", ExitCode, ExitUrgent)
	}
}

func TestAnalyzerOptions(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		opts    AnalyzeOptions
		want    int
		wantErr bool
	}{
		{"none", AnalyzeOptions{}, 0, false},
		{"top", AnalyzeOptions{TopN: 5}, 1, false},
		{"time range and authors", AnalyzeOptions{TimeRange: "24h", Authors: []string{"Ana"}}, 2, false},
		{"since only", AnalyzeOptions{Since: "2024-01-01"}, 1, false},
		{"bad until", AnalyzeOptions{Until: "mañana"}, 0, true},
		{"conflict", AnalyzeOptions{TimeRange: "1h", Until: "2024-01-01"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analyzerOptions(&tt.opts, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("len(options) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCollectWebhooks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Webhooks = []config.WebhookConfig{
		{Name: "ops", URL: "https://ops.example.com/hook", Trigger: webhook.TriggerAlways, Timeout: time.Second},
	}

	t.Run("config only", func(t *testing.T) {
		targets, err := collectWebhooks(cfg, &AnalyzeOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 1 || targets[0].Name != "ops" {
			t.Errorf("targets = %+v", targets)
		}
	})

	t.Run("config and cli", func(t *testing.T) {
		targets, err := collectWebhooks(cfg, &AnalyzeOptions{
			WebhookURL:     "https://cli.example.com/hook",
			WebhookToken:   "tok",
			WebhookTrigger: "",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(targets) != 2 {
			t.Fatalf("len(targets) = %d, want 2", len(targets))
		}
		cli := targets[1]
		if cli.Name != "cli" || cli.Trigger != webhook.TriggerOnUrgent || cli.Timeout != config.DefaultWebhookTimeout {
			t.Errorf("cli target = %+v", cli)
		}
	})

	t.Run("invalid trigger", func(t *testing.T) {
		_, err := collectWebhooks(cfg, &AnalyzeOptions{WebhookURL: "https://x", WebhookTrigger: "sometimes"})
		if err == nil {
			t.Error("expected error")
		}
	})
}
