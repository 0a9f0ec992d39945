package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/chaturgency/pkg/config"
	"github.com/ccollicutt/chaturgency/pkg/detector"
)

const monthFirstExport = "12/25/2023, 9:05 PM - Mom: are you home?\n" +
	"12/26/2023, 7:10 AM - Dad: call me\n"

func TestRunDetect_Text(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", monthFirstExport)

	out, err := execute(t, NewDetectCommand(), export)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"month-first", "date_order: month_first", "2/2 lines matched"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Note:") {
		t.Error("a day above 12 should settle the order")
	}
}

func TestRunDetect_Ambiguous(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", calmExport)

	out, err := execute(t, NewDetectCommand(), "--all", export)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "date_order: day_first") {
		t.Errorf("ambiguous export should default to day_first:\n%s", out)
	}
	if !strings.Contains(out, "Note:") {
		t.Errorf("missing ambiguity note:\n%s", out)
	}
	if !strings.Contains(out, "Alternative formats detected") {
		t.Errorf("--all should list the other order:\n%s", out)
	}
}

func TestRunDetect_JSON(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", monthFirstExport)

	out, err := execute(t, NewDetectCommand(), "-o", "json", export)
	if err != nil {
		t.Fatal(err)
	}

	var got JSONOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.Kind != detector.KindText || got.DateOrder != "month_first" {
		t.Errorf("kind/order = %s/%s", got.Kind, got.DateOrder)
	}
	if len(got.Matches) != 1 {
		t.Errorf("matches = %d, want best match only", len(got.Matches))
	}
}

func TestRunDetect_TableMissingColumns(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.csv", "message,date\nhola,1/2/2024\n")

	out, err := execute(t, NewDetectCommand(), "-o", "json", export)
	if err != nil {
		t.Fatal(err)
	}

	var got JSONOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got.MissingColumns, ",") != "time,author" {
		t.Errorf("missing columns = %v", got.MissingColumns)
	}
}

func TestRunDetect_MissingFile(t *testing.T) {
	_, err := execute(t, NewDetectCommand(), "/nonexistent/chat.txt")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v", err)
	}
}

func TestRunDetect_BadOutput(t *testing.T) {
	export := writeFile(t, t.TempDir(), "chat.txt", monthFirstExport)
	if _, err := execute(t, NewDetectCommand(), "-o", "yaml", export); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestRunDetect_WriteConfig(t *testing.T) {
	dir := t.TempDir()
	export := writeFile(t, dir, "chat.txt", monthFirstExport)
	configPath := filepath.Join(dir, "chaturgency.yaml")

	out, err := execute(t, NewDetectCommand(), "-w", configPath, export)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote starter config") {
		t.Errorf("output = %s", out)
	}

	// The generated file must load as-is.
	cfg, err := config.Load(context.Background(), configPath)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Format.DateOrder != "month_first" {
		t.Errorf("DateOrder = %q", cfg.Format.DateOrder)
	}
	abs, _ := filepath.Abs(export)
	if len(cfg.ChatSources) != 1 || cfg.ChatSources[0] != abs {
		t.Errorf("ChatSources = %v", cfg.ChatSources)
	}
}

func TestWriteStarterConfig_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "existing.yaml", "# keep me\n")
	result := detector.New().DetectFromLines(strings.Split(monthFirstExport, "\n"))

	var out bytes.Buffer
	err := writeStarterConfig(&out, result, "chat.txt", configPath)
	if err == nil || !strings.Contains(err.Error(), "will not overwrite") {
		t.Errorf("error = %v", err)
	}

	content, _ := os.ReadFile(configPath)
	if string(content) != "# keep me\n" {
		t.Error("existing config was modified")
	}
}

func TestWriteStarterConfig_NoMatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	result := detector.New().DetectFromLines([]string{"not a chat line"})

	var out bytes.Buffer
	if err := writeStarterConfig(&out, result, "chat.txt", configPath); err == nil {
		t.Error("expected error when nothing was detected")
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Error("config should not be written")
	}
}

func TestGenerateStarterConfig(t *testing.T) {
	result := detector.New().DetectFromLines(strings.Split(monthFirstExport, "\n"))

	content, err := generateStarterConfig("chat.txt", result.BestMatch())
	if err != nil {
		t.Fatal(err)
	}

	s := string(content)
	for _, want := range []string{"# Generated by: chaturgency detect", "chat_sources:", "date_order: month_first", "priority_authors:"} {
		if !strings.Contains(s, want) {
			t.Errorf("starter config missing %q", want)
		}
	}
}
