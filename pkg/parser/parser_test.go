package parser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantAuthor string
		wantText   string
		wantNorm   string
		wantTime   time.Time
	}{
		{
			name:       "dotted lowercase marker",
			line:       "1/2/2024, 9:05 p.m. - Mamá: ya llegue a casa",
			wantAuthor: "Mamá",
			wantText:   "ya llegue a casa",
			wantNorm:   "ya llegue a casa",
			wantTime:   time.Date(2024, 2, 1, 21, 5, 0, 0, time.UTC),
		},
		{
			name:       "narrow no-break space before marker",
			line:       "15/3/2024, 11:59\u202fp.\u00a0m. - Juan Pérez: ¿Dónde estás?",
			wantAuthor: "Juan Pérez",
			wantText:   "¿Dónde estás?",
			wantNorm:   "dónde estás",
			wantTime:   time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC),
		},
		{
			name:       "uppercase marker without space",
			line:       "3/4/2024, 12:30AM - Ana: URGENTE!!! llama ya",
			wantAuthor: "Ana",
			wantText:   "URGENTE!!! llama ya",
			wantNorm:   "urgente llama ya",
			wantTime:   time.Date(2024, 4, 3, 0, 30, 0, 0, time.UTC),
		},
		{
			name:       "surrounding whitespace",
			line:       "  \t1/2/2024, 9:05 p.m. - Mamá: ven ya  \r",
			wantAuthor: "Mamá",
			wantText:   "ven ya",
			wantNorm:   "ven ya",
			wantTime:   time.Date(2024, 2, 1, 21, 5, 0, 0, time.UTC),
		},
		{
			name:       "colon in message body",
			line:       "3/4/2024, 8:00 am - Ana: nota: ver https://x.io/a 2 veces",
			wantAuthor: "Ana",
			wantText:   "nota: ver https://x.io/a 2 veces",
			wantNorm:   "nota ver veces",
			wantTime:   time.Date(2024, 4, 3, 8, 0, 0, 0, time.UTC),
		},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, skipped := p.ParseLine(tt.line, "chat.txt", 7)
			if skipped != nil {
				t.Fatalf("ParseLine() skipped: %+v", skipped)
			}
			if msg == nil {
				t.Fatal("ParseLine() returned nil message")
			}
			if msg.Author != tt.wantAuthor {
				t.Errorf("Author = %q, want %q", msg.Author, tt.wantAuthor)
			}
			if msg.RawText != tt.wantText {
				t.Errorf("RawText = %q, want %q", msg.RawText, tt.wantText)
			}
			if msg.NormalizedText != tt.wantNorm {
				t.Errorf("NormalizedText = %q, want %q", msg.NormalizedText, tt.wantNorm)
			}
			if !msg.Timestamp.Equal(tt.wantTime) {
				t.Errorf("Timestamp = %v, want %v", msg.Timestamp, tt.wantTime)
			}
			if msg.Source != "chat.txt" || msg.LineNum != 7 {
				t.Errorf("Source/LineNum = %q/%d, want chat.txt/7", msg.Source, msg.LineNum)
			}
		})
	}
}

func TestParseLine_Skipped(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason SkipReason
	}{
		{
			name:   "encryption notice",
			line:   "1/2/2024, 9:00 p.m. - Los mensajes y las llamadas están cifrados de extremo a extremo.",
			reason: SkipSystemNotice,
		},
		{
			name:   "english encryption notice",
			line:   "1/2/2024, 9:00 PM - Messages and calls are end-to-end encrypted.",
			reason: SkipSystemNotice,
		},
		{
			name:   "continuation line",
			line:   "y luego seguimos hablando",
			reason: SkipNoMatch,
		},
		{
			name:   "missing author separator",
			line:   "1/2/2024, 9:00 p.m. - Ana cambió el asunto",
			reason: SkipNoMatch,
		},
		{
			name:   "hour out of range",
			line:   "1/2/2024, 13:05 pm - Ana: hola",
			reason: SkipBadTimestamp,
		},
		{
			name:   "month out of range",
			line:   "1/13/2024, 1:05 pm - Ana: hola",
			reason: SkipBadTimestamp,
		},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, skipped := p.ParseLine(tt.line, "", 1)
			if msg != nil {
				t.Fatalf("ParseLine() = %+v, want skipped", msg)
			}
			if skipped == nil {
				t.Fatal("ParseLine() returned no diagnostic")
			}
			if skipped.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", skipped.Reason, tt.reason)
			}
			if skipped.Raw != tt.line {
				t.Errorf("Raw = %q, want %q", skipped.Raw, tt.line)
			}
		})
	}
}

func TestParseLine_Blank(t *testing.T) {
	msg, skipped := New().ParseLine("  \r", "", 1)
	if msg != nil || skipped != nil {
		t.Errorf("ParseLine(blank) = %v, %v, want nil, nil", msg, skipped)
	}
}

func TestParseLine_MonthFirst(t *testing.T) {
	p := New(WithDateOrder(MonthFirst))
	msg, skipped := p.ParseLine("1/2/2024, 9:05 PM - Mom: home", "", 1)
	if skipped != nil {
		t.Fatalf("ParseLine() skipped: %+v", skipped)
	}
	want := time.Date(2024, 1, 2, 21, 5, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, want)
	}
}

func TestWithDateOrder_IgnoresUnknown(t *testing.T) {
	p := New(WithDateOrder("sideways"))
	if p.order != DayFirst {
		t.Errorf("order = %q, want %q", p.order, DayFirst)
	}
}

func TestWithSystemNotices(t *testing.T) {
	p := New(WithSystemNotices([]string{"joined using"}))

	_, skipped := p.ParseLine("1/2/2024, 9:05 PM - Ana joined using this group's invite link", "", 1)
	if skipped == nil || skipped.Reason != SkipSystemNotice {
		t.Errorf("custom notice not skipped: %+v", skipped)
	}

	msg, _ := p.ParseLine("1/2/2024, 9:05 PM - Ana: end-to-end encrypted", "", 2)
	if msg == nil {
		t.Error("default notice still applied after WithSystemNotices")
	}
}

func TestParse(t *testing.T) {
	raw := strings.Join([]string{
		"\ufeff1/2/2024, 9:00 p.m. - Los mensajes y las llamadas están cifrados de extremo a extremo.",
		"1/2/2024, 9:05 p.m. - Mamá: ya llegue a casa",
		"que frio hace",
		"",
		"1/2/2024, 9:07 p.m. - Juan: que bueno\r",
		"1/2/2024, 13:07 p.m. - Juan: roto",
	}, "\n")

	result := Parse(raw)

	if len(result.Messages) != 2 {
		t.Fatalf("Messages = %d, want 2", len(result.Messages))
	}
	if result.Messages[1].RawText != "que bueno" {
		t.Errorf("RawText = %q, want trailing CR stripped", result.Messages[1].RawText)
	}
	if result.Messages[0].LineNum != 2 || result.Messages[1].LineNum != 5 {
		t.Errorf("LineNums = %d,%d, want 2,5", result.Messages[0].LineNum, result.Messages[1].LineNum)
	}

	counts := result.SkippedByReason()
	if counts[SkipSystemNotice] != 1 || counts[SkipNoMatch] != 1 || counts[SkipBadTimestamp] != 1 {
		t.Errorf("SkippedByReason() = %v", counts)
	}

	nonBlank := 0
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			nonBlank++
		}
	}
	if got := len(result.Messages) + len(result.Skipped); got != nonBlank {
		t.Errorf("messages+skipped = %d, want %d non-blank lines", got, nonBlank)
	}
}

func TestParse_Empty(t *testing.T) {
	result := Parse("")
	if !result.Empty() {
		t.Error("Empty() = false for empty input")
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Skipped = %d, want 0", len(result.Skipped))
	}

	result = Parse("just some notes\nwith no chat lines")
	if !result.Empty() {
		t.Error("Empty() = false for input without chat lines")
	}
	if len(result.Skipped) != 2 {
		t.Errorf("Skipped = %d, want 2", len(result.Skipped))
	}
}

func TestParseReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ParseReader(ctx, strings.NewReader("1/2/2024, 9:05 PM - A: b\n"), "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ParseReader() error = %v, want context.Canceled", err)
	}
}

func TestFileSource_Next(t *testing.T) {
	dir := t.TempDir()
	chatFile := filepath.Join(dir, "chat.txt")
	content := `1/2/2024, 9:00 p.m. - Los mensajes y las llamadas están cifrados de extremo a extremo.
1/2/2024, 9:05 p.m. - Mamá: ya llegue a casa
sigue el mensaje
1/2/2024, 9:06 p.m. - Juan: ok
`
	if err := os.WriteFile(chatFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	source := NewFileSource([]string{chatFile}, nil)
	defer source.Close()

	ctx := context.Background()
	var msgs []*ChatMessage
	for {
		msg, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		msgs = append(msgs, msg)
	}

	if len(msgs) != 2 {
		t.Fatalf("Got %d messages, want 2", len(msgs))
	}
	if msgs[0].Source != chatFile || msgs[0].LineNum != 2 {
		t.Errorf("first message at %s:%d, want %s:2", msgs[0].Source, msgs[0].LineNum, chatFile)
	}

	skipped := source.Skipped()
	if len(skipped) != 2 {
		t.Fatalf("Skipped() = %d, want 2", len(skipped))
	}
	if skipped[0].Reason != SkipSystemNotice || skipped[1].Reason != SkipNoMatch {
		t.Errorf("Skipped reasons = %q,%q", skipped[0].Reason, skipped[1].Reason)
	}
}

func TestFileSource_MultipleFiles(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "a.txt")
	file2 := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(file1, []byte("1/2/2024, 9:05 PM - A: uno\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, []byte("1/2/2024, 8:05 PM - B: dos\n"), 0644); err != nil {
		t.Fatal(err)
	}

	source := NewFileSource([]string{file1, file2}, nil)
	defer source.Close()

	ctx := context.Background()
	var authors []string
	for {
		msg, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		authors = append(authors, msg.Author)
	}

	if strings.Join(authors, ",") != "A,B" {
		t.Errorf("authors = %v, want file order [A B]", authors)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	source := NewFileSource([]string{filepath.Join(t.TempDir(), "missing.txt")}, nil)
	defer source.Close()

	_, err := source.Next(context.Background())
	if err == nil || err == io.EOF {
		t.Errorf("Next() error = %v, want open error", err)
	}
}

func TestSliceSource(t *testing.T) {
	result := Parse("1/2/2024, 9:05 PM - A: uno\nbasura\n1/2/2024, 9:06 PM - B: dos")
	source := NewSliceSource(result)

	ctx := context.Background()
	count := 0
	for {
		_, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		count++
	}

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(source.Skipped()) != 1 {
		t.Errorf("Skipped() = %d, want 1", len(source.Skipped()))
	}
	if err := source.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNormalizeMarker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"p.m.", "PM"},
		{"p. m.", "PM"},
		{"a.m.", "AM"},
		{"AM", "AM"},
		{"p\u00a0m", "PM"},
		{"p.\u202fm.", "PM"},
	}
	for _, tt := range tests {
		if got := NormalizeMarker(tt.in); got != tt.want {
			t.Errorf("NormalizeMarker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
