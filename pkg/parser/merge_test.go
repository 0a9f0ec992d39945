package parser

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func drain(t *testing.T, src MessageSource) []*ChatMessage {
	t.Helper()
	ctx := context.Background()
	var msgs []*ChatMessage
	for {
		msg, err := src.Next(ctx)
		if err == io.EOF {
			return msgs
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		msgs = append(msgs, msg)
	}
}

func TestMergedSource_Next(t *testing.T) {
	dir := t.TempDir()

	// Two exports of the same chat with interleaved timestamps
	file1 := filepath.Join(dir, "phone.txt")
	file2 := filepath.Join(dir, "tablet.txt")

	content1 := `15/1/2024, 10:00 a.m. - Ana: uno
15/1/2024, 10:02 a.m. - Ana: tres
15/1/2024, 10:04 a.m. - Ana: cinco
`
	content2 := `15/1/2024, 10:01 a.m. - Luis: dos
no es un mensaje
15/1/2024, 10:03 a.m. - Luis: cuatro
`

	if err := os.WriteFile(file1, []byte(content1), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, []byte(content2), 0644); err != nil {
		t.Fatal(err)
	}

	merged := NewMergedSource(NewFileSource([]string{file1}, nil), NewFileSource([]string{file2}, nil))
	defer merged.Close()

	msgs := drain(t, merged)
	if len(msgs) != 5 {
		t.Fatalf("Got %d messages, want 5", len(msgs))
	}

	wantTexts := []string{"uno", "dos", "tres", "cuatro", "cinco"}
	for i, want := range wantTexts {
		if msgs[i].RawText != want {
			t.Errorf("message %d = %q, want %q", i, msgs[i].RawText, want)
		}
	}

	wantFirst := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(wantFirst) {
		t.Errorf("first timestamp = %v, want %v", msgs[0].Timestamp, wantFirst)
	}

	if skipped := merged.Skipped(); len(skipped) != 1 || skipped[0].Source != file2 {
		t.Errorf("Skipped() = %+v, want one line from %s", skipped, file2)
	}
}

func TestMergedSource_EmptySources(t *testing.T) {
	merged := NewMergedSource()
	defer merged.Close()

	_, err := merged.Next(context.Background())
	if err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestMergedSource_OneEmptySource(t *testing.T) {
	full := NewSliceSource(Parse("1/2/2024, 9:05 PM - A: hola"))
	empty := NewSliceSource(Parse(""))

	merged := NewMergedSource(full, empty)
	defer merged.Close()

	if got := len(drain(t, merged)); got != 1 {
		t.Errorf("Got %d messages, want 1", got)
	}
}

func TestMergedSource_SameTimestamps(t *testing.T) {
	a := NewSliceSource(Parse("1/2/2024, 9:05 PM - A: primero\n1/2/2024, 9:05 PM - A: segundo"))
	b := NewSliceSource(Parse("1/2/2024, 9:05 PM - B: tercero"))

	merged := NewMergedSource(a, b)
	defer merged.Close()

	msgs := drain(t, merged)
	if len(msgs) != 3 {
		t.Fatalf("Got %d messages, want 3", len(msgs))
	}

	// Equal timestamps keep source order, then line order
	want := []string{"primero", "segundo", "tercero"}
	for i, w := range want {
		if msgs[i].RawText != w {
			t.Errorf("message %d = %q, want %q", i, msgs[i].RawText, w)
		}
	}
}

func TestMergedSource_Close(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "chat.txt")
	if err := os.WriteFile(file, []byte("1/2/2024, 9:05 PM - A: hola\n"), 0644); err != nil {
		t.Fatal(err)
	}

	merged := NewMergedSource(NewFileSource([]string{file}, nil))

	// Read one message to open the file
	_, _ = merged.Next(context.Background())

	if err := merged.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
