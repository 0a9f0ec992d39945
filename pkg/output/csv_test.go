package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
)

func TestCSVFormatter_Format(t *testing.T) {
	f := NewCSVFormatter(FormatOptions{})
	if f.Name() != "csv" {
		t.Errorf("Name() = %q, want csv", f.Name())
	}

	var buf bytes.Buffer
	if err := f.Format(context.Background(), createTestReport(), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if len(records[0]) != len(csvHeader) || records[0][0] != "timestamp" {
		t.Errorf("header = %v", records[0])
	}

	row := records[2]
	want := []string{
		"2024-02-01T21:05:00Z", "Mamá", "me caí, necesito ayuda por favor",
		"5", "Very Negative", "0.91", "true", "false", "chat.txt", "3",
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %s = %q, want %q", csvHeader[i], row[i], want[i])
		}
	}
}

func TestCSVFormatter_Format_Verbose(t *testing.T) {
	f := NewCSVFormatter(FormatOptions{Verbose: true})

	var buf bytes.Buffer
	if err := f.Format(context.Background(), createTestReport(), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	last := len(records[0]) - 1
	if records[0][last] != "contributions" {
		t.Errorf("last header = %q, want contributions", records[0][last])
	}
	if got := records[2][last]; got != "author=2;time=1;sentiment=3;keyword=1;ngram=2" {
		t.Errorf("contributions = %q", got)
	}
}

func TestCSVFormatter_Format_Empty(t *testing.T) {
	f := NewCSVFormatter(FormatOptions{})

	var buf bytes.Buffer
	if err := f.Format(context.Background(), &Report{}, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want header only", len(records))
	}
}
