package pipeline

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	tests := []struct {
		input    string
		endOfDay bool
		want     time.Time
		wantErr  bool
	}{
		{"2024-02-01", false, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024-02-01", true, time.Date(2024, 2, 1, 23, 59, 59, 0, time.UTC), false},
		// The wall clock is kept, the offset dropped.
		{"2024-02-01T21:30:00-03:00", false, time.Date(2024, 2, 1, 21, 30, 0, 0, time.UTC), false},
		{"2024-02-01T20:00:00+09:00", true, time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC), false},
		{"ayer", false, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWhen(tt.input, tt.endOfDay)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWhen() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseWhen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, 2, 1, 22, 15, 0, 0, time.FixedZone("EST", -5*60*60))

	start, end, err := Window("2024-02-01T20:00:00-05:00", "", now)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 2, 1, 22, 15, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want wall clock of now %v", end, want)
	}

	if _, _, err := Window("", "pronto", now); err == nil {
		t.Error("expected error for bad until")
	}
}
