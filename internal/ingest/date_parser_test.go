package ingest

import (
	"testing"
	"time"
)

func recordWith(fields map[string]Value) Record {
	return NewRecord(fields)
}

func TestExtractEndDate(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		expected string
	}{
		{
			name:     "plain date",
			record:   recordWith(map[string]Value{"End Date": StringValue("2026-02-01")}),
			expected: "2026-02-01",
		},
		{
			name:     "time suffix dropped",
			record:   recordWith(map[string]Value{"End Date": StringValue("2026-02-01T00:00:00")}),
			expected: "2026-02-01",
		},
		{
			name:     "space separated time",
			record:   recordWith(map[string]Value{"End Date": StringValue(" 2026-02-01 13:45:00 ")}),
			expected: "2026-02-01",
		},
		{
			name: "snake case fallback",
			record: recordWith(map[string]Value{
				"period_of_performance_current_end_date": StringValue("2025-07-04"),
			}),
			expected: "2025-07-04",
		},
		{
			name: "null primary falls back",
			record: recordWith(map[string]Value{
				"End Date": {},
				"Period of Performance Potential End Date": StringValue("2027-09-30T00:00:00"),
			}),
			expected: "2027-09-30",
		},
		{
			name: "current preferred over potential",
			record: recordWith(map[string]Value{
				"period_of_performance_current_end_date":   StringValue("2025-01-31"),
				"period_of_performance_potential_end_date": StringValue("2029-01-31"),
			}),
			expected: "2025-01-31",
		},
		{
			name: "malformed primary is not rescued",
			record: recordWith(map[string]Value{
				"End Date":                               StringValue("02/01/2026"),
				"period_of_performance_current_end_date": StringValue("2026-02-01"),
			}),
			expected: "",
		},
		{
			name:     "impossible calendar date",
			record:   recordWith(map[string]Value{"End Date": StringValue("2026-02-30")}),
			expected: "",
		},
		{
			name:     "missing",
			record:   recordWith(map[string]Value{"Award ID": StringValue("A1")}),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractEndDate(tt.record); got != tt.expected {
				t.Errorf("ExtractEndDate() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	w, err := NewWindow(start, end)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if w.StartISO() != "2025-01-01" || w.EndISO() != "2025-12-31" {
		t.Fatalf("unexpected bounds %s", w)
	}
	if w.String() != "2025-01-01 to 2025-12-31" {
		t.Errorf("String() = %q", w.String())
	}

	contains := map[string]bool{
		"2025-01-01": true,
		"2025-12-31": true,
		"2025-06-15": true,
		"2024-12-31": false,
		"2026-01-01": false,
		"":           false,
	}
	for date, want := range contains {
		if got := w.Contains(date); got != want {
			t.Errorf("Contains(%q) = %t, want %t", date, got, want)
		}
	}

	if _, err := NewWindow(end, start); err == nil {
		t.Error("expected error when start is after end")
	}

	same, err := NewWindow(start, start)
	if err != nil {
		t.Fatalf("single-day window: %v", err)
	}
	if !same.Contains("2025-01-01") {
		t.Error("single-day window should contain its day")
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2025-03-15 ")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v", got)
	}

	for _, bad := range []string{"", "2025/03/15", "2025-13-01", "15-03-2025"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) expected error", bad)
		}
	}
}
