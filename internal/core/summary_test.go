package core

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	results := []ImportResult{
		{Success: true, Row: 1},
		{Success: false, Row: 2, Error: DuplicateSkippedError},
		{Success: false, Row: 3, Error: "boom"},
		{Success: true, Row: 4},
	}

	got := Summarize(results)
	want := Summary{Attempted: 4, Succeeded: 2, Failed: 2, Duplicates: 1}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestNewRunReport(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	prepared := Prepared{
		TotalRows: 5,
		Issues:    []ValidationIssue{{Row: 2, Field: "identifier", Issue: IdentifierIssue}},
	}
	results := []ImportResult{{Success: true, Row: 1}}

	r := NewRunReport("imp-1", "contacts.csv", DuplicateSkip, prepared, results, started, finished)

	if r.TotalRows != 5 || r.Summary.Issues != 1 || r.Summary.Succeeded != 1 {
		t.Errorf("report = %+v", r)
	}
	if r.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", r.Duration())
	}
}
