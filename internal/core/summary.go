package core

import "time"

// Summary counts the outcomes of a run.
type Summary struct {
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"` // includes duplicates
	Duplicates int `json:"duplicates"`
	Issues     int `json:"issues"`
}

// Summarize derives counts from results. Duplicate skips count as failures
// and are also reported separately.
func Summarize(results []ImportResult) Summary {
	s := Summary{Attempted: len(results)}
	for _, r := range results {
		switch {
		case r.Success:
			s.Succeeded++
		case r.Error == DuplicateSkippedError:
			s.Failed++
			s.Duplicates++
		default:
			s.Failed++
		}
	}
	return s
}

// RunReport is everything a caller gets back from one import.
type RunReport struct {
	ImportID   string            `json:"import_id"`
	FileName   string            `json:"file_name"`
	Policy     DuplicatePolicy   `json:"duplicate_policy"`
	TotalRows  int               `json:"total_rows"`
	Issues     []ValidationIssue `json:"issues"`
	Results    []ImportResult    `json:"results"`
	Summary    Summary           `json:"summary"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Duration returns how long the run took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunReport assembles a report and fills in its summary.
func NewRunReport(importID, fileName string, policy DuplicatePolicy, prepared Prepared, results []ImportResult, started, finished time.Time) RunReport {
	summary := Summarize(results)
	summary.Issues = len(prepared.Issues)
	return RunReport{
		ImportID:   importID,
		FileName:   fileName,
		Policy:     policy,
		TotalRows:  prepared.TotalRows,
		Issues:     prepared.Issues,
		Results:    results,
		Summary:    summary,
		StartedAt:  started,
		FinishedAt: finished,
	}
}
