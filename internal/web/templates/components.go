// Package templates holds the HTML fragments served to HTMX clients.
package templates

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/contactimport/internal/core"
)

// maxReportRows caps the failed rows listed in a report fragment.
const maxReportRows = 50

type reportStat struct {
	Label string
	Value int
}

func reportStats(r *core.RunReport) []reportStat {
	s := r.Summary
	return []reportStat{
		{"Rows", r.TotalRows},
		{"Attempted", s.Attempted},
		{"Imported", s.Succeeded},
		{"Failed", s.Failed},
		{"Duplicates", s.Duplicates},
		{"Issues", s.Issues},
	}
}

func reportMeta(r *core.RunReport) string {
	return fmt.Sprintf("Duplicates: %s. Finished in %s.", r.Policy, r.Duration().Round(time.Millisecond))
}

// failedRows returns the failed results shown in the table.
func failedRows(r *core.RunReport) []core.ImportResult {
	var out []core.ImportResult
	for _, res := range r.Results {
		if !res.Success && len(out) < maxReportRows {
			out = append(out, res)
		}
	}
	return out
}

// hiddenFailures counts the failed results beyond maxReportRows.
func hiddenFailures(r *core.RunReport) int {
	n := 0
	for _, res := range r.Results {
		if !res.Success {
			n++
		}
	}
	return max(n-maxReportRows, 0)
}
