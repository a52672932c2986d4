package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/contactimport/internal/logging"
)

// Prepared holds the outcome of transforming and gating every row.
type Prepared struct {
	TotalRows  int               `json:"total_rows"`
	Candidates []Candidate       `json:"candidates"`
	Issues     []ValidationIssue `json:"issues"`
	Rejected   int               `json:"rejected"` // rows with no identifying information
	Dropped    int               `json:"dropped"`  // rows with no mapped data
}

// Prepare runs every row through the transformer and the gate. Rows are
// numbered from 1. Issues are collected for rejected and accepted rows alike.
func Prepare(ctx context.Context, rows []RawRow, m Mappings, t *Transformer) Prepared {
	p := Prepared{TotalRows: len(rows)}

	for i, raw := range rows {
		outcome := t.Transform(i+1, raw, m)
		p.Issues = append(p.Issues, outcome.Issues...)

		cand, issue := Gate(outcome)
		switch {
		case issue != nil:
			p.Issues = append(p.Issues, *issue)
			p.Rejected++
		case cand == nil:
			p.Dropped++
			logging.FromContext(ctx).Debug("row dropped: no mapped data", "row", outcome.Row)
		default:
			p.Candidates = append(p.Candidates, *cand)
		}
	}

	return p
}

// ValidateMappings checks that every mapped column exists in headers and
// every target is known.
func ValidateMappings(headers []string, m Mappings) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for _, fm := range m {
		if !known[fm.SourceColumn] {
			return fmt.Errorf("column not found: %q", fm.SourceColumn)
		}
		if _, err := ParseTargetField(string(fm.Target)); err != nil {
			return err
		}
	}
	return nil
}
