package core

import (
	"slices"
	"strings"
)

// RowOutcome is the result of transforming one raw row, before the gate.
type RowOutcome struct {
	Row           int
	Contact       ContactInput
	Hints         StagingHints
	Issues        []ValidationIssue
	HasMappedData bool // at least one non-skip, non-empty cell was processed
}

// Transformer turns raw rows into contact candidates.
type Transformer struct {
	resolver *Resolver
}

// NewTransformer creates a transformer resolving against the given catalogs.
func NewTransformer(c *Catalogs) *Transformer {
	return &Transformer{resolver: NewResolver(c)}
}

// Transform applies the column rules in mapping order. Empty cells are
// ignored. When two columns share a plain target the later column wins;
// relational columns are matched as they are read and the first match of
// each kind is kept.
func (t *Transformer) Transform(rowNum int, raw RawRow, m Mappings) RowOutcome {
	out := RowOutcome{Row: rowNum}
	c := &out.Contact

	var claims RowClaims

	for col, fm := range m {
		if fm.Target == FieldSkip {
			continue
		}
		cell := raw.Get(fm.SourceColumn)
		if cell.IsEmpty() {
			continue
		}
		value := cell.String()

		switch fm.Target {
		case FieldTitle:
			if slices.Contains(validTitles, value) {
				c.Title = value
			} else {
				out.Issues = append(out.Issues, ValidationIssue{
					Row:   rowNum,
					Field: string(FieldTitle),
					Value: value,
					Issue: "Invalid title. Must be Owner, Ops, or Dispatch",
				})
			}

		case FieldStatus:
			if s := ContactStatus(value); slices.Contains(validStatuses, s) {
				c.Status = s
			} else {
				c.Status = StatusNew
			}

		case FieldTags:
			c.Tags = splitTags(value)

		case FieldDSPRef:
			out.Hints.DSPRef = value
			t.resolver.Claim(&claims, fm.Target, value, col)
		case FieldDSPCode:
			out.Hints.DSPCode = value
			t.resolver.Claim(&claims, fm.Target, value, col)
		case FieldDSPName:
			out.Hints.DSPName = value
			t.resolver.Claim(&claims, fm.Target, value, col)

		case FieldStation:
			out.Hints.StationRef = value
			t.resolver.Claim(&claims, fm.Target, value, col)

		case FieldMarket:
			// Markets derive from stations only.

		case FieldFirstName:
			c.FirstName = value
		case FieldLastName:
			c.LastName = value
		case FieldEmail:
			c.Email = value
		case FieldPhone:
			c.Phone = value
		case FieldNotes:
			c.Notes = value
		case FieldReferredBy:
			c.ReferredByText = value

		default:
			continue
		}

		out.HasMappedData = true
	}

	t.resolver.Apply(c, claims)
	return out
}

// splitTags splits on commas, trims, and drops empty tokens. Duplicates stay.
func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
