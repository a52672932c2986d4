package core

import "strings"

// PlaceholderNote marks contacts created only to track a known DSP.
const PlaceholderNote = "[Placeholder entry - DSP known but no contact details yet]"

// IdentifierIssue is the issue text for rows with nothing to identify them.
const IdentifierIssue = "Row must have at least some identifying information"

// Gate decides whether a transformed row is imported.
//
// It returns a candidate for accepted rows and an issue for rows with no
// contact, DSP or station information. Both are nil when the row carried
// no mapped data at all.
func Gate(o RowOutcome) (*Candidate, *ValidationIssue) {
	c := o.Contact

	hasContactInfo := c.HasContactInfo()
	hasDSPInfo := o.Hints.DSPName != "" || o.Hints.DSPCode != "" || c.DSPID != ""
	hasStationInfo := o.Hints.StationRef != "" || c.StationID != ""

	if !hasContactInfo && !hasDSPInfo && !hasStationInfo {
		return nil, &ValidationIssue{
			Row:   o.Row,
			Field: "identifier",
			Value: "",
			Issue: IdentifierIssue,
		}
	}

	if !o.HasMappedData {
		return nil, nil
	}

	if !hasContactInfo && hasDSPInfo {
		if c.Notes != "" {
			c.Notes += "\n"
		}
		c.Notes += PlaceholderNote
		c.Status = StatusNew
	}

	if c.Status == "" {
		c.Status = StatusNew
	}

	return &Candidate{Row: o.Row, Contact: c, Hints: o.Hints}, nil
}

// IsPlaceholder reports whether the contact was flagged by the gate as a
// DSP-only placeholder.
func IsPlaceholder(c ContactInput) bool {
	return !c.HasContactInfo() && strings.HasSuffix(c.Notes, PlaceholderNote)
}
