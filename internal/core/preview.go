package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Match score weights for advisory duplicate detection.
const (
	scoreEmail        = 80
	scorePhone        = 70
	scoreNameExact    = 15
	scoreNamePartial  = 8
	scoreFullName     = 30
	scoreSameDSP      = 10
	matchThreshold    = 30 // reported as a potential duplicate
	duplicateMinScore = 40 // counted as a duplicate
	minPhoneDigits    = 10
)

// PreviewSummary contains the counts shown before an import runs.
type PreviewSummary struct {
	TotalRows     int            `json:"totalRows"`
	ValidContacts int            `json:"validContacts"`
	MissingInfo   int            `json:"missingInfo"`
	Duplicates    int            `json:"duplicates"`
	NewDSPs       int            `json:"newDSPs"`
	ExistingDSPs  int            `json:"existingDSPs"`
	ByStatus      map[string]int `json:"byStatus"`
}

// PotentialDuplicate pairs an import row with a similar contact. Existing is
// either a stored contact or an earlier row of the same file.
type PotentialDuplicate struct {
	Row          int          `json:"row"`
	Incoming     ContactInput `json:"incoming"`
	Existing     ContactInput `json:"existing"`
	ExistingID   string       `json:"existingId"`
	MatchScore   int          `json:"matchScore"`
	MatchReasons []string     `json:"matchReasons"`
}

// NewDSPPreview is a DSP the import would create, with the rows naming it.
type NewDSPPreview struct {
	Code    string `json:"dspCode"`
	Name    string `json:"dspName"`
	Station string `json:"station"`
	Rows    []int  `json:"rows"`
}

// PreviewResponse is the read-only analysis of prepared candidates.
type PreviewResponse struct {
	Summary             PreviewSummary       `json:"summary"`
	PotentialDuplicates []PotentialDuplicate `json:"potentialDuplicates"`
	NewDSPs             []NewDSPPreview      `json:"newDSPs"`
	ProcessingTimeMs    int64                `json:"processingTimeMs"`
}

// ContactLister lists stored contacts for duplicate scoring.
type ContactLister interface {
	ListContacts(ctx context.Context) ([]Contact, error)
}

// AnalyzeImport summarizes what running the candidates would do. It never
// writes and its duplicate findings are advisory only.
func AnalyzeImport(candidates []Candidate, catalogs *Catalogs, existing []Contact) *PreviewResponse {
	startTime := time.Now()

	resp := &PreviewResponse{
		Summary: PreviewSummary{
			TotalRows: len(candidates),
			ByStatus:  make(map[string]int),
		},
	}

	var newDSPs []*NewDSPPreview
	flagged := make(map[int]bool)

	for i, cand := range candidates {
		c := cand.Contact

		status := string(c.Status)
		if status == "" {
			status = string(StatusNew)
		}
		resp.Summary.ByStatus[status]++

		if c.Email == "" && c.Phone == "" && c.FirstName == "" && c.LastName == "" {
			resp.Summary.MissingInfo++
		} else {
			resp.Summary.ValidContacts++
		}

		// A resolved DSP is never created, and creation needs a name.
		switch {
		case c.DSPID != "" || catalogHasDSP(catalogs, cand.Hints):
			resp.Summary.ExistingDSPs++
		case cand.Hints.DSPName == "":
		default:
			if entry := findNewDSP(newDSPs, cand.Hints); entry != nil {
				entry.Rows = append(entry.Rows, cand.Row)
			} else {
				newDSPs = append(newDSPs, newDSPPreview(cand, catalogs))
				resp.Summary.NewDSPs++
			}
		}

		dup, ok := matchExisting(cand, existing)
		if !ok {
			dup, ok = matchEarlierRow(cand, candidates[:i], flagged)
		}
		if ok {
			flagged[i] = true
			resp.PotentialDuplicates = append(resp.PotentialDuplicates, dup)
			if dup.MatchScore >= duplicateMinScore {
				resp.Summary.Duplicates++
			}
		}
	}

	resp.NewDSPs = make([]NewDSPPreview, 0, len(newDSPs))
	for _, d := range newDSPs {
		resp.NewDSPs = append(resp.NewDSPs, *d)
	}
	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return resp
}

func matchExisting(cand Candidate, existing []Contact) (PotentialDuplicate, bool) {
	for _, e := range existing {
		score, reasons := MatchScore(cand.Contact, e.ContactInput)
		if score >= matchThreshold {
			return PotentialDuplicate{
				Row:          cand.Row,
				Incoming:     cand.Contact,
				Existing:     e.ContactInput,
				ExistingID:   e.ID,
				MatchScore:   score,
				MatchReasons: append(reasons, "Existing contact in directory"),
			}, true
		}
	}
	return PotentialDuplicate{}, false
}

// matchEarlierRow compares against earlier rows that were not themselves
// flagged as duplicates.
func matchEarlierRow(cand Candidate, earlier []Candidate, flagged map[int]bool) (PotentialDuplicate, bool) {
	for j, other := range earlier {
		if flagged[j] {
			continue
		}
		score, reasons := MatchScore(cand.Contact, other.Contact)
		if score >= matchThreshold {
			return PotentialDuplicate{
				Row:          cand.Row,
				Incoming:     cand.Contact,
				Existing:     other.Contact,
				ExistingID:   fmt.Sprintf("import-row-%d", other.Row),
				MatchScore:   score,
				MatchReasons: append(reasons, fmt.Sprintf("Duplicate of row %d in import", other.Row)),
			}, true
		}
	}
	return PotentialDuplicate{}, false
}

// MatchScore rates how likely two contacts are the same person.
func MatchScore(a, b ContactInput) (int, []string) {
	score := 0
	var reasons []string

	if a.Email != "" && b.Email != "" &&
		strings.EqualFold(strings.TrimSpace(a.Email), strings.TrimSpace(b.Email)) {
		score += scoreEmail
		reasons = append(reasons, "Email matches exactly")
	}

	if p1, p2 := normalizePhone(a.Phone), normalizePhone(b.Phone); p1 != "" && p1 == p2 && len(p1) >= minPhoneDigits {
		score += scorePhone
		reasons = append(reasons, "Phone number matches")
	}

	f1, f2 := lowerTrim(a.FirstName), lowerTrim(b.FirstName)
	l1, l2 := lowerTrim(a.LastName), lowerTrim(b.LastName)

	if s, partial := nameScore(f1, f2); s > 0 {
		score += s
		reasons = append(reasons, nameReason("First name", partial))
	}
	if s, partial := nameScore(l1, l2); s > 0 {
		score += s
		reasons = append(reasons, nameReason("Last name", partial))
	}

	full1 := strings.TrimSpace(f1 + " " + l1)
	full2 := strings.TrimSpace(f2 + " " + l2)
	if full1 != "" && full1 == full2 && score < matchThreshold {
		score += scoreFullName
		reasons = append(reasons, "Full name matches")
	}

	if a.DSPID != "" && a.DSPID == b.DSPID {
		score += scoreSameDSP
		reasons = append(reasons, "Same DSP")
	}

	return score, reasons
}

func nameScore(a, b string) (score int, partial bool) {
	switch {
	case a == "" || b == "":
		return 0, false
	case a == b:
		return scoreNameExact, false
	case strings.Contains(a, b) || strings.Contains(b, a):
		return scoreNamePartial, true
	}
	return 0, false
}

func nameReason(field string, partial bool) string {
	if partial {
		return field + " partially matches"
	}
	return field + " matches"
}

// normalizePhone keeps digits and drops a leading US country code.
func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func catalogHasDSP(c *Catalogs, h StagingHints) bool {
	if c == nil {
		return false
	}
	if h.DSPName != "" {
		if _, ok := c.DSPByName(h.DSPName); ok {
			return true
		}
	}
	if h.DSPCode != "" {
		if _, ok := c.DSPByCode(h.DSPCode); ok {
			return true
		}
	}
	return false
}

// findNewDSP returns the pending DSP that shares a name or code with h,
// compared case-insensitively.
func findNewDSP(list []*NewDSPPreview, h StagingHints) *NewDSPPreview {
	name, code := lowerTrim(h.DSPName), lowerTrim(h.DSPCode)
	for _, d := range list {
		if (name != "" && lowerTrim(d.Name) == name) || (code != "" && lowerTrim(d.Code) == code) {
			return d
		}
	}
	return nil
}

func newDSPPreview(cand Candidate, catalogs *Catalogs) *NewDSPPreview {
	station := "No Station"
	if catalogs != nil {
		if s, ok := catalogs.Station(cand.Contact.StationID); ok {
			station = fmt.Sprintf("%s - %s, %s", s.Code, s.City, s.State)
		}
	}
	if station == "No Station" {
		if cand.Contact.StationID != "" {
			station = cand.Contact.StationID
		} else if cand.Hints.StationRef != "" {
			station = cand.Hints.StationRef
		}
	}

	return &NewDSPPreview{
		Code:    cand.Hints.DSPCode,
		Name:    cand.Hints.DSPName,
		Station: station,
		Rows:    []int{cand.Row},
	}
}
