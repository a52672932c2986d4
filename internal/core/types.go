package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/contactimport/internal/tabular"
)

// RawRow is one decoded input line: column header to raw cell.
type RawRow = tabular.Row

// TargetField is the semantic destination of a source column.
type TargetField string

const (
	FieldFirstName  TargetField = "first_name"
	FieldLastName   TargetField = "last_name"
	FieldEmail      TargetField = "email"
	FieldPhone      TargetField = "phone"
	FieldTitle      TargetField = "title"
	FieldNotes      TargetField = "notes"
	FieldTags       TargetField = "tags"
	FieldStatus     TargetField = "contact_status"
	FieldReferredBy TargetField = "referred_by_text"
	FieldDSPRef     TargetField = "dsp_id" // matched against DSP name or code
	FieldDSPCode    TargetField = "dsp_code"
	FieldDSPName    TargetField = "dsp_name"
	FieldStation    TargetField = "station_id"
	FieldMarket     TargetField = "market_id" // accepted as a mapping, never written
	FieldSkip       TargetField = "skip"
)

var targetFields = []TargetField{
	FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldTitle,
	FieldNotes, FieldTags, FieldStatus, FieldReferredBy,
	FieldDSPRef, FieldDSPCode, FieldDSPName, FieldStation, FieldMarket,
	FieldSkip,
}

// TargetFields returns every valid target in display order.
func TargetFields() []TargetField {
	out := make([]TargetField, len(targetFields))
	copy(out, targetFields)
	return out
}

// ParseTargetField validates a target tag. Input is trimmed and lowercased.
func ParseTargetField(s string) (TargetField, error) {
	f := TargetField(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range targetFields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid enum: unknown target field %q", s)
}

// FieldMapping binds one source column to a target field.
type FieldMapping struct {
	SourceColumn string      `json:"source_column"`
	Target       TargetField `json:"target"`
}

// Mappings is the per-column mapping set for one import, in header order.
type Mappings []FieldMapping

// Set overwrites the target for column, appending it if unknown.
func (m *Mappings) Set(column string, target TargetField) {
	for i := range *m {
		if (*m)[i].SourceColumn == column {
			(*m)[i].Target = target
			return
		}
	}
	*m = append(*m, FieldMapping{SourceColumn: column, Target: target})
}

// Target returns the mapped target for column, or FieldSkip.
func (m Mappings) Target(column string) TargetField {
	for _, fm := range m {
		if fm.SourceColumn == column {
			return fm.Target
		}
	}
	return FieldSkip
}

// Clone returns an independent copy.
func (m Mappings) Clone() Mappings {
	out := make(Mappings, len(m))
	copy(out, m)
	return out
}

// Contact titles accepted on import. Matching is case-sensitive.
const (
	TitleOwner    = "Owner"
	TitleOps      = "Ops"
	TitleDispatch = "Dispatch"
)

var validTitles = []string{TitleOwner, TitleOps, TitleDispatch}

// ContactStatus is the lifecycle state of a contact.
type ContactStatus string

const (
	StatusNew       ContactStatus = "new"
	StatusContacted ContactStatus = "contacted"
	StatusQualified ContactStatus = "qualified"
	StatusActive    ContactStatus = "active"
	StatusInactive  ContactStatus = "inactive"
)

var validStatuses = []ContactStatus{StatusNew, StatusContacted, StatusQualified, StatusActive, StatusInactive}

// ContactInput is the persisted shape of an imported contact.
// DSPID, StationID and MarketID are written at most once per row.
type ContactInput struct {
	FirstName      string        `json:"first_name,omitempty"`
	LastName       string        `json:"last_name,omitempty"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
	Title          string        `json:"title,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Status         ContactStatus `json:"contact_status,omitempty"`
	ReferredByText string        `json:"referred_by_text,omitempty"`
	DSPID          string        `json:"dsp_id,omitempty"`
	StationID      string        `json:"station_id,omitempty"`
	MarketID       string        `json:"market_id,omitempty"`
}

// setDSP assigns the DSP id if none is set yet. Reports whether it wrote.
func (c *ContactInput) setDSP(id string) bool {
	if c.DSPID != "" || id == "" {
		return false
	}
	c.DSPID = id
	return true
}

func (c *ContactInput) setStation(id string) bool {
	if c.StationID != "" || id == "" {
		return false
	}
	c.StationID = id
	return true
}

func (c *ContactInput) setMarket(id string) bool {
	if c.MarketID != "" || id == "" {
		return false
	}
	c.MarketID = id
	return true
}

// HasContactInfo reports whether the contact can be identified as a person:
// an email, a phone, or both first and last name.
func (c ContactInput) HasContactInfo() bool {
	return c.Email != "" || c.Phone != "" || (c.FirstName != "" && c.LastName != "")
}

// FullName joins first and last name.
func (c ContactInput) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// StagingHints carries the raw relational values seen on a row. They drive
// DSP creation and the acceptance gate and are never persisted.
type StagingHints struct {
	DSPRef     string `json:"dsp_ref,omitempty"`
	DSPCode    string `json:"dsp_code,omitempty"`
	DSPName    string `json:"dsp_name,omitempty"`
	StationRef string `json:"station_ref,omitempty"`
}

// Candidate is a row accepted by the gate and queued for the executor.
type Candidate struct {
	Row     int          `json:"row"`
	Contact ContactInput `json:"contact"`
	Hints   StagingHints `json:"hints"`
}

// ValidationIssue records a problem found before import. Row is 1-based.
type ValidationIssue struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

// ImportResult is the outcome of one attempted row.
type ImportResult struct {
	Success bool         `json:"success"`
	Row     int          `json:"row"`
	Data    ContactInput `json:"data"`
	Error   string       `json:"error,omitempty"`
	Code    string       `json:"code,omitempty"`
	Created *Contact     `json:"created,omitempty"`
}

// DuplicatePolicy controls what happens when an email already exists.
type DuplicatePolicy string

const (
	DuplicateSkip   DuplicatePolicy = "skip"
	DuplicateUpdate DuplicatePolicy = "update" // not implemented: behaves as create
	DuplicateCreate DuplicatePolicy = "create"
)

// ParseDuplicatePolicy validates a policy name. Empty input means skip.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicateSkip, nil
	case DuplicateSkip, DuplicateUpdate, DuplicateCreate:
		return p, nil
	default:
		return "", fmt.Errorf("invalid enum: unknown duplicate policy %q", s)
	}
}

// Contact is a stored contact.
type Contact struct {
	ID string `json:"id"`
	ContactInput
	CreatedAt time.Time `json:"created_at"`
}

// DSP is a delivery service partner, optionally based at a station.
type DSP struct {
	ID        string `json:"id"`
	StationID string `json:"station_id,omitempty"`
	Code      string `json:"dsp_code"`
	Name      string `json:"dsp_name"`
	IsActive  bool   `json:"is_active"`
}

// NewDSP is the creation payload for a DSP first seen in an import.
type NewDSP struct {
	Code      string `json:"dsp_code"`
	Name      string `json:"dsp_name"`
	StationID string `json:"station_id,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// Station is a physical site, optionally belonging to a market.
type Station struct {
	ID       string `json:"id"`
	MarketID string `json:"market_id,omitempty"`
	Code     string `json:"station_code"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
}

// Market is a geographic grouping of stations.
type Market struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ImportPhase indicates the current stage of an import session.
type ImportPhase string

const (
	PhaseMapping   ImportPhase = "mapping"
	PhaseReview    ImportPhase = "review"
	PhaseImporting ImportPhase = "importing"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
)

// ImportProgress represents the current state of an import run.
type ImportProgress struct {
	ImportID  string      `json:"import_id"`
	Phase     ImportPhase `json:"phase"`
	FileName  string      `json:"file_name"`
	Total     int         `json:"total"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Error     string      `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// ProgressCallback is called after every processed row.
type ProgressCallback func(ImportProgress)
