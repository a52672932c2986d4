package core

import "strings"

// SuggestionTable maps a normalized header (lowercase, trimmed) to the
// target field it usually means.
type SuggestionTable map[string]TargetField

// DefaultSuggestions returns the built-in header dictionary. Each call returns
// a fresh map, so callers may extend it without affecting other engines.
func DefaultSuggestions() SuggestionTable {
	return SuggestionTable{
		"first name":    FieldFirstName,
		"firstname":     FieldFirstName,
		"fname":         FieldFirstName,
		"last name":     FieldLastName,
		"lastname":      FieldLastName,
		"lname":         FieldLastName,
		"email":         FieldEmail,
		"email address": FieldEmail,
		"phone":         FieldPhone,
		"phone number":  FieldPhone,
		"mobile":        FieldPhone,
		"cell":          FieldPhone,
		"title":         FieldTitle,
		"role":          FieldTitle,
		"position":      FieldTitle,
		"notes":         FieldNotes,
		"comments":      FieldNotes,
		"tags":          FieldTags,
		"status":        FieldStatus,
		"dsp":           FieldDSPRef,
		"dsp name":      FieldDSPName,
		"dsp code":      FieldDSPCode,
		"station":       FieldStation,
		"station code":  FieldStation,
		"referred by":   FieldReferredBy,
		"referrer":      FieldReferredBy,
	}
}

// MappingEngine proposes column mappings from a suggestion table.
type MappingEngine struct {
	suggestions SuggestionTable
}

// NewMappingEngine creates an engine over the given table. A nil table
// suggests skip for every header.
func NewMappingEngine(suggestions SuggestionTable) *MappingEngine {
	return &MappingEngine{suggestions: suggestions}
}

// Suggest returns one mapping per header, in header order.
func (e *MappingEngine) Suggest(headers []string) Mappings {
	out := make(Mappings, 0, len(headers))
	for _, h := range headers {
		out = append(out, FieldMapping{SourceColumn: h, Target: e.SuggestField(h)})
	}
	return out
}

// SuggestField returns the suggested target for a single header.
func (e *MappingEngine) SuggestField(header string) TargetField {
	if f, ok := e.suggestions[normalizeHeader(header)]; ok {
		return f
	}
	return FieldSkip
}

// Suggestions returns a copy of the engine's table.
func (e *MappingEngine) Suggestions() SuggestionTable {
	out := make(SuggestionTable, len(e.suggestions))
	for k, v := range e.suggestions {
		out[k] = v
	}
	return out
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
