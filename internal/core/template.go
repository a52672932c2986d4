package core

import "github.com/JonMunkholm/contactimport/internal/tabular"

// TemplateFileBase is the download name of the import template, without extension.
const TemplateFileBase = "contact_import_template"

// TemplateHeaders are the column headers of the import template. Each one is
// recognized by DefaultSuggestions.
var TemplateHeaders = []string{
	"First Name",
	"Last Name",
	"Email",
	"Phone",
	"Title",
	"DSP Code",
	"DSP Name",
	"Station Code",
	"Status",
	"Tags",
	"Notes",
	"Referred By",
}

// Template returns the template headers and example rows: a complete
// contact, a DSP known without a contact, and a contact linked by DSP name.
func Template() (headers []string, records [][]string) {
	headers = make([]string, len(TemplateHeaders))
	copy(headers, TemplateHeaders)

	records = [][]string{
		{"John", "Doe", "john.doe@example.com", "555-0123", TitleOwner, "DSP001", "Lightning Logistics", "DCA1", string(StatusNew), "vip, fleet-owner", "Primary contact for operations", "Jane Smith"},
		{"", "", "", "", "", "", "Thunder Express", "LAX3", string(StatusNew), "needs-contact-info", "DSP exists but no owner contact yet", ""},
		{"Jane", "Smith", "jane.smith@example.com", "555-0456", TitleDispatch, "", "Lightning Logistics", "LAX3", string(StatusActive), "dispatcher", "Night shift dispatcher", "John Doe"},
	}
	return headers, records
}

// TemplateRows returns the example rows as raw rows keyed by header.
func TemplateRows() []RawRow {
	headers, records := Template()
	rows := make([]RawRow, 0, len(records))
	for _, rec := range records {
		row := make(RawRow, len(headers))
		for i, h := range headers {
			if rec[i] != "" {
				row[h] = tabular.Text(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}
