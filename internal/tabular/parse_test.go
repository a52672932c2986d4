package tabular

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestCell(t *testing.T) {
	tests := []struct {
		name      string
		cell      Cell
		wantEmpty bool
		wantStr   string
	}{
		{"zero value", Cell{}, true, ""},
		{"text", Text("Jane"), false, "Jane"},
		{"text trimmed", Text("  Jane "), false, "Jane"},
		{"whitespace only", Text("   "), true, ""},
		{"blank text constructor", Text(""), true, ""},
		{"whole number", Number(555), false, "555"},
		{"zero number", Number(0), false, "0"},
		{"decimal", Number(12.5), false, "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.IsEmpty(); got != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.wantEmpty)
			}
			if got := tt.cell.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"contacts.csv", FormatCSV, false},
		{"CONTACTS.CSV", FormatCSV, false},
		{"contacts.xlsx", FormatXLSX, false},
		{"contacts.xls", "", true},
		{"contacts", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("error = %v, want ErrUnsupportedFormat", err)
			}
			if got != tt.want {
				t.Errorf("FormatFromName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	input := "\xef\xbb\xbfFirst Name,Last Name,Email\n" +
		"Jane,Doe,jane@example.com\n" +
		",,\n" +
		"John,,\n"

	table, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	wantHeaders := []string{"First Name", "Last Name", "Email"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("Headers = %v, want %v", table.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("Headers[%d] = %q, want %q", i, table.Headers[i], h)
		}
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (blank line skipped)", table.Len())
	}
	if got := table.Rows[0].Get("Email").String(); got != "jane@example.com" {
		t.Errorf("row 1 Email = %q, want %q", got, "jane@example.com")
	}
	if !table.Rows[1].Get("Last Name").IsEmpty() {
		t.Errorf("row 2 Last Name should be empty")
	}
}

func TestParseCSV_DuplicateHeaders(t *testing.T) {
	table, err := ParseCSV(strings.NewReader("Email,Email\na@example.com,b@example.com\n"))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if table.Headers[1] != "Email_1" {
		t.Errorf("Headers[1] = %q, want %q", table.Headers[1], "Email_1")
	}
	if got := table.Rows[0].Get("Email_1").String(); got != "b@example.com" {
		t.Errorf("Email_1 = %q, want %q", got, "b@example.com")
	}
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("\n\n"))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("ParseCSV() error = %v, want ErrEmptyFile", err)
	}
}

func TestParseXLSX_KeepsNumbers(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Name", "Phone"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Jane", 5550123}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	table, err := Parse("contacts.xlsx", &buf)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	phone := table.Rows[0].Get("Phone")
	if phone.Kind != CellNumber {
		t.Errorf("Phone kind = %v, want CellNumber", phone.Kind)
	}
	if phone.String() != "5550123" {
		t.Errorf("Phone = %q, want %q", phone.String(), "5550123")
	}
	if name := table.Rows[0].Get("Name"); name.Kind != CellString || name.String() != "Jane" {
		t.Errorf("Name = %+v, want string Jane", name)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"Tags", "Notes"}, [][]string{{"vip, fleet-owner", "hello"}})
	if err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "Tags,Notes\n\"vip, fleet-owner\",hello\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() = %q, want %q", buf.String(), want)
	}
}

func TestWriteXLSX_Readable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, "Contacts", []string{"Email"}, [][]string{{"jane@example.com"}})
	if err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	table, err := ParseXLSX(&buf)
	if err != nil {
		t.Fatalf("ParseXLSX() error = %v", err)
	}
	if table.Len() != 1 || table.Rows[0].Get("Email").String() != "jane@example.com" {
		t.Errorf("unexpected table: %+v", table)
	}
}
