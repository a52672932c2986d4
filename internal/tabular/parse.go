package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat is returned for file extensions other than csv, xlsx.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("empty file")

// Format identifies a supported spreadsheet encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Parse decodes a spreadsheet, choosing the decoder by file name.
func Parse(fileName string, r io.Reader) (*Table, error) {
	format, err := FormatFromName(fileName)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return ParseXLSX(r)
	default:
		return ParseCSV(r)
	}
}

// ParseCSV reads a header row followed by data rows. A UTF-8 BOM is
// stripped, invalid UTF-8 becomes U+FFFD, and fully blank lines are skipped.
func ParseCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return buildTable(records, func(_, _ int, v string) Cell { return Text(v) })
}

// ParseXLSX reads the first worksheet. Numeric cells keep their number type.
func ParseXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheet := sheets[0]

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	return buildTable(records, func(rowIdx, colIdx int, v string) Cell {
		if v == "" {
			return Cell{}
		}
		axis, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
		if err != nil {
			return Text(v)
		}
		typ, err := f.GetCellType(sheet, axis)
		if err != nil {
			return Text(v)
		}
		if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return Number(n)
			}
		}
		return Text(v)
	})
}

// buildTable turns raw records into a Table. cellFn converts one value given
// its zero-based record and column position.
func buildTable(records [][]string, cellFn func(rowIdx, colIdx int, v string) Cell) (*Table, error) {
	headerIdx := -1
	for i, rec := range records {
		if !isEmptyRecord(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	headers := uniqueHeaders(records[headerIdx])

	t := &Table{Headers: headers}
	for i := headerIdx + 1; i < len(records); i++ {
		rec := records[i]
		if isEmptyRecord(rec) {
			continue
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			if h == "" || j >= len(rec) {
				continue
			}
			if c := cellFn(i, j, rec[j]); c.Kind != CellEmpty {
				row[h] = c
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// uniqueHeaders trims header names and suffixes repeats ("Email", "Email_1")
// so every column stays addressable by name.
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h != "" {
			if n, ok := seen[h]; ok {
				seen[h] = n + 1
				h = fmt.Sprintf("%s_%d", h, n+1)
			} else {
				seen[h] = 0
			}
		}
		headers[i] = h
	}
	return headers
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
