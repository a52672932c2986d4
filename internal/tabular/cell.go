// Package tabular decodes spreadsheet files (CSV, XLSX) into rows of named,
// loosely typed cells, and writes simple tables back out.
//
// Cells keep the type the source file gave them. A CSV cell is always text;
// an XLSX cell may be a number. Consumers coerce explicitly per target field
// instead of relying on implicit conversion.
package tabular

import (
	"strconv"
	"strings"
)

// CellKind tags the scalar held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

// Cell is a single raw spreadsheet value.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

// Text returns a string cell. Blank input yields an empty cell.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellString, Str: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{Kind: CellNumber, Num: f}
}

// IsEmpty reports whether the cell carries no usable value.
// Whitespace-only strings count as empty.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellNumber:
		return false
	case CellString:
		return strings.TrimSpace(c.Str) == ""
	default:
		return true
	}
}

// String renders the cell as trimmed text. Whole numbers print without a
// fractional part so "555" read from XLSX matches "555" read from CSV.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellString:
		return strings.TrimSpace(c.Str)
	default:
		return ""
	}
}

// Row maps column header to cell. Headers absent from the map are empty.
type Row map[string]Cell

// Get returns the cell for a header, or an empty cell.
func (r Row) Get(header string) Cell {
	return r[header]
}

// Table is a decoded file: ordered headers plus data rows.
type Table struct {
	Headers []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
