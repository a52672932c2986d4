package tabular

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteCSV writes a header line followed by records.
func WriteCSV(w io.Writer, headers []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with headers in row 1.
func WriteXLSX(w io.Writer, sheet string, headers []string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	if err := setRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, rec := range records {
		if err := setRow(f, sheet, i+2, rec); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	axis, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, axis, &row); err != nil {
		return fmt.Errorf("set row %d: %w", rowNum, err)
	}
	return nil
}
