package frame

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is a named frame written to one worksheet.
type Sheet struct {
	Name  string
	Frame *Frame
}

// ReadXLSX reads one worksheet into a Frame of strings. An empty sheet name
// selects the first sheet. The first skipRows rows are discarded and the next
// row is the header. Blank cells become nil and fully blank rows are dropped.
func ReadXLSX(path, sheet string, skipRows int) (*Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s' of %s: %w", sheet, path, err)
	}
	if len(cells) <= skipRows {
		return nil, fmt.Errorf("sheet '%s' of %s has no header row after skipping %d rows", sheet, path, skipRows)
	}

	header := cells[skipRows]
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var rows [][]any
	for _, cellRow := range cells[skipRows+1:] {
		row := make([]any, len(header))
		blank := true
		for j := range header {
			if j < len(cellRow) && strings.TrimSpace(cellRow[j]) != "" {
				row[j] = cellRow[j]
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}

	return New(header, rows)
}

// WriteXLSX writes each sheet to a new workbook at path, in order.
func WriteXLSX(path string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("received no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return fmt.Errorf("failed to name sheet '%s': %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to create sheet '%s': %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]any, len(sheet.Frame.columns))
	for i, col := range sheet.Frame.columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of sheet '%s': %w", sheet.Name, err)
	}

	for i, row := range sheet.Frame.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := append([]any{}, row...)
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of sheet '%s': %w", i+1, sheet.Name, err)
		}
	}
	return nil
}
