package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// FromCSV reads CSV data with a header row into a Frame of strings. Empty
// fields become nil.
func FromCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)

	// Read the header row
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := make([]any, len(record))
		for i, v := range record {
			if v != "" {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}

	return New(header, rows)
}

// FromCSVBytes is FromCSV over an in-memory body.
func FromCSVBytes(data []byte) (*Frame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("received empty CSV data")
	}
	return FromCSV(bytes.NewReader(data))
}

// WriteCSV writes the frame with a header row. nil values are written as
// empty fields.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(f.columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(f.columns))
	for i := range f.rows {
		for j, col := range f.columns {
			record[j] = f.String(i, col)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	// Flush the writer to ensure all data is written
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return nil
}
