package frame

import (
	"database/sql"
	"fmt"
)

// FromRows materializes a query result. Byte slices returned by drivers for
// text columns are converted to strings; other values are kept as scanned.
// Repeated column names get a numeric suffix (id, id_1, id_2).
// The caller still owns rows and must close it.
func FromRows(rows *sql.Rows) (*Frame, error) {
	// get column names
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columns = dedupeColumns(columns)

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return New(columns, out)
}

func dedupeColumns(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	for _, col := range columns {
		taken[col] = true
	}

	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		n := seen[col]
		seen[col]++
		if n == 0 {
			out[i] = col
			continue
		}
		name := fmt.Sprintf("%s_%d", col, n)
		for taken[name] {
			n++
			name = fmt.Sprintf("%s_%d", col, n)
		}
		seen[col] = n + 1
		taken[name] = true
		out[i] = name
	}
	return out
}
