package frame

import (
	"fmt"
	"strings"
)

// Concat stacks frames by row. The result has the union of all columns in
// order of first appearance; values missing from a frame are nil.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("received no frames to concatenate")
	}

	var columns []string
	seen := make(map[string]bool)
	for _, f := range frames {
		for _, col := range f.columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	var rows [][]any
	for _, f := range frames {
		for i := range f.rows {
			row := make([]any, len(columns))
			for k, col := range columns {
				row[k], _ = f.Value(i, col)
			}
			rows = append(rows, row)
		}
	}

	return New(columns, rows)
}

// LeftJoin keeps every row of left and appends the columns of right for the
// rows where left[leftKey] equals right[rightKey] (compared as text). Left
// rows without a match get nil in the right-hand columns. Several matches
// produce several rows.
func LeftJoin(left, right *Frame, leftKey, rightKey string) (*Frame, error) {
	if !left.HasColumn(leftKey) {
		return nil, fmt.Errorf("left join key '%s' not found", leftKey)
	}
	if !right.HasColumn(rightKey) {
		return nil, fmt.Errorf("right join key '%s' not found", rightKey)
	}

	columns := left.Columns()
	for _, col := range right.columns {
		if left.HasColumn(col) {
			return nil, fmt.Errorf("column '%s' exists on both sides of the join", col)
		}
		columns = append(columns, col)
	}

	matches := make(map[string][]int)
	for j := range right.rows {
		key := right.String(j, rightKey)
		if IsNull(key) {
			continue
		}
		matches[key] = append(matches[key], j)
	}

	var rows [][]any
	for i, lrow := range left.rows {
		key := left.String(i, leftKey)
		hits := matches[key]
		if IsNull(key) || len(hits) == 0 {
			row := append(append([]any{}, lrow...), make([]any, len(right.columns))...)
			rows = append(rows, row)
			continue
		}
		for _, j := range hits {
			row := append(append([]any{}, lrow...), right.rows[j]...)
			rows = append(rows, row)
		}
	}

	return New(columns, rows)
}

// GroupJoin groups rows by the key columns and joins the text values of
// valueCol within each group with sep. Groups are returned in order of first
// appearance and rows with any empty key are dropped.
func GroupJoin(f *Frame, keys []string, valueCol, sep string) (*Frame, error) {
	for _, col := range append(append([]string{}, keys...), valueCol) {
		if !f.HasColumn(col) {
			return nil, fmt.Errorf("column '%s' not found", col)
		}
	}

	type group struct {
		key    []any
		values []string
	}
	var order []string
	groups := make(map[string]*group)

	for i := range f.rows {
		keyValues := make([]any, len(keys))
		parts := make([]string, len(keys))
		skip := false
		for k, col := range keys {
			v, _ := f.Value(i, col)
			if IsNull(v) {
				skip = true
				break
			}
			keyValues[k] = v
			parts[k] = f.String(i, col)
		}
		if skip {
			continue
		}

		id := strings.Join(parts, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &group{key: keyValues}
			groups[id] = g
			order = append(order, id)
		}
		if v := f.String(i, valueCol); !IsNull(v) {
			g.values = append(g.values, v)
		}
	}

	rows := make([][]any, 0, len(order))
	for _, id := range order {
		g := groups[id]
		rows = append(rows, append(append([]any{}, g.key...), strings.Join(g.values, sep)))
	}

	return New(append(append([]string{}, keys...), valueCol), rows)
}
