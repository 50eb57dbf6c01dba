package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		columns       []string
		rows          [][]any
		expectedError string
	}{
		{
			name:    "Valid frame",
			columns: []string{"id", "name"},
			rows:    [][]any{{1, "Alice"}, {2, "Bob"}},
		},
		{
			name:    "No rows",
			columns: []string{"id"},
			rows:    nil,
		},
		{
			name:          "Duplicate column",
			columns:       []string{"id", "id"},
			expectedError: "duplicate column name 'id' at position 2",
		},
		{
			name:          "Short row",
			columns:       []string{"id", "name"},
			rows:          [][]any{{1, "Alice"}, {2}},
			expectedError: "mismatched number of values in row 2: expected 2, got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.columns, tt.rows)
			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.columns, f.Columns())
			assert.Equal(t, len(tt.rows), f.Len())
		})
	}
}

func TestFrameIsNotMutatedThroughAccessors(t *testing.T) {
	source := [][]any{{1, "Alice"}}
	f, err := New([]string{"id", "name"}, source)
	require.NoError(t, err)

	source[0][1] = "Mallory"
	row := f.Row(0)
	row[1] = "Eve"
	cols := f.Columns()
	cols[0] = "changed"

	assert.Equal(t, []any{1, "Alice"}, f.Row(0))
	assert.Equal(t, []string{"id", "name"}, f.Columns())
}

func TestFilterReturnsNewFrame(t *testing.T) {
	f, err := New([]string{"status", "n"}, [][]any{
		{"New", 1},
		{"Closed", 2},
		{"In Progress", 3},
	})
	require.NoError(t, err)

	open := f.Filter(func(r Record) bool { return r["status"] != "Closed" })

	assert.Equal(t, 2, open.Len())
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, Record{"status": "In Progress", "n": 3}, open.Record(1))
}

func TestSelect(t *testing.T) {
	f, err := New([]string{"a", "b", "c"}, [][]any{{1, 2, 3}})
	require.NoError(t, err)

	selected, err := f.Select("c", "a")
	assert.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, selected.Columns())
	assert.Equal(t, []any{3, 1}, selected.Row(0))

	_, err = f.Select("missing")
	assert.EqualError(t, err, "column 'missing' not found")
}

func TestUniqueAndString(t *testing.T) {
	f, err := New([]string{"area", "n"}, [][]any{
		{"Finance", 1},
		{nil, 2},
		{"HR", 3},
		{"Finance", 4},
		{"  ", 5},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Finance", "HR"}, f.Unique("area"))
	assert.Equal(t, "4", f.String(3, "n"))
	assert.Equal(t, "", f.String(1, "area"))
	assert.Equal(t, "", f.String(0, "missing"))
}
