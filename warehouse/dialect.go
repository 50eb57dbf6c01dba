package warehouse

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between the supported engines.
type Dialect interface {
	Driver() Driver
	// Quote quotes a single identifier.
	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th parameter, 1-based.
	Placeholder(n int) string
	// Table returns the quoted, schema-qualified name of t.
	Table(t TableRef) string
	// TextType is the column type used when a table is created from text data.
	TextType() string
	// InsertNewRows returns a statement that inserts every distinct row of
	// staging that is not already present in target, comparing all columns.
	InsertNewRows(staging, target TableRef, columns []string) string
}

type dialect struct {
	driver     Driver
	quoteOpen  string
	quoteClose string
	textType   string
	bind       func(n int) string
}

var dialects = map[Driver]*dialect{
	SQLServer: {driver: SQLServer, quoteOpen: "[", quoteClose: "]", textType: "NVARCHAR(255)", bind: func(n int) string { return fmt.Sprintf("@p%d", n) }},
	MySQL:     {driver: MySQL, quoteOpen: "`", quoteClose: "`", textType: "VARCHAR(255)", bind: func(int) string { return "?" }},
	Postgres:  {driver: Postgres, quoteOpen: `"`, quoteClose: `"`, textType: "VARCHAR(255)", bind: func(n int) string { return fmt.Sprintf("$%d", n) }},
	DuckDB:    {driver: DuckDB, quoteOpen: `"`, quoteClose: `"`, textType: "VARCHAR", bind: func(n int) string { return fmt.Sprintf("$%d", n) }},
}

// DialectFor returns the Dialect of a driver.
func DialectFor(d Driver) (Dialect, error) {
	dl, ok := dialects[d]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver '%s'", d)
	}
	return dl, nil
}

func (d *dialect) Driver() Driver {
	return d.driver
}

func (d *dialect) Quote(ident string) string {
	escaped := strings.ReplaceAll(ident, d.quoteClose, d.quoteClose+d.quoteClose)
	return d.quoteOpen + escaped + d.quoteClose
}

func (d *dialect) Placeholder(n int) string {
	return d.bind(n)
}

func (d *dialect) Table(t TableRef) string {
	if t.Schema == "" {
		return d.Quote(t.Name)
	}
	return d.Quote(t.Schema) + "." + d.Quote(t.Name)
}

func (d *dialect) TextType() string {
	return d.textType
}

func (d *dialect) InsertNewRows(staging, target TableRef, columns []string) string {
	if d.driver != MySQL {
		return fmt.Sprintf("INSERT INTO %s SELECT * FROM %s EXCEPT SELECT * FROM %s",
			d.Table(target), d.Table(staging), d.Table(target))
	}

	// MySQL before 8.0.31 has no EXCEPT; <=> is the null-safe equality.
	conditions := make([]string, len(columns))
	for i, col := range columns {
		conditions[i] = fmt.Sprintf("t.%s <=> s.%s", d.Quote(col), d.Quote(col))
	}
	return fmt.Sprintf("INSERT INTO %s SELECT DISTINCT s.* FROM %s AS s WHERE NOT EXISTS (SELECT 1 FROM %s AS t WHERE %s)",
		d.Table(target), d.Table(staging), d.Table(target), strings.Join(conditions, " AND "))
}
