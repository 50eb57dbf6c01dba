package load

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/warehouse"
)

// ReplaceTable drops table if it exists, recreates it with one text column
// per frame column and loads rows into it. It returns the number of rows
// loaded.
func ReplaceTable(ctx context.Context, tgt Target, table warehouse.TableRef, rows *frame.Frame, batchSize int, logger *slog.Logger) (int64, error) {
	d := tgt.Dialect()

	conn, err := tgt.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", d.Table(table))); err != nil {
		return 0, fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	columns := rows.Columns()
	definitions := make([]string, len(columns))
	for i, col := range columns {
		definitions[i] = fmt.Sprintf("%s %s", d.Quote(col), d.TextType())
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", d.Table(table), strings.Join(definitions, ", "))
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	logger.Debug("Executing query", "query", create)

	if err := appendRows(ctx, conn, d, table, textFrame(rows), batchSize); err != nil {
		return 0, fmt.Errorf("failed to load rows into %s: %w", table, err)
	}

	return int64(rows.Len()), nil
}

// textFrame formats every non-nil value as text to match the created
// column types.
func textFrame(f *frame.Frame) *frame.Frame {
	columns := f.Columns()
	rows := make([][]any, f.Len())
	for i := range rows {
		row := make([]any, len(columns))
		for j, col := range columns {
			if v, _ := f.Value(i, col); v != nil {
				row[j] = f.String(i, col)
			}
		}
		rows[i] = row
	}
	out, _ := frame.New(columns, rows)
	return out
}
