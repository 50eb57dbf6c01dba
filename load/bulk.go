package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/marcboeker/go-duckdb"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/warehouse"
)

const (
	DefaultBatchSize = 500
	// maxBindParams keeps one INSERT under the smallest engine limit on
	// bind parameters per statement.
	maxBindParams = 2000
)

// appendRows bulk-loads rows into table on conn using the fastest path the
// engine offers.
func appendRows(ctx context.Context, conn *sql.Conn, d warehouse.Dialect, table warehouse.TableRef, rows *frame.Frame, batchSize int) error {
	if rows.Len() == 0 {
		return nil
	}

	switch d.Driver() {
	case warehouse.DuckDB:
		positional, err := matchesTableColumns(ctx, conn, d, table, rows.Columns())
		if err != nil {
			return err
		}
		if positional {
			return appendDuckDB(conn, table, rows)
		}
	case warehouse.SQLServer:
		return copyInSQLServer(ctx, conn, d, table, rows)
	}
	return insertBatches(ctx, conn, d, table, rows, batchSize)
}

// matchesTableColumns reports whether the table columns are exactly columns,
// in order.
func matchesTableColumns(ctx context.Context, conn *sql.Conn, d warehouse.Dialect, table warehouse.TableRef, columns []string) (bool, error) {
	probe, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", d.Table(table)))
	if err != nil {
		return false, err
	}
	defer probe.Close()

	tableColumns, err := probe.Columns()
	if err != nil {
		return false, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(tableColumns) != len(columns) {
		return false, nil
	}
	for i := range columns {
		if !strings.EqualFold(tableColumns[i], columns[i]) {
			return false, nil
		}
	}
	return true, nil
}

func appendDuckDB(conn *sql.Conn, table warehouse.TableRef, rows *frame.Frame) error {
	return conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}

		appender, err := duckdb.NewAppenderFromConn(dc, table.Schema, table.Name)
		if err != nil {
			return fmt.Errorf("failed to create appender for %s: %w", table, err)
		}

		for i := 0; i < rows.Len(); i++ {
			row := rows.Row(i)
			values := make([]driver.Value, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := appender.AppendRow(values...); err != nil {
				appender.Close()
				return fmt.Errorf("failed to append row %d: %w", i+1, err)
			}
		}

		// Close flushes the remaining buffered rows
		if err := appender.Close(); err != nil {
			return fmt.Errorf("failed to flush appender for %s: %w", table, err)
		}
		return nil
	})
}

func copyInSQLServer(ctx context.Context, conn *sql.Conn, d warehouse.Dialect, table warehouse.TableRef, rows *frame.Frame) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(d.Table(table), mssql.BulkOptions{}, rows.Columns()...))
	if err != nil {
		return fmt.Errorf("failed to prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < rows.Len(); i++ {
		if _, err := stmt.ExecContext(ctx, rows.Row(i)...); err != nil {
			return fmt.Errorf("failed to copy row %d: %w", i+1, err)
		}
	}

	// an Exec without arguments flushes the copy
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush bulk copy into %s: %w", table, err)
	}

	return tx.Commit()
}

func insertBatches(ctx context.Context, conn *sql.Conn, d warehouse.Dialect, table warehouse.TableRef, rows *frame.Frame, batchSize int) error {
	columns := rows.Columns()
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit := maxBindParams / len(columns); batchSize > limit {
		batchSize = max(limit, 1)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.Quote(col)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", d.Table(table), strings.Join(quoted, ", "))

	for start := 0; start < rows.Len(); start += batchSize {
		end := min(start+batchSize, rows.Len())

		tuples := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*len(columns))
		for i := start; i < end; i++ {
			marks := make([]string, len(columns))
			for j := range columns {
				marks[j] = d.Placeholder(len(args) + j + 1)
			}
			tuples = append(tuples, "("+strings.Join(marks, ", ")+")")
			args = append(args, rows.Row(i)...)
		}

		if _, err := conn.ExecContext(ctx, prefix+strings.Join(tuples, ", "), args...); err != nil {
			return fmt.Errorf("failed to insert rows %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}
