package load

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/notify"
	"github.com/opsdata/etl-scripts/warehouse"
)

// Target hands out a pinned connection together with its SQL dialect.
type Target interface {
	Conn(ctx context.Context) (*sql.Conn, error)
	Dialect() warehouse.Dialect
}

// Upserter merges a batch of rows into a target table through a staging
// table. Failures are reported once through the notifier and never retried.
type Upserter struct {
	Logger       *slog.Logger
	Notifier     notify.Notifier
	ErrorSubject string
	LogFile      string
	BatchSize    int
}

// Upsert replaces the content of staging with rows and inserts every staging
// row that is not already in target. All statements run on one connection.
// It returns the number of rows inserted into target.
func (u *Upserter) Upsert(ctx context.Context, rows *frame.Frame, staging, target warehouse.TableRef, tgt Target) (int64, error) {
	u.Logger.Info(fmt.Sprintf("Trying to append %d rows to %s", rows.Len(), target))

	inserted, step, err := u.upsert(ctx, rows, staging, target, tgt)
	if err != nil {
		upsertErr := &UpsertFailedError{Step: step, Staging: staging, Target: target, Cause: err}
		u.Logger.Error("Unable to append new rows to prod", "step", string(step), "error", err)
		notify.BestEffort(ctx, u.Notifier, u.Logger, notify.Message{
			Subject:    u.ErrorSubject,
			Body:       "Unable to append new rows to prod",
			Attachment: u.LogFile,
		})
		return 0, upsertErr
	}

	u.Logger.Info(fmt.Sprintf("%d new rows appended to %s", inserted, target))
	return inserted, nil
}

func (u *Upserter) upsert(ctx context.Context, rows *frame.Frame, staging, target warehouse.TableRef, tgt Target) (int64, Step, error) {
	d := tgt.Dialect()

	conn, err := tgt.Conn(ctx)
	if err != nil {
		return 0, StepConnect, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", d.Table(staging))); err != nil {
		return 0, StepClearStaging, err
	}
	u.Logger.Debug(fmt.Sprintf("Cleared staging table %s", staging))

	if err := appendRows(ctx, conn, d, staging, rows, u.BatchSize); err != nil {
		return 0, StepAppendStaging, err
	}
	u.Logger.Debug(fmt.Sprintf("Appended %d rows to staging table %s", rows.Len(), staging))

	res, err := conn.ExecContext(ctx, d.InsertNewRows(staging, target, rows.Columns()))
	if err != nil {
		return 0, StepInsertNewRows, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, StepInsertNewRows, fmt.Errorf("failed to read inserted row count: %w", err)
	}
	return inserted, "", nil
}
