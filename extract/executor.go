package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/opsdata/etl-scripts/frame"
	"github.com/opsdata/etl-scripts/notify"
)

const DefaultRetryWait = 60 * time.Second

// Source runs read queries against a database session.
type Source interface {
	// Dispose discards pooled connections so the next query reconnects.
	Dispose()
	Query(ctx context.Context, query string) (*frame.Frame, error)
}

// Executor runs a read query with a fixed-interval retry policy and reports
// exhaustion through a notifier.
type Executor struct {
	Logger       *slog.Logger
	Notifier     notify.Notifier
	RetryWait    time.Duration
	ErrorSubject string
	LogFile      string

	// Timer paces the waits between attempts; nil uses a real timer.
	Timer backoff.Timer
}

// Execute makes at most maxRetries+1 attempts to run query on src. Pooled
// connections are disposed before every attempt. There is no wait after the
// last attempt.
func (e *Executor) Execute(ctx context.Context, query string, src Source, maxRetries int) (*frame.Frame, error) {
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", maxRetries)
	}

	wait := e.RetryWait
	if wait <= 0 {
		wait = DefaultRetryWait
	}
	maxAttempts := maxRetries + 1

	var b backoff.BackOff = backoff.NewConstantBackOff(wait)
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	var (
		attempts int
		last     *TransientQueryError
		result   *frame.Frame
	)

	operation := func() error {
		attempts++
		src.Dispose()
		e.Logger.Info(fmt.Sprintf("Trying to query data, attempt %d of %d", attempts, maxAttempts))

		f, err := src.Query(ctx, query)
		if err != nil {
			diag := Diagnose(err, query)
			e.Logger.Error(fmt.Sprintf("Attempt %d of %d failed", attempts, maxAttempts),
				"engine", diag.Engine, "code", diag.Code, "error", diag.Message)
			last = &TransientQueryError{Attempt: attempts, Diagnostic: diag, Cause: err}
			return last
		}

		result = f
		return nil
	}

	onRetry := func(_ error, next time.Duration) {
		e.Logger.Info(fmt.Sprintf("Retrying query in %s", next))
	}

	err := backoff.RetryNotifyWithTimer(operation, b, onRetry, e.Timer)
	if err == nil {
		e.Logger.Info(fmt.Sprintf("Query returned %d rows after %d attempt(s)", result.Len(), attempts))
		return result, nil
	}

	if attempts < maxAttempts {
		// the context ended the loop early
		return nil, fmt.Errorf("query aborted after %d attempt(s): %w", attempts, err)
	}

	exhausted := &QueryExhaustedError{Attempts: attempts, Last: last}
	e.Logger.Error(fmt.Sprintf("Max Attempt #%d reached", maxAttempts), "error", exhausted)
	notify.BestEffort(ctx, e.Notifier, e.Logger, notify.Message{
		Subject:    e.ErrorSubject,
		Body:       fmt.Sprintf("Unable to query data; Max Attempt #%d reached", maxAttempts),
		Attachment: e.LogFile,
	})
	return nil, exhausted
}
