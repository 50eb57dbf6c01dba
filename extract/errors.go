package extract

import "fmt"

// TransientQueryError is one failed attempt of a retried query. Its message
// is the redacted diagnostic; the driver error is still reachable through
// errors.As.
type TransientQueryError struct {
	Attempt    int
	Diagnostic Diagnostic
	Cause      error
}

func (e *TransientQueryError) Error() string {
	return fmt.Sprintf("query attempt %d failed: %s", e.Attempt, e.Diagnostic)
}

func (e *TransientQueryError) Unwrap() error {
	return e.Cause
}

// QueryExhaustedError is returned once every allowed attempt has failed.
type QueryExhaustedError struct {
	Attempts int
	Last     *TransientQueryError
}

func (e *QueryExhaustedError) Error() string {
	return fmt.Sprintf("unable to query data after %d attempts: %v", e.Attempts, e.Last)
}

func (e *QueryExhaustedError) Unwrap() error {
	return e.Last
}
