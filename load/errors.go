package load

import (
	"fmt"

	"github.com/opsdata/etl-scripts/warehouse"
)

// Step names one statement group of the upsert.
type Step string

const (
	StepConnect       Step = "acquire connection"
	StepClearStaging  Step = "clear staging"
	StepAppendStaging Step = "append staging"
	StepInsertNewRows Step = "insert new rows"
)

// UpsertFailedError reports the step at which an upsert stopped. Upserts are
// never retried.
type UpsertFailedError struct {
	Step    Step
	Staging warehouse.TableRef
	Target  warehouse.TableRef
	Cause   error
}

func (e *UpsertFailedError) Error() string {
	return fmt.Sprintf("failed to upsert %s into %s at step '%s': %v", e.Staging, e.Target, e.Step, e.Cause)
}

func (e *UpsertFailedError) Unwrap() error {
	return e.Cause
}
