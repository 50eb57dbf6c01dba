package warehouse

import "fmt"

// ConnectionError reports that a session could not be established: the
// login was rejected, the endpoint was unreachable or the driver settings
// were invalid. It is never retried.
type ConnectionError struct {
	Driver Driver
	Host   string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s database at '%s': %v", e.Driver, e.Host, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
