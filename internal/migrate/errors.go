package migrate

import (
	"errors"
	"fmt"
)

// ConnectorError wraps a connection-level failure (connect, auth,
// timeout, query transport). Connector errors are retried with backoff
// and abort the run once retries are exhausted.
type ConnectorError struct {
	Op  string
	Err error
}

func (e *ConnectorError) Error() string { return fmt.Sprintf("connector %s: %v", e.Op, e.Err) }
func (e *ConnectorError) Unwrap() error { return e.Err }

// TransformationError marks one record as failed: a required source
// value was missing or a transformation rejected its input. It never
// aborts the batch.
type TransformationError struct {
	Column string
	Err    error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed for column %s: %v", e.Column, e.Err)
}
func (e *TransformationError) Unwrap() error { return e.Err }

// RollbackError is fatal for the rollback call that produced it and
// leaves prior migration state untouched.
type RollbackError struct {
	Service string
	Err     error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of service %s failed: %v", e.Service, e.Err)
}
func (e *RollbackError) Unwrap() error { return e.Err }

// ErrTablesFailed is returned by ExecuteMigration when the run itself
// survived but at least one table ended failed or partial.
var ErrTablesFailed = errors.New("one or more tables did not migrate cleanly")

// ErrUnknownService is returned when a service name has no configured
// target connection.
var ErrUnknownService = errors.New("unknown target service")
