package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrPeriodTableMissing means the punch log has no table for the requested range.
	ErrPeriodTableMissing = errors.New("punch log table does not exist")
	// ErrPunchNotFound is returned when a punch id has no row.
	ErrPunchNotFound = errors.New("punch not found")
)

// ValidationError rejects a request before any data is read.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DataSourceError wraps a failure of the punch source. The whole request fails with it.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("attendance data source: %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }
