package inspection

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownGate   = errors.New("unknown inspection gate")
	ErrInvalidSerial = errors.New("panel serial is required")
	ErrInvalidResult = errors.New("result must be PASS or FAIL")
	ErrMissingTime   = errors.New("inspection datetime is required")
)

// Result is the verdict recorded at a gate.
type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// Event is one inspection row from the line.
type Event struct {
	ID          string    `json:"id"`
	PanelSerial string    `json:"panelSerial"`
	Gate        Gate      `json:"gate"`
	GateName    string    `json:"gateName"`
	Result      Result    `json:"result"`
	InspectorID string    `json:"personId"`
	InspectedAt time.Time `json:"datetime"`
}

// Submission is the ingest payload posted by line stations.
type Submission struct {
	PanelSerial string    `json:"panel_serial" binding:"required"`
	Gate        int       `json:"gate" binding:"required"`
	Result      string    `json:"result" binding:"required"`
	PersonID    string    `json:"person_id"`
	Datetime    time.Time `json:"datetime" binding:"required"`
}

// Event validates the submission and converts it to an Event.
func (s Submission) Event() (Event, error) {
	serial := strings.TrimSpace(s.PanelSerial)
	if serial == "" {
		return Event{}, ErrInvalidSerial
	}
	gate := Gate(s.Gate)
	if !gate.Known() {
		return Event{}, fmt.Errorf("%w: %d", ErrUnknownGate, s.Gate)
	}
	result := Result(strings.ToUpper(strings.TrimSpace(s.Result)))
	if result != ResultPass && result != ResultFail {
		return Event{}, ErrInvalidResult
	}
	if s.Datetime.IsZero() {
		return Event{}, ErrMissingTime
	}
	return Event{
		PanelSerial: serial,
		Gate:        gate,
		GateName:    gate.Name(),
		Result:      result,
		InspectorID: strings.TrimSpace(s.PersonID),
		InspectedAt: s.Datetime,
	}, nil
}

// IsInvalid reports whether err is a rejected submission.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrUnknownGate) || errors.Is(err, ErrInvalidSerial) ||
		errors.Is(err, ErrInvalidResult) || errors.Is(err, ErrMissingTime)
}

// StoreError wraps a failure of the inspection store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("inspection store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
