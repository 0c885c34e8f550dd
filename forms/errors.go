package forms

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Everything a caller can act on is one of
// these; raw persistence failures are wrapped in StorageError so
// clients can tell bad input from "try again later".
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
)

// ValidationError rejects a publish or a submission, naming the
// offending question where one can be named.
type ValidationError struct {
	Field      string `json:"field,omitempty"`
	QuestionID int    `json:"question_id,omitempty"`
	Position   int    `json:"position,omitempty"`
	Reason     string `json:"reason"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.QuestionID != 0:
		return fmt.Sprintf("question %d: %s", e.QuestionID, e.Reason)
	case e.Position != 0:
		return fmt.Sprintf("question at position %d: %s", e.Position, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
