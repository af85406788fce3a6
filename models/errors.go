package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoData           = errors.New("no data")
	ErrInsufficientData = errors.New("insufficient data")
	ErrRangeTooLarge    = errors.New("date range too large")
)

// NoDataError means no source could answer. It unwraps to ErrNoData.
type NoDataError struct {
	Msg string
}

func NewNoDataError(format string, args ...interface{}) *NoDataError {
	return &NoDataError{Msg: fmt.Sprintf(format, args...)}
}

func (e *NoDataError) Error() string { return e.Msg }

func (e *NoDataError) Unwrap() error { return ErrNoData }

// InsufficientDataError means fewer points than a calculation needs.
// It unwraps to ErrInsufficientData.
type InsufficientDataError struct {
	Need int
	Have int
	Msg  string
}

func (e *InsufficientDataError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("insufficient data: need %d points, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
