package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPaycheckNotFound = errors.New("paycheck not found")
	ErrAuditNotFound    = errors.New("paycheck audit not found")
	ErrAlreadyVoided    = errors.New("paycheck already voided")
	ErrInvalidInput     = errors.New("invalid paycheck input")
	ErrYtdYearMismatch  = errors.New("ytd year does not match check year")
	// ErrYtdConflict means another paycheck or void moved the employee's
	// YTD snapshot between load and record.
	ErrYtdConflict = errors.New("ytd snapshot changed concurrently")
)

// YtdYearMismatchError is returned when strict YTD year checking is enabled
// and the prior snapshot belongs to a different year than the check date.
type YtdYearMismatchError struct {
	PriorYear int
	CheckYear int
}

func (e *YtdYearMismatchError) Error() string {
	return fmt.Sprintf("ytd year %d does not match check year %d", e.PriorYear, e.CheckYear)
}

func (e *YtdYearMismatchError) Unwrap() error { return ErrYtdYearMismatch }
