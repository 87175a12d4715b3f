package engine

import "fmt"

// ValidationError reports malformed or out-of-catalog input. The HTTP layer
// maps it to 400.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// LoadingInProgressError means the program book's persisted loading flag is
// already set; a second run may not start. Maps to 422 already_in_progress.
type LoadingInProgressError struct {
	ProgramBookID string
}

func (e LoadingInProgressError) Error() string {
	return fmt.Sprintf("automatic loading already in progress for program book %s", e.ProgramBookID)
}

// InvalidStatusError means the program book's status does not allow
// automatic loading. Maps to 422 invalid_status.
type InvalidStatusError struct {
	ProgramBookID string
	Status        string
}

func (e InvalidStatusError) Error() string {
	return fmt.Sprintf("program book %s status %s does not allow automatic loading", e.ProgramBookID, e.Status)
}
