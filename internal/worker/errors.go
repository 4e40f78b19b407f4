package worker

import (
	"errors"
	"fmt"
)

// Category tags why a job failed.
type Category string

const (
	TimestampUnavailable Category = "TimestampUnavailable"
	DecodeFailed         Category = "DecodeFailed"
	EncodeFailed         Category = "EncodeFailed"
	NameAllocationFailed Category = "NameAllocationFailed"
	WriteFailed          Category = "WriteFailed"
	CleanupFailed        Category = "CleanupFailed"
)

// Categories lists every category in pipeline order.
var Categories = []Category{
	TimestampUnavailable,
	DecodeFailed,
	EncodeFailed,
	NameAllocationFailed,
	WriteFailed,
	CleanupFailed,
}

// JobError is the only error type a Job returns.
type JobError struct {
	Path     string
	Category Category
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Path, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// CategoryOf returns the category of err, or "" if err is not a JobError.
func CategoryOf(err error) Category {
	var je *JobError
	if errors.As(err, &je) {
		return je.Category
	}
	return ""
}
