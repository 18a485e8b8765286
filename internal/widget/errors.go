package widget

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeNotAccepted is reported for files whose declared type is not in
	// the accepted set.
	ErrTypeNotAccepted = errors.New("file type not accepted")
	// ErrFileTooLarge is reported for files over the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrTooManyFiles is reported once per batch that would overflow the list.
	ErrTooManyFiles = errors.New("too many files")
	// ErrUploadFailed matches every *UploadError.
	ErrUploadFailed = errors.New("upload failed")
	// ErrDestroyed is returned by mutators after Destroy.
	ErrDestroyed = errors.New("widget destroyed")
	// ErrNoMount is returned by New when no view is supplied.
	ErrNoMount = errors.New("widget: no mount point")
)

// ValidationError rejects a single file at intake.
type ValidationError struct {
	File   File
	Err    error // ErrTypeNotAccepted or ErrFileTooLarge
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.File.Name(), e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.File.Name(), e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CapacityError rejects the tail of a batch that does not fit.
type CapacityError struct {
	Max     int
	Dropped int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum %d files allowed, %d dropped", e.Max, e.Dropped)
}

func (e *CapacityError) Is(target error) bool { return target == ErrTooManyFiles }

// UploadError carries the failure of the upload hook for one file.
type UploadError struct {
	File File
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.File.Name(), e.Err)
}

func (e *UploadError) Unwrap() []error { return []error{ErrUploadFailed, e.Err} }
