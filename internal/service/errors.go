package service

import (
	"fmt"
	"time"
)

// ErrParse carries the parser diagnostics of a rejected structure.
type ErrParse struct {
	error
	Errors   []string
	Warnings []string
}

func NewErrParse(message string, errs, warnings []string) *ErrParse {
	if len(errs) == 0 {
		errs = []string{message}
	}
	return &ErrParse{error: fmt.Errorf("%s", message), Errors: errs, Warnings: warnings}
}

type ErrValidation struct {
	error
}

func NewErrValidation(message string) *ErrValidation {
	return &ErrValidation{fmt.Errorf("%s", message)}
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "batch job")
}

func NewErrNoExportResults(id string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("no results of batch job %s match the export filters", id)}
}

type ErrTimeout struct {
	error
}

func NewErrTimeout(timeout time.Duration) *ErrTimeout {
	return &ErrTimeout{fmt.Errorf("validation did not complete within %s", timeout)}
}

type ErrFileCorrupted struct {
	error
}

func NewErrFileCorrupted(message string) *ErrFileCorrupted {
	return &ErrFileCorrupted{fmt.Errorf("bad request: %s", message)}
}

type ErrFileTooLarge struct {
	error
}

func NewErrFileTooLarge(size, limit int64) *ErrFileTooLarge {
	return &ErrFileTooLarge{fmt.Errorf("file of %d bytes exceeds the maximum of %d MB", size, limit>>20)}
}

type ErrBatchTooLarge struct {
	error
}

func NewErrBatchTooLarge(count, limit int) *ErrBatchTooLarge {
	return &ErrBatchTooLarge{fmt.Errorf("file contains %d molecules, the maximum batch size is %d", count, limit)}
}
