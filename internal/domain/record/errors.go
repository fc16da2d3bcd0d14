package record

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidMRN     = errors.New("invalid medical record number")
	ErrEmptyCID       = errors.New("content pointer must not be empty")
	ErrLengthMismatch = errors.New("mrn and content pointer lists differ in length")
	ErrEmptyBatch     = errors.New("batch must contain at least one record")
)
