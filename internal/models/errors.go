package models

import "errors"

var (
	// ErrNotFound means no qualifying table exists in a document.
	ErrNotFound = errors.New("no qualifying table found")
	// ErrMappingFailed means a qualifying table lacks a required canonical header.
	ErrMappingFailed = errors.New("column mapping failed")
	// ErrStoreUnavailable wraps persistence I/O failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidPeriod means a period is not of the form YYYY-MM.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrUnsupportedFormat means the document format has no table reader.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
