package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingField    = errors.New("field.column is required")
	ErrMissingOperator = errors.New("operator is required")
	ErrMissingNode     = errors.New("node_id or path is required")
	ErrMissingChecked  = errors.New("checked is required")
)

// Sentinel errors for entity lookups.
var (
	ErrWidgetNotFound = errors.New("widget not found")
	ErrNodeNotFound   = errors.New("taxonomy node not found")
	ErrTreeNotBuilt   = errors.New("taxonomy has not been built")
	ErrAmbiguousPath  = errors.New("taxonomy path matches more than one node; use node_id")
)

// ErrSearchUnavailable indicates no record datastore is configured.
var ErrSearchUnavailable = errors.New("record search is not configured")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
