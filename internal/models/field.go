// Package models defines data types shared by the taxonomy core, filter
// collection, stores and API layers.
package models

import "strings"

// FieldReference identifies one column of a datastore table.
type FieldReference struct {
	Database string `json:"database,omitempty" yaml:"database"`
	Table    string `json:"table,omitempty" yaml:"table"`
	Column   string `json:"column" yaml:"column"`
	Pretty   string `json:"pretty,omitempty" yaml:"pretty"`
}

// IsSet reports whether the reference names a column.
func (f FieldReference) IsSet() bool {
	return f.Column != ""
}

// Equal reports whether both references point at the same physical column.
// The pretty name is presentation only and is ignored.
func (f FieldReference) Equal(other FieldReference) bool {
	return f.Database == other.Database && f.Table == other.Table && f.Column == other.Column
}

// Key returns a stable "database.table.column" identifier for indexing.
func (f FieldReference) Key() string {
	return strings.Join([]string{f.Database, f.Table, f.Column}, ".")
}

// Label returns the pretty name, falling back to the column name.
func (f FieldReference) Label() string {
	if f.Pretty != "" {
		return f.Pretty
	}

	return f.Column
}
