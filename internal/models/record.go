package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is one row returned by a datastore query.
type Record map[string]any

// Lookup resolves column against the record. A column present verbatim wins;
// otherwise a dotted column walks nested objects ("meta.kind").
func (r Record) Lookup(column string) (any, bool) {
	if column == "" || r == nil {
		return nil, false
	}

	if v, ok := r[column]; ok {
		return v, true
	}

	if !strings.Contains(column, ".") {
		return nil, false
	}

	var cur any = map[string]any(r)
	for _, part := range strings.Split(column, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}

		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// Strings resolves column and flattens the result into its scalar text
// values. Arrays fan out, nil and empty strings are dropped, and a missing
// column yields an empty slice.
func (r Record) Strings(column string) []string {
	v, ok := r.Lookup(column)
	if !ok {
		return nil
	}

	return flatten(v, nil)
}

// String resolves column to a single text value (the first, for arrays).
func (r Record) String(column string) string {
	vals := r.Strings(column)
	if len(vals) == 0 {
		return ""
	}

	return vals[0]
}

func flatten(v any, out []string) []string {
	switch t := v.(type) {
	case nil:
		return out
	case string:
		if t == "" {
			return out
		}

		return append(out, t)
	case []any:
		for _, e := range t {
			out = flatten(e, out)
		}

		return out
	case []string:
		for _, e := range t {
			out = flatten(e, out)
		}

		return out
	case float64:
		return append(out, strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return append(out, t.String())
	case bool:
		return append(out, strconv.FormatBool(t))
	case map[string]any, Record:
		return out
	default:
		return append(out, fmt.Sprint(t))
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return t, true
	default:
		return nil, false
	}
}

// IngestRequest is the payload for loading records into a datastore table.
type IngestRequest struct {
	Records []Record `json:"records"`
}

// Validate checks IngestRequest limits.
func (r *IngestRequest) Validate() error {
	if len(r.Records) == 0 {
		return fmt.Errorf("records must not be empty")
	}

	if len(r.Records) > MaxIngestRecords {
		return fmt.Errorf("records exceeds maximum of %d entries", MaxIngestRecords)
	}

	return nil
}

// MaxIngestRecords caps a single ingest batch.
const MaxIngestRecords = 5000
