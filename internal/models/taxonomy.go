package models

import (
	"fmt"
	"time"
)

// TaxonomyNode is the serialisable view of one taxonomy tree node, fed to
// the tree-rendering widget.
type TaxonomyNode struct {
	ID             int            `json:"id"`
	ExternalID     string         `json:"external_id,omitempty"`
	ExternalName   string         `json:"external_name,omitempty"`
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	Field          FieldReference `json:"field"`
	Level          int            `json:"level"`
	Checked        bool           `json:"checked"`
	Indeterminate  bool           `json:"indeterminate,omitempty"`
	DuplicateLabel bool           `json:"duplicate_label,omitempty"`
	NodeCount      int            `json:"node_count,omitempty"`
	LeafCount      int            `json:"leaf_count,omitempty"`
	SourceIDs      []string       `json:"source_ids,omitempty"`
	Children       []TaxonomyNode `json:"children,omitempty"`
}

// TaxonomyResult is returned by build and show operations.
type TaxonomyResult struct {
	WidgetID string         `json:"widget_id"`
	Total    int            `json:"total"`
	Records  int            `json:"records"`
	Stale    bool           `json:"stale,omitempty"`
	BuiltAt  time.Time      `json:"built_at"`
	Groups   []TaxonomyNode `json:"groups"`
}

// ToggleResult is returned by a checkbox toggle.
type ToggleResult struct {
	TaxonomyResult
	FiltersToSet    []FilterDesign `json:"filters_to_set"`
	FiltersToDelete []FilterDesign `json:"filters_to_delete"`
}

// BuildRequest optionally carries the records to aggregate. When Records is
// nil the widget's datastore is queried instead.
type BuildRequest struct {
	Records []Record `json:"records,omitempty"`
}

// Validate checks BuildRequest limits.
func (r *BuildRequest) Validate() error {
	if len(r.Records) > MaxIngestRecords {
		return fmt.Errorf("records exceeds maximum of %d entries", MaxIngestRecords)
	}

	return nil
}

// ToggleRequest identifies a node by synthetic ID or dotted path.
type ToggleRequest struct {
	NodeID  int    `json:"node_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Checked *bool  `json:"checked"`
}

// Validate checks that a node reference and the new state are present.
func (r *ToggleRequest) Validate() error {
	if r.NodeID <= 0 && r.Path == "" {
		return ErrMissingNode
	}

	if len(r.Path) > 4096 {
		return ErrFieldTooLong("path", 4096)
	}

	if r.Checked == nil {
		return ErrMissingChecked
	}

	return nil
}

// WidgetSummary describes a configured taxonomy widget.
type WidgetSummary struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	Datastore string         `json:"datastore"`
	Table     string         `json:"table"`
	Category  FieldReference `json:"category"`
	Type      FieldReference `json:"type,omitzero"`
	SubType   FieldReference `json:"subtype,omitzero"`
}
