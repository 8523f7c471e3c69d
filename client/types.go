package client

import (
	"encoding/json"
	"time"
)

// Field identifies one column of a datastore table.
type Field struct {
	Database string `json:"database,omitempty"`
	Table    string `json:"table,omitempty"`
	Column   string `json:"column"`
	Pretty   string `json:"pretty,omitempty"`
}

// Widget describes a configured taxonomy widget.
type Widget struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Datastore string `json:"datastore"`
	Table     string `json:"table"`
	Category  Field  `json:"category"`
	Type      *Field `json:"type,omitempty"`
	SubType   *Field `json:"subtype,omitempty"`
}

// TaxonomyNode is one node of a widget's tree.
type TaxonomyNode struct {
	ID             int            `json:"id"`
	ExternalID     string         `json:"external_id,omitempty"`
	ExternalName   string         `json:"external_name,omitempty"`
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	Field          Field          `json:"field"`
	Level          int            `json:"level"`
	Checked        bool           `json:"checked"`
	Indeterminate  bool           `json:"indeterminate,omitempty"`
	DuplicateLabel bool           `json:"duplicate_label,omitempty"`
	NodeCount      int            `json:"node_count,omitempty"`
	LeafCount      int            `json:"leaf_count,omitempty"`
	SourceIDs      []string       `json:"source_ids,omitempty"`
	Children       []TaxonomyNode `json:"children,omitempty"`
}

// Taxonomy is a built tree with its record totals.
type Taxonomy struct {
	WidgetID string         `json:"widget_id"`
	Total    int            `json:"total"`
	Records  int            `json:"records"`
	Stale    bool           `json:"stale,omitempty"`
	BuiltAt  time.Time      `json:"built_at"`
	Groups   []TaxonomyNode `json:"groups"`
}

// ToggleResult is the tree after a toggle plus the exchange it produced.
type ToggleResult struct {
	Taxonomy
	FiltersToSet    []FilterDesign `json:"filters_to_set"`
	FiltersToDelete []FilterDesign `json:"filters_to_delete"`
}

// Toggle identifies a node by ID or dotted path.
type Toggle struct {
	NodeID  int    `json:"node_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Checked bool   `json:"checked"`
}

// FilterDesign is one compound filter on a single field. A nil value is the
// undefined operand; in a delete it matches every design on the field.
type FilterDesign struct {
	ID        string    `json:"id,omitempty"`
	Compound  string    `json:"compound"`
	Field     Field     `json:"field"`
	Operator  string    `json:"operator"`
	Values    []*string `json:"values"`
	Origin    string    `json:"origin,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Exchange sets and deletes filter designs in one step.
type Exchange struct {
	Set        []FilterDesign `json:"set"`
	Delete     []FilterDesign `json:"delete"`
	NotifySelf bool           `json:"notify_self"`
	Origin     string         `json:"origin,omitempty"`
}

// IngestResult reports how many records an ingest stored.
type IngestResult struct {
	Datastore string `json:"datastore"`
	Table     string `json:"table"`
	Inserted  int    `json:"inserted"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Widgets       int     `json:"widgets"`
	Clients       int     `json:"websocket_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Event is one message of the server's WebSocket stream.
type Event struct {
	ID   uint64          `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data,omitempty"`
}
