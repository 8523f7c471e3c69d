package models

// SearchQuery selects records from one datastore table, applying the active
// filter designs that target it.
type SearchQuery struct {
	Datastore string
	Table     string

	// Filters are the tenant's active designs. Designs on other tables are ignored.
	Filters []FilterDesign

	// IgnoreFields lists fields whose designs are skipped, so a widget's own
	// exclusions do not hide the values it needs to display.
	IgnoreFields []FieldReference

	Limit int
}

// Ignores reports whether designs on field are skipped by q.
func (q *SearchQuery) Ignores(field FieldReference) bool {
	for _, f := range q.IgnoreFields {
		if f.Equal(field) {
			return true
		}
	}

	return false
}

// Targets reports whether field belongs to the queried table.
func (q *SearchQuery) Targets(field FieldReference) bool {
	return field.Database == q.Datastore && field.Table == q.Table
}

// IngestResult reports how many records an ingest stored.
type IngestResult struct {
	Datastore string `json:"datastore"`
	Table     string `json:"table"`
	Inserted  int    `json:"inserted"`
}

// Admits reports whether r survives the designs that apply to q, using the
// same rules as the SQL search: "!=" rejects a row holding any listed value,
// "=" keeps only rows holding one, and every other design is skipped.
func (q *SearchQuery) Admits(r Record) bool {
	for i := range q.Filters {
		d := &q.Filters[i]
		if !q.Targets(d.Field) || q.Ignores(d.Field) {
			continue
		}

		values := d.DefinedValues()
		if len(values) == 0 {
			continue
		}

		var hit bool
		for _, v := range r.Strings(d.Field.Column) {
			if d.Contains(v) {
				hit = true
				break
			}
		}

		switch d.Operator {
		case OperatorNotEqual:
			if hit {
				return false
			}
		case "=":
			if !hit {
				return false
			}
		}
	}

	return true
}
