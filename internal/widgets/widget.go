// Package widgets loads taxonomy widget definitions from YAML and keeps them
// current as the file changes.
package widgets

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/neonviz/neon/internal/models"
	"github.com/neonviz/neon/internal/taxonomy"
)

// Field names one column. Database and table default to the widget's.
type Field struct {
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	Column   string `yaml:"column" validate:"required,max=255"`
	Pretty   string `yaml:"pretty" validate:"max=255"`
}

// FieldSet assigns columns to taxonomy roles.
type FieldSet struct {
	Category Field  `yaml:"category"`
	Type     *Field `yaml:"type" validate:"omitempty"`
	SubType  *Field `yaml:"subtype" validate:"omitempty"`
	Value    *Field `yaml:"value" validate:"omitempty"`
	ID       Field  `yaml:"id"`
	SourceID *Field `yaml:"source_id" validate:"omitempty"`
}

// Widget is one configured taxonomy view over a datastore table.
type Widget struct {
	ID        string   `yaml:"id" validate:"required,max=128,excludesall=/ "`
	Title     string   `yaml:"title" validate:"max=255"`
	Datastore string   `yaml:"datastore" validate:"required,max=255"`
	Table     string   `yaml:"table" validate:"required,max=255"`
	Limit     int      `yaml:"limit" validate:"gte=0,lte=50000"`
	Fields    FieldSet `yaml:"fields"`
}

type file struct {
	Widgets []Widget `yaml:"widgets" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a widget file. Unknown keys are rejected so
// typos in role names surface at load time.
func Parse(r io.Reader) ([]Widget, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("decoding widgets: %w", err)
	}

	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validating widgets: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Widgets))
	for _, w := range f.Widgets {
		if _, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("validating widgets: duplicate widget id %q", w.ID)
		}
		seen[w.ID] = struct{}{}
	}

	return f.Widgets, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) ([]Widget, error) {
	return Parse(bytes.NewReader(data))
}

func (w *Widget) ref(f *Field) models.FieldReference {
	if f == nil {
		return models.FieldReference{}
	}

	ref := models.FieldReference{Database: f.Database, Table: f.Table, Column: f.Column, Pretty: f.Pretty}
	if ref.Database == "" {
		ref.Database = w.Datastore
	}

	if ref.Table == "" {
		ref.Table = w.Table
	}

	return ref
}

// TaxonomyFields resolves the widget's role assignments.
func (w *Widget) TaxonomyFields() taxonomy.Fields {
	return taxonomy.NewFields(map[taxonomy.FieldRole]models.FieldReference{
		taxonomy.RoleCategory: w.ref(&w.Fields.Category),
		taxonomy.RoleType:     w.ref(w.Fields.Type),
		taxonomy.RoleSubType:  w.ref(w.Fields.SubType),
		taxonomy.RoleValue:    w.ref(w.Fields.Value),
		taxonomy.RoleID:       w.ref(&w.Fields.ID),
		taxonomy.RoleSourceID: w.ref(w.Fields.SourceID),
	})
}

// Summary describes the widget for listings.
func (w *Widget) Summary() models.WidgetSummary {
	return models.WidgetSummary{
		ID:        w.ID,
		Title:     w.Title,
		Datastore: w.Datastore,
		Table:     w.Table,
		Category:  w.ref(&w.Fields.Category),
		Type:      w.ref(w.Fields.Type),
		SubType:   w.ref(w.Fields.SubType),
	}
}
