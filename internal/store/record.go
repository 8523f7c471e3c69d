package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/neonviz/neon/internal/metrics"
	"github.com/neonviz/neon/internal/models"
)

const (
	// maxInsertBatch keeps each INSERT well inside PostgreSQL's parameter limit.
	maxInsertBatch = 500

	// maxSearchLimit caps a single search.
	maxSearchLimit = 50000

	defaultSearchLimit = 10000
)

// RecordStore holds the rows that taxonomies aggregate.
type RecordStore struct {
	Base
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(base Base) *RecordStore {
	return &RecordStore{Base: base}
}

// InsertRecords appends records to a datastore table and returns how many
// were stored.
func (s *RecordStore) InsertRecords(
	ctx context.Context,
	tenantID, datastore, table string,
	records []models.Record,
) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	encoded := make([][]byte, len(records))
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encoding record %d: %w", i, err)
		}
		encoded[i] = data
	}

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("inserting records: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	total := 0

	for i := 0; i < len(encoded); i += maxInsertBatch {
		end := min(i+maxInsertBatch, len(encoded))
		batch := encoded[i:end]

		valueParts := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)+3)
		args = append(args, tenantID, datastore, table)

		for j, data := range batch {
			valueParts = append(valueParts, fmt.Sprintf("($1, $2, $3, $%d)", j+4))
			args = append(args, data)
		}

		sql := `INSERT INTO records (tenant_id, datastore, table_name, data) VALUES ` +
			strings.Join(valueParts, ", ")

		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting records batch: %w", err)
		}

		total += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing records: %w", err)
	}

	metrics.RecordsIngested.Add(float64(total))

	s.notify("records.ingested", tenantID, map[string]any{
		"datastore": datastore,
		"table":     table,
		"count":     total,
	})

	return total, nil
}

// SearchRecords returns the records of one table that survive the query's
// applicable filter designs, oldest first.
func (s *RecordStore) SearchRecords(ctx context.Context, tenantID string, q models.SearchQuery) ([]models.Record, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	sql, args := buildSearchQuery(tenantID, q)

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executing record search: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Record, error) {
		var r models.Record
		err := row.Scan(&r)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}

	return records, nil
}

// buildSearchQuery renders q as SQL. Each applicable "!=" design excludes
// rows whose column equals (or, for arrays, contains) any listed value; each
// "=" design keeps only rows matching one of its values. Other operators and
// designs without defined values are skipped.
func buildSearchQuery(tenantID string, q models.SearchQuery) (string, []any) {
	var sb strings.Builder

	args := []any{tenantID, q.Datastore, q.Table}
	sb.WriteString(`SELECT data FROM records
		WHERE tenant_id = $1 AND datastore = $2 AND table_name = $3`)

	for i := range q.Filters {
		d := &q.Filters[i]
		if !q.Targets(d.Field) || q.Ignores(d.Field) {
			continue
		}

		values := d.DefinedValues()
		if len(values) == 0 {
			continue
		}

		var negate bool

		switch d.Operator {
		case models.OperatorNotEqual:
			negate = true
		case "=":
		default:
			continue
		}

		args = append(args, d.Field.Column, strings.Split(d.Field.Column, "."), values)
		n := len(args)
		cond := matchAny(n-2, n-1, n)

		if negate {
			sb.WriteString(" AND NOT " + cond)
		} else {
			sb.WriteString(" AND " + cond)
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	limit = min(limit, maxSearchLimit)

	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY id LIMIT $%d", len(args))

	return sb.String(), args
}

// matchAny renders a predicate that is true when the column (looked up
// verbatim first, then as a nested path) equals one of the values, or is an
// array holding one of them. Missing columns never match.
func matchAny(colArg, pathArg, valuesArg int) string {
	v := fmt.Sprintf("COALESCE(data -> $%d::text, data #> $%d::text[])", colArg, pathArg)

	return fmt.Sprintf(`COALESCE(CASE jsonb_typeof(%[1]s)
			WHEN 'array' THEN EXISTS (SELECT 1 FROM jsonb_array_elements_text(%[1]s) AS e(v) WHERE e.v = ANY($%[2]d::text[]))
			ELSE (%[1]s #>> '{}') = ANY($%[2]d::text[])
		END, false)`, v, valuesArg)
}
