package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Warehouse wraps a connection pool with the schema-qualified table
// operations the loader needs.
type Warehouse struct {
	pool   Pool
	schema string
}

// New creates a Warehouse over the given pool and schema.
func New(pool Pool, schema string) *Warehouse {
	if schema == "" {
		schema = "quora_ads"
	}
	return &Warehouse{pool: pool, schema: schema}
}

// Schema returns the warehouse schema name.
func (w *Warehouse) Schema() string {
	return w.schema
}

func (w *Warehouse) qualify(table string) string {
	return pgx.Identifier{w.schema, table}.Sanitize()
}

// EnsureSchema creates the warehouse schema and the harvest run log.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{w.schema}.Sanitize())
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "warehouse: ensure schema %s", w.schema)
	}
	return w.ensureRunLog(ctx)
}

// EnsureTable creates the 28-column metrics table if missing. When
// uniqueKey is set, a unique index on the composite merge key is created
// as well, enforcing the one-row-per-key invariant on the target table.
func (w *Warehouse) EnsureTable(ctx context.Context, table string, uniqueKey bool) error {
	defs := make([]string, len(Columns))
	for i, c := range Columns {
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.sqlType())
	}
	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.qualify(table), strings.Join(defs, ", "))
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "warehouse: ensure table %s", table)
	}

	if uniqueKey {
		idx := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			pgx.Identifier{table + "_merge_key"}.Sanitize(),
			w.qualify(table),
			quoteAndJoin(KeyColumns),
		)
		if _, err := w.pool.Exec(ctx, idx); err != nil {
			return eris.Wrapf(err, "warehouse: ensure merge key index on %s", table)
		}
	}
	return nil
}

// DropTable removes a table if it exists.
func (w *Warehouse) DropTable(ctx context.Context, table string) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", w.qualify(table))
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "warehouse: drop table %s", table)
	}
	return nil
}

// LoadRows truncates the table and bulk-loads the records via COPY.
// Records that cannot be converted to the table schema are row-level
// errors: each is logged, and any at all fails the load.
func (w *Warehouse) LoadRows(ctx context.Context, table string, records []map[string]any) (int64, error) {
	rows := make([][]any, 0, len(records))
	var rowErrs int
	for i, rec := range records {
		row, err := convertRow(rec)
		if err != nil {
			zap.L().Error("rejected staging row",
				zap.Int("line", i+1),
				zap.Error(err),
			)
			rowErrs++
			continue
		}
		rows = append(rows, row)
	}
	if rowErrs > 0 {
		return 0, eris.Errorf("warehouse: %d of %d rows rejected during load into %s", rowErrs, len(records), table)
	}

	if _, err := w.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", w.qualify(table))); err != nil {
		return 0, eris.Wrapf(err, "warehouse: truncate %s", table)
	}

	n, err := w.pool.CopyFrom(ctx, pgx.Identifier{w.schema, table}, ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: COPY INTO %s", table)
	}
	return n, nil
}

// MergeUpsert merges staging into target on the composite key: matched
// rows have their mutable columns rewritten from staging, unmatched
// staging rows are inserted whole. Re-running with identical staging
// content leaves the target unchanged.
func (w *Warehouse) MergeUpsert(ctx context.Context, target, staging string) (int64, error) {
	var on []string
	for _, k := range KeyColumns {
		col := pgx.Identifier{k}.Sanitize()
		on = append(on, fmt.Sprintf("old.%s = tmp.%s", col, col))
	}

	var set []string
	for _, c := range UpdateColumns() {
		col := pgx.Identifier{c}.Sanitize()
		set = append(set, fmt.Sprintf("%s = tmp.%s", col, col))
	}

	var values []string
	for _, c := range ColumnNames() {
		values = append(values, "tmp."+pgx.Identifier{c}.Sanitize())
	}

	sql := fmt.Sprintf(`MERGE INTO %s AS old
USING %s AS tmp
ON %s
WHEN MATCHED THEN UPDATE SET %s
WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)`,
		w.qualify(target),
		w.qualify(staging),
		strings.Join(on, " AND "),
		strings.Join(set, ", "),
		quoteAndJoin(ColumnNames()),
		strings.Join(values, ", "),
	)

	tag, err := w.pool.Exec(ctx, sql)
	if err != nil {
		return 0, eris.Wrapf(err, "warehouse: merge %s into %s", staging, target)
	}
	return tag.RowsAffected(), nil
}

// convertRow maps an artifact record onto the table columns in order.
// Missing fields become NULL.
func convertRow(rec map[string]any) ([]any, error) {
	row := make([]any, len(Columns))
	for i, c := range Columns {
		v, ok := rec[c.Name]
		if !ok || v == nil {
			row[i] = nil
			continue
		}
		converted, err := convertValue(v, c.Kind)
		if err != nil {
			return nil, eris.Wrapf(err, "column %s", c.Name)
		}
		row[i] = converted
	}
	return row, nil
}

func convertValue(v any, kind ColumnKind) (any, error) {
	switch kind {
	case KindInt:
		switch n := v.(type) {
		case float64:
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
		return nil, eris.Errorf("expected integer, got %T", v)
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
		return nil, eris.Errorf("expected number, got %T", v)
	case KindDate:
		s, ok := v.(string)
		if !ok {
			return nil, eris.Errorf("expected date string, got %T", v)
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, eris.Wrapf(err, "parse date %q", s)
		}
		return t, nil
	default:
		s, ok := v.(string)
		if !ok {
			return nil, eris.Errorf("expected string, got %T", v)
		}
		return s, nil
	}
}
