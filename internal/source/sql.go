package source

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/roach88/dirsync/internal/props"
)

// SQLQuery runs a query against any database/sql driver and serves each
// result row as a source row.
type SQLQuery struct {
	def     Definition
	decoder *encoding.Decoder

	once sync.Once
	db   *sql.DB
	err  error
}

// NewSQLQuery creates a SQL source. Encoding, when set, names the character
// set text columns are stored in (for example "windows-1252"); they are
// decoded to UTF-8.
func NewSQLQuery(def Definition) (*SQLQuery, error) {
	q := &SQLQuery{def: def}
	if def.Encoding != "" {
		enc, err := htmlindex.Get(def.Encoding)
		if err != nil {
			return nil, fmt.Errorf("source %q: encoding %q: %w", def.Name, def.Encoding, err)
		}
		q.decoder = enc.NewDecoder()
	}
	return q, nil
}

// NewSQLQueryDB creates a SQL source over an already open handle.
func NewSQLQueryDB(db *sql.DB, def Definition) *SQLQuery {
	q := &SQLQuery{def: def, db: db}
	q.once.Do(func() {})
	return q
}

func (q *SQLQuery) ID() int64         { return q.def.ID }
func (q *SQLQuery) Name() string      { return q.def.Name }
func (q *SQLQuery) KeyColumn() string { return q.def.KeyColumn }

func (q *SQLQuery) handle() (*sql.DB, error) {
	q.once.Do(func() {
		q.db, q.err = sql.Open(q.def.Driver, q.def.DSN)
	})
	return q.db, q.err
}

// ListColumns runs the query and reports its result columns without reading
// any row.
func (q *SQLQuery) ListColumns(ctx context.Context) ([]string, error) {
	db, err := q.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q.def.Query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.def.Name, err)
	}
	defer rows.Close()
	return rows.Columns()
}

func (q *SQLQuery) Rows(ctx context.Context) iter.Seq2[props.Dict, error] {
	return func(yield func(props.Dict, error) bool) {
		db, err := q.handle()
		if err != nil {
			yield(nil, err)
			return
		}
		rows, err := db.QueryContext(ctx, q.def.Query)
		if err != nil {
			yield(nil, fmt.Errorf("query %s: %w", q.def.Name, err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}

		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(nil, fmt.Errorf("scan %s: %w", q.def.Name, err))
				return
			}

			row := make(props.Dict, len(cols))
			for i, col := range cols {
				v, err := q.convert(values[i])
				if err != nil {
					yield(nil, fmt.Errorf("column %s: %w", col, err))
					return
				}
				row[col] = v
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (q *SQLQuery) convert(v any) (props.Value, error) {
	switch val := v.(type) {
	case []byte:
		return q.text(val)
	case string:
		if q.decoder != nil {
			return q.text([]byte(val))
		}
		return props.String(val), nil
	case time.Time:
		return props.String(val.UTC().Format(time.RFC3339)), nil
	}
	return props.FromAny(v)
}

func (q *SQLQuery) text(b []byte) (props.Value, error) {
	if q.decoder == nil {
		return props.String(string(b)), nil
	}
	decoded, err := q.decoder.Bytes(b)
	if err != nil {
		return nil, err
	}
	return props.String(string(decoded)), nil
}

// Close releases the database handle.
func (q *SQLQuery) Close() error {
	if q.db == nil {
		return nil
	}
	return q.db.Close()
}
