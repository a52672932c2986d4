package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type call struct {
	sql  string
	args []any
}

// fakeDB is a scripted DBTX. Query returns rows in order from queryRows;
// QueryRow returns results in order from rowResults.
type fakeDB struct {
	execs   []call
	queries []call

	execErr    error
	queryErr   error
	queryRows  [][][]any
	rowResults []fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, call{sql, args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, call{sql, args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var data [][]any
	if len(f.queryRows) > 0 {
		data, f.queryRows = f.queryRows[0], f.queryRows[1:]
	}
	return &fakeRows{data: data}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, call{sql, args})
	if len(f.rowResults) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	r := f.rowResults[0]
	f.rowResults = f.rowResults[1:]
	return r
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	data   [][]any
	i      int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.data[r.i-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.i-1], nil
}

// assign copies values into scan destinations of the same type.
func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		d := reflect.ValueOf(dest[i]).Elem()
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(d.Type()) {
			return fmt.Errorf("scan column %d: %s into %s", i, val.Type(), d.Type())
		}
		d.Set(val)
	}
	return nil
}

func pgUUID(s string) pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.MustParse(s), Valid: true}
}

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
