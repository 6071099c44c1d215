package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"job-sync/internal/database"
)

type call struct {
	query string
	args  []any
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan dest mismatch: %d != %d", len(dest), len(r.vals))
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer {
			return fmt.Errorf("scan dest %d is not a pointer", i)
		}
		el := dv.Elem()
		if r.vals[i] == nil {
			el.Set(reflect.Zero(el.Type()))
			continue
		}
		v := reflect.ValueOf(r.vals[i])
		if !v.Type().AssignableTo(el.Type()) {
			return fmt.Errorf("scan type mismatch at %d: %s into %s", i, v.Type(), el.Type())
		}
		el.Set(v)
	}
	return nil
}

type fakeRows struct {
	rows []fakeRow
	pos  int
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.pos-1].Scan(dest...) }

// fakeDB routes statements by lowercased query prefix to scripted handlers
// and records every call.
type fakeDB struct {
	mu sync.Mutex

	exec     func(q string, args []any) (int64, error)
	query    func(q string, args []any) ([]fakeRow, error)
	queryRow func(q string, args []any) fakeRow

	calls     []call
	commits   int
	rollbacks int
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (db *fakeDB) record(q string, args []any) string {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := normalizeQuery(q)
	db.calls = append(db.calls, call{query: n, args: args})
	return n
}

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }
func (db *fakeDB) SQLDB() *sql.DB                 { return nil }

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	q := db.record(query, args)
	if db.exec == nil {
		return 0, nil
	}
	return db.exec(q, args)
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	q := db.record(query, args)
	if db.query == nil {
		return &fakeRows{}, nil
	}
	rows, err := db.query(q, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: rows}, nil
}

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	q := db.record(query, args)
	if db.queryRow == nil {
		return fakeRow{err: fmt.Errorf("no row scripted for %q", q)}
	}
	return db.queryRow(q, args)
}

func (db *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	return &fakeTx{db: db}, nil
}

func (db *fakeDB) lastCall() call {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.calls) == 0 {
		return call{}
	}
	return db.calls[len(db.calls)-1]
}

type fakeTx struct {
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.db.Exec(ctx, query, args...)
}

func (t *fakeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	t.db.commits++
	t.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.db.mu.Lock()
	t.db.rollbacks++
	t.db.mu.Unlock()
	return nil
}
