// Package dbxtest provides a dbx.Querier that records statements instead of
// running them, for checking the SQL the repositories build.
package dbxtest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Statement struct {
	SQL  string
	Args []any
}

// Recorder keeps every statement it is handed. Query yields no rows,
// QueryRow scans fail with Err (pgx.ErrNoRows when unset) and Exec reports
// RowsAffected unless Err is set.
type Recorder struct {
	Err          error
	RowsAffected int64

	mu         sync.Mutex
	statements []Statement
}

func (r *Recorder) record(sql string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, Statement{SQL: sql, Args: append([]any(nil), args...)})
}

func (r *Recorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.record(sql, args)
	if r.Err != nil {
		return pgconn.CommandTag{}, r.Err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", r.RowsAffected)), nil
}

func (r *Recorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.record(sql, args)
	return emptyRows{}, nil
}

func (r *Recorder) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	r.record(sql, args)
	err := r.Err
	if err == nil {
		err = pgx.ErrNoRows
	}
	return errRow{err: err}
}

func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.statements...)
}

// Last returns the most recent statement, or a zero Statement if none ran.
func (r *Recorder) Last() Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statements) == 0 {
		return Statement{}
	}
	return r.statements[len(r.statements)-1]
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Placeholders lists the distinct $n positions referenced by sql, ascending.
func Placeholders(sql string) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, m := range placeholder.FindAllStringSubmatch(sql, -1) {
		n, _ := strconv.Atoi(m[1])
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// Sequence returns 1..n, the placeholders a statement with n args must use.
func Sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT 0") }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(...any) error                            { return pgx.ErrNoRows }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }
