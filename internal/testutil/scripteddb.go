// Package testutil provides a scripted database/sql driver for service and
// handler tests. Each expected statement is matched in order by regexp and
// answered with canned rows or an exec result.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
)

type StepKind int

const (
	KindQuery StepKind = iota
	KindExec
)

type anyArg struct{}

// AnyArg matches any argument value in Step.Args.
var AnyArg = anyArg{}

type Step struct {
	Kind    StepKind
	Pattern *regexp.Regexp
	// Args is compared positionally when non-nil.
	Args         []interface{}
	Columns      []string
	Rows         [][]driver.Value
	Err          error
	RowsAffected int64
}

// Query is shorthand for a query step.
func Query(pattern string, columns []string, rows ...[]driver.Value) *Step {
	return &Step{Kind: KindQuery, Pattern: regexp.MustCompile(pattern), Columns: columns, Rows: rows}
}

// Exec is shorthand for an exec step affecting the given number of rows.
func Exec(pattern string, rowsAffected int64) *Step {
	return &Step{Kind: KindExec, Pattern: regexp.MustCompile(pattern), RowsAffected: rowsAffected}
}

func (s *Step) WithArgs(args ...interface{}) *Step {
	s.Args = args
	return s
}

func (s *Step) WillFail(err error) *Step {
	s.Err = err
	return s
}

type Script struct {
	mu       sync.Mutex
	steps    []*Step
	executed []string
	anyOrder bool
}

func (s *Script) next(kind StepKind, query string, args []driver.NamedValue) (*Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = append(s.executed, query)
	if len(s.steps) == 0 {
		return nil, fmt.Errorf("unexpected statement: %s", query)
	}
	if s.anyOrder {
		for i, step := range s.steps {
			if step.Kind == kind && step.Pattern.MatchString(query) && step.matchArgs(query, args) == nil {
				s.steps = append(s.steps[:i], s.steps[i+1:]...)
				return step, nil
			}
		}
		return nil, fmt.Errorf("unexpected statement: %s", query)
	}
	step := s.steps[0]
	if step.Kind != kind {
		return nil, fmt.Errorf("unexpected kind for %s: got %v want %v", query, kind, step.Kind)
	}
	if !step.Pattern.MatchString(query) {
		return nil, fmt.Errorf("unexpected statement: %s (want %s)", query, step.Pattern)
	}
	if err := step.matchArgs(query, args); err != nil {
		return nil, err
	}
	s.steps = s.steps[1:]
	return step, nil
}

func (step *Step) matchArgs(query string, args []driver.NamedValue) error {
	if step.Args == nil {
		return nil
	}
	if len(step.Args) != len(args) {
		return fmt.Errorf("unexpected arg count for %s: got %d want %d", query, len(args), len(step.Args))
	}
	for i := range args {
		if _, ok := step.Args[i].(anyArg); ok {
			continue
		}
		if args[i].Value != step.Args[i] {
			return fmt.Errorf("unexpected arg %d for %s: got %#v want %#v", i+1, query, args[i].Value, step.Args[i])
		}
	}
	return nil
}

// AnyOrder lets steps match in any order, for code that queries concurrently.
func (s *Script) AnyOrder() *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anyOrder = true
	return s
}

// Remaining returns the number of expected statements that never ran.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Executed returns every statement the code under test issued.
func (s *Script) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// Verify fails the test when expected statements did not run.
func (s *Script) Verify(t *testing.T) {
	t.Helper()
	if n := s.Remaining(); n != 0 {
		t.Fatalf("unmet expectations: %d statements never ran", n)
	}
}

var driverSeq int64

// NewDB returns an sqlx handle (postgres bindvars) backed by the scripted steps.
func NewDB(t *testing.T, steps ...*Step) (*sqlx.DB, *Script) {
	t.Helper()
	script := &Script{steps: steps}
	name := fmt.Sprintf("scripted_%d", atomic.AddInt64(&driverSeq, 1))
	sql.Register(name, &scriptedDriver{script: script})
	sqlDB, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("failed to open scripted db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlx.NewDb(sqlDB, "pgx"), script
}

type scriptedDriver struct {
	script *Script
}

func (d *scriptedDriver) Open(string) (driver.Conn, error) {
	return &scriptedConn{script: d.script}, nil
}

type scriptedConn struct {
	script *Script
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *scriptedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	step, err := c.script.next(KindQuery, query, args)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &scriptedRows{columns: step.Columns, rows: step.Rows}, nil
}

func (c *scriptedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	step, err := c.script.next(KindExec, query, args)
	if err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return driver.RowsAffected(step.RowsAffected), nil
}

type scriptedRows struct {
	columns []string
	rows    [][]driver.Value
	idx     int
}

func (r *scriptedRows) Columns() []string { return r.columns }

func (r *scriptedRows) Close() error { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.idx]
	for i := range dest {
		dest[i] = nil
	}
	copy(dest, row)
	r.idx++
	return nil
}
