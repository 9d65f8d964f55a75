package notification

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// recordingDriver is a database/sql driver that records statements and
// answers queries from canned rows. Each DSN has its own log.
type recordingDriver struct{}

var (
	sqlLogsMu sync.Mutex
	sqlLogs   = map[string]*sqlLog{}
)

func init() {
	sql.Register("notification-recording", recordingDriver{})
}

type execCall struct {
	query string
	args  []driver.Value
}

type sqlLog struct {
	mu        sync.Mutex
	execs     []execCall
	queries   []execCall
	begins    int
	commits   int
	rollbacks int
	// failOn makes any statement containing it fail.
	failOn  string
	columns []string
	rows    [][]driver.Value
}

func (l *sqlLog) Execs() []execCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]execCall(nil), l.execs...)
}

func openRecording(t *testing.T) (*sql.DB, *sqlLog) {
	t.Helper()
	log := &sqlLog{}
	dsn := t.Name()
	sqlLogsMu.Lock()
	sqlLogs[dsn] = log
	sqlLogsMu.Unlock()

	db, err := sql.Open("notification-recording", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		sqlLogsMu.Lock()
		delete(sqlLogs, dsn)
		sqlLogsMu.Unlock()
	})
	return db, log
}

func (recordingDriver) Open(dsn string) (driver.Conn, error) {
	sqlLogsMu.Lock()
	defer sqlLogsMu.Unlock()
	log, ok := sqlLogs[dsn]
	if !ok {
		return nil, errors.New("unknown dsn " + dsn)
	}
	return &recordingConn{log: log}, nil
}

type recordingConn struct{ log *sqlLog }

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return &recordingStmt{log: c.log, query: query}, nil
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	c.log.begins++
	return &recordingTx{log: c.log}, nil
}

type recordingTx struct{ log *sqlLog }

func (tx *recordingTx) Commit() error {
	tx.log.mu.Lock()
	defer tx.log.mu.Unlock()
	tx.log.commits++
	return nil
}

func (tx *recordingTx) Rollback() error {
	tx.log.mu.Lock()
	defer tx.log.mu.Unlock()
	tx.log.rollbacks++
	return nil
}

type recordingStmt struct {
	log   *sqlLog
	query string
}

func (s *recordingStmt) Close() error  { return nil }
func (s *recordingStmt) NumInput() int { return -1 }

func (s *recordingStmt) failing() bool {
	return s.log.failOn != "" && strings.Contains(s.query, s.log.failOn)
}

func (s *recordingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if s.failing() {
		return nil, errors.New("statement failed")
	}
	s.log.execs = append(s.log.execs, execCall{query: s.query, args: args})
	return driver.RowsAffected(1), nil
}

func (s *recordingStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	if s.failing() {
		return nil, errors.New("statement failed")
	}
	s.log.queries = append(s.log.queries, execCall{query: s.query, args: args})
	return &recordingRows{columns: s.log.columns, rows: s.log.rows}, nil
}

type recordingRows struct {
	columns []string
	rows    [][]driver.Value
	next    int
}

func (r *recordingRows) Columns() []string { return r.columns }
func (r *recordingRows) Close() error      { return nil }

func (r *recordingRows) Next(dest []driver.Value) error {
	if r.next >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.next])
	r.next++
	return nil
}
