package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chtzvt/tablemapper/internal/secrets"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlDialect holds the statements one database needs for the chunk table.
// Both statements take the quoted table name.
type sqlDialect struct {
	quote  func(string) string
	create string
	insert string
}

func quoteWith(q string) func(string) string {
	return func(s string) string {
		return q + strings.ReplaceAll(s, q, q+q) + q
	}
}

// SQLSink stores each closed chunk as one row of (name, payload,
// created_at) in the configured table.
type SQLSink struct {
	driver      string
	dsn         string
	table       string
	createTable bool
	dialect     sqlDialect

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

func newSQLSink(kind, driver, dsn string, opts map[string]interface{}, dialect sqlDialect) (*SQLSink, error) {
	table, _ := opts["table"].(string)
	if table == "" {
		table = "tablemapper_chunks"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%s sink: invalid table name %q", kind, table)
	}
	return &SQLSink{
		driver:      driver,
		dsn:         dsn,
		table:       table,
		createTable: opts["create_table"] == nil || toBool(opts["create_table"]),
		dialect:     dialect,
	}, nil
}

func stringOpt(opts map[string]interface{}, key, def string) string {
	if v, _ := opts[key].(string); v != "" {
		return v
	}
	return def
}

// optionalSecret returns the named secret, or "" when it is not available.
func optionalSecret(store secrets.Store, opts map[string]interface{}, optKey, defName string) string {
	if store == nil {
		return ""
	}
	b, err := lookupSecret(context.Background(), store, opts, optKey, defName)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *SQLSink) createStatement() string {
	return fmt.Sprintf(s.dialect.create, s.dialect.quote(s.table))
}

func (s *SQLSink) insertStatement() string {
	return fmt.Sprintf(s.dialect.insert, s.dialect.quote(s.table))
}

// open connects on first use. A failed connect is retried by the next chunk.
func (s *SQLSink) open(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSinkClosed
	}
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, err
	}
	if s.createTable {
		if _, err := db.ExecContext(ctx, s.createStatement()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}
	s.db = db
	return db, nil
}

func (s *SQLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	return newBufferWriter(func(payload []byte) error {
		db, err := s.open(ctx)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, s.insertStatement(), name, payload, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert chunk %s: %w", name, err)
		}
		return nil
	}), nil
}
