package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestPostgresSink_DSNFromOptions(t *testing.T) {
	s, err := NewPostgresSink(map[string]interface{}{
		"host":     "db.internal",
		"port":     6432.0,
		"username": "loader",
		"database": "warehouse",
		"table":    "table_names",
	}, secrets.Static{"POSTGRES_PASSWORD": "pw"})
	require.NoError(t, err)
	pg := s.(*SQLSink)
	require.Equal(t, "postgres", pg.driver)
	require.Equal(t, "postgres://loader:pw@db.internal:6432/warehouse?sslmode=disable", pg.dsn)
	require.True(t, pg.createTable)
	require.Equal(t, `INSERT INTO "table_names" (name, payload, created_at) VALUES ($1, $2, $3)`, pg.insertStatement())
	require.Contains(t, pg.createStatement(), `CREATE TABLE IF NOT EXISTS "table_names"`)
}

func TestBuildPostgresDSN_EscapesCredentials(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		dbname   string
		password string
	}{
		{"space in password", "app", "orders", "correct horse"},
		{"quote and backslash", "o'brien", "orders", `it's a \ test`},
		{"url metacharacters", "app", "my db", "p@ss:w/rd?#%"},
		{"no password", "app", "orders", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildPostgresDSN("db.internal", 5432, tt.user, tt.dbname, "disable", tt.password)

			_, err := pq.NewConnector(dsn)
			require.NoError(t, err, "lib/pq must accept %q", dsn)

			cfg, err := pgx.ParseConfig(dsn)
			require.NoError(t, err, "pgx must accept %q", dsn)
			require.Equal(t, "db.internal", cfg.Host)
			require.EqualValues(t, 5432, cfg.Port)
			require.Equal(t, tt.user, cfg.User)
			require.Equal(t, tt.dbname, cfg.Database)
			require.Equal(t, tt.password, cfg.Password)
		})
	}
}

func TestPostgresSink_DSNPassthrough(t *testing.T) {
	s, err := NewPostgresSink(map[string]interface{}{
		"dsn":          "postgres://u@localhost/db?sslmode=disable",
		"driver":       "pgx",
		"create_table": false,
	}, nil)
	require.NoError(t, err)
	pg := s.(*SQLSink)
	require.Equal(t, "postgres://u@localhost/db?sslmode=disable", pg.dsn)
	require.Equal(t, "pgx", pg.driver)
	require.Equal(t, "tablemapper_chunks", pg.table)
	require.False(t, pg.createTable)
}

func TestPostgresSink_OptionErrors(t *testing.T) {
	_, err := NewPostgresSink(map[string]interface{}{}, nil)
	require.Error(t, err)
	_, err = NewPostgresSink(map[string]interface{}{"dsn": "x", "table": "drop table; --"}, nil)
	require.ErrorContains(t, err, "invalid table name")
	_, err = NewPostgresSink(map[string]interface{}{"dsn": "x", "driver": "odbc"}, nil)
	require.ErrorContains(t, err, `unknown driver "odbc"`)
}

func TestMySQLSink_DSNFromOptions(t *testing.T) {
	s, err := NewMySQLSink(map[string]interface{}{
		"host":     "mysql.internal",
		"username": "loader",
		"database": "warehouse",
	}, secrets.Static{"MYSQL_PASSWORD": "pw"})
	require.NoError(t, err)
	my := s.(*SQLSink)
	require.Equal(t, "mysql", my.driver)
	require.Contains(t, my.dsn, "loader:pw@tcp(mysql.internal:3306)/warehouse")
	require.Contains(t, my.dsn, "parseTime=true")
	require.Equal(t, "INSERT INTO `tablemapper_chunks` (name, payload, created_at) VALUES (?, ?, ?)", my.insertStatement())

	_, err = NewMySQLSink(map[string]interface{}{"dsn": "not a dsn"}, nil)
	require.ErrorContains(t, err, "mysql sink")
	_, err = NewMySQLSink(map[string]interface{}{}, nil)
	require.ErrorContains(t, err, "requires 'dsn'")
}

func TestQuoteWith(t *testing.T) {
	require.Equal(t, "`a``b`", quoteWith("`")("a`b"))
	require.Equal(t, `"a""b"`, quoteWith(`"`)(`a"b`))
}

func TestSQLiteSink_WritesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	s, err := NewSQLiteSink(map[string]interface{}{"path": path, "table": "sql_out"}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, chunk := range []struct{ name, data string }{
		{"tables.0001", "orders\nusers\n"},
		{"tables.0002", "invoices\n"},
	} {
		w, err := s.Open(ctx, chunk.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(chunk.data))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close(), "second close is a no-op")
		_, err = w.Write([]byte("late"))
		require.Error(t, err)
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Query(`SELECT name, payload FROM sql_out ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var name string
		var payload []byte
		require.NoError(t, rows.Scan(&name, &payload))
		got = append(got, name+"="+string(payload))
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"tables.0001=orders\nusers\n", "tables.0002=invoices\n"}, got)

	pool := s.(*SQLSink).db
	require.NotNil(t, pool)
	require.GreaterOrEqual(t, pool.Stats().OpenConnections, 1)
	require.NoError(t, s.Close())
	require.Equal(t, 0, pool.Stats().OpenConnections)
	require.ErrorContains(t, pool.Ping(), "database is closed")
	require.NoError(t, s.Close(), "second close is a no-op")

	w, err := s.Open(ctx, "tables.0003")
	require.NoError(t, err)
	require.ErrorIs(t, w.Close(), errSinkClosed)
}

func TestSQLSink_CloseBeforeFirstChunk(t *testing.T) {
	s, err := NewSQLiteSink(map[string]interface{}{"path": filepath.Join(t.TempDir(), "unused.db")}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Nil(t, s.(*SQLSink).db)
}

func TestSQLiteSink_RequiresPath(t *testing.T) {
	_, err := NewSQLiteSink(map[string]interface{}{}, nil)
	require.ErrorContains(t, err, "requires 'path'")
}
