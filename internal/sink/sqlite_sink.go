package sink

import (
	"errors"

	"github.com/chtzvt/tablemapper/internal/secrets"
	_ "modernc.org/sqlite"
)

var sqliteDialect = sqlDialect{
	quote: quoteWith(`"`),
	create: `CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
)`,
	insert: `INSERT INTO %s (name, payload, created_at) VALUES (?, ?, ?)`,
}

// NewSQLiteSink writes chunks into a local database file.
func NewSQLiteSink(opts map[string]interface{}, _ secrets.Store) (Sink, error) {
	path, _ := opts["path"].(string)
	if path == "" {
		return nil, errors.New("sqlite sink requires 'path' option")
	}
	return newSQLSink("sqlite", "sqlite", path+"?_pragma=busy_timeout(5000)", opts, sqliteDialect)
}

func init() {
	Register("sqlite", NewSQLiteSink)
}
