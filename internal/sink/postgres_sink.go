package sink

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/chtzvt/tablemapper/internal/secrets"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

var postgresDialect = sqlDialect{
	quote: pq.QuoteIdentifier,
	create: `CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	payload BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	insert: `INSERT INTO %s (name, payload, created_at) VALUES ($1, $2, $3)`,
}

// NewPostgresSink connects through lib/pq, or pgx when the "driver" option
// is "pgx".
func NewPostgresSink(opts map[string]interface{}, store secrets.Store) (Sink, error) {
	driver := stringOpt(opts, "driver", "postgres")
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("postgres sink: unknown driver %q", driver)
	}
	dsn, _ := opts["dsn"].(string)
	if dsn == "" {
		host, _ := opts["host"].(string)
		database, _ := opts["database"].(string)
		if host == "" || database == "" {
			return nil, errors.New("postgres sink requires 'dsn' or 'host' and 'database' options")
		}
		dsn = buildPostgresDSN(host, toInt(opts["port"], 5432), stringOpt(opts, "username", "postgres"),
			database, stringOpt(opts, "ssl_mode", "disable"),
			optionalSecret(store, opts, "password_secret", "POSTGRES_PASSWORD"))
	}
	return newSQLSink("postgres", driver, dsn, opts, postgresDialect)
}

// buildPostgresDSN returns a postgres:// URL. Both drivers accept it, and
// url escaping keeps spaces and quotes in credentials intact.
func buildPostgresDSN(host string, port int, user, dbname, sslmode, password string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + dbname,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

func init() {
	Register("postgres", NewPostgresSink)
}
