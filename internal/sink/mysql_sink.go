package sink

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = sqlDialect{
	quote: quoteWith("`"),
	create: `CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	payload LONGBLOB NOT NULL,
	created_at DATETIME(6) NOT NULL
)`,
	insert: `INSERT INTO %s (name, payload, created_at) VALUES (?, ?, ?)`,
}

func NewMySQLSink(opts map[string]interface{}, store secrets.Store) (Sink, error) {
	dsn, _ := opts["dsn"].(string)
	if dsn == "" {
		host, _ := opts["host"].(string)
		database, _ := opts["database"].(string)
		if host == "" || database == "" {
			return nil, errors.New("mysql sink requires 'dsn' or 'host' and 'database' options")
		}
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(toInt(opts["port"], 3306)))
		cfg.User = stringOpt(opts, "username", "root")
		cfg.Passwd = optionalSecret(store, opts, "password_secret", "MYSQL_PASSWORD")
		cfg.DBName = database
		cfg.ParseTime = true
		if toBool(opts["tls"]) {
			cfg.TLSConfig = "true"
		}
		dsn = cfg.FormatDSN()
	} else if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("mysql sink: %w", err)
	}
	return newSQLSink("mysql", "mysql", dsn, opts, mysqlDialect)
}

func init() {
	Register("mysql", NewMySQLSink)
}
