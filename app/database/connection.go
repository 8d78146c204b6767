package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps the connection pool with the dialect-aware query builder.
type DB struct {
	*sql.DB
	Dialect Dialect
	sb      sq.StatementBuilderType
}

// NewConnection opens and pings a database. driver is "postgres" or "sqlite".
func NewConnection(driver, dsn string) (*DB, error) {
	dialect := Dialect(driver)

	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		dsn = sqlitePragmas(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent votes
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:      conn,
		Dialect: dialect,
		sb:      statementBuilder(dialect),
	}, nil
}

// statementBuilder binds squirrel to the placeholder style of the dialect.
func statementBuilder(dialect Dialect) sq.StatementBuilderType {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholder)
}

// PostgresDSN builds a lib/pq connection string from discrete settings.
func PostgresDSN(host, port, user, password, name string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host + ":" + port,
		Path:     name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func sqlitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// dbTime is the storage form of every timestamp: UTC, second precision.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
