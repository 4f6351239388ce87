// Package db opens the configured backend and adapts its connections to a
// single Conn interface that materialises query results into a ResultSet.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"sql-search/configs"

	_ "github.com/SAP/go-hdb/driver"
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
)

type Dialect string

const (
	DialectMySQL     Dialect = "mysql"
	DialectSQLServer Dialect = "sqlserver"
	DialectHANA      Dialect = "hana"
	DialectPostgres  Dialect = "postgres"
)

// Conn is one exclusive backend session.
type Conn interface {
	// Query runs text exactly as given and materialises its first result set.
	Query(ctx context.Context, text string) (*ResultSet, error)
	Ping(ctx context.Context) error
	Close() error
}

// DataSource is a parsed DATABASE_URL.
type DataSource struct {
	Dialect Dialect
	// DriverName is the database/sql driver; empty for the native pgx path.
	DriverName string
	DSN        string
}

// ParseDataSource picks the dialect from the URL scheme.
func ParseDataSource(raw string) (DataSource, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DataSource{}, fmt.Errorf("%w: DATABASE_URL is malformed", configs.ErrStartupConfig)
	}

	switch strings.ToLower(u.Scheme) {
	case "mysql", "mariadb":
		return DataSource{Dialect: DialectMySQL, DriverName: "mysql", DSN: mysqlDSN(u)}, nil
	case "sqlserver", "mssql":
		u.Scheme = "sqlserver"
		return DataSource{Dialect: DialectSQLServer, DriverName: "sqlserver", DSN: u.String()}, nil
	case "hdb", "hana":
		u.Scheme = "hdb"
		return DataSource{Dialect: DialectHANA, DriverName: "hdb", DSN: u.String()}, nil
	case "postgres", "postgresql":
		return DataSource{Dialect: DialectPostgres, DSN: raw}, nil
	default:
		return DataSource{}, fmt.Errorf("%w: unsupported DATABASE_URL scheme %q", configs.ErrStartupConfig, u.Scheme)
	}
}

func mysqlDSN(u *url.URL) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		cfg.Addr = net.JoinHostPort(u.Host, "3306")
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = values[0]
	}
	return cfg.FormatDSN()
}

// Backend dials connections for the pool.
type Backend struct {
	Dialect Dialect

	db      *sql.DB
	pgxConf *pgx.ConnConfig
}

// Open prepares the backend without connecting; the pool dials eagerly.
func Open(cfg *configs.Config) (*Backend, error) {
	src, err := ParseDataSource(cfg.DbConfig.URL)
	if err != nil {
		return nil, err
	}

	if src.Dialect == DialectPostgres {
		pgxConf, err := pgx.ParseConfig(src.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid postgres DATABASE_URL", configs.ErrStartupConfig)
		}
		return &Backend{Dialect: src.Dialect, pgxConf: pgxConf}, nil
	}

	db, err := sql.Open(src.DriverName, src.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", configs.ErrStartupConfig, err)
	}
	// one driver connection per pool slot, closed for real when discarded
	db.SetMaxOpenConns(cfg.DbConfig.PoolMaxSize)
	db.SetMaxIdleConns(0)

	return &Backend{Dialect: src.Dialect, db: db}, nil
}

// Dial opens one session and verifies it with a ping.
func (b *Backend) Dial(ctx context.Context) (Conn, error) {
	if b.pgxConf != nil {
		conn, err := pgx.ConnectConfig(ctx, b.pgxConf.Copy())
		if err != nil {
			return nil, err
		}
		return newPgxConn(conn), nil
	}

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	c := newSQLConn(conn)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (b *Backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
