// Package database owns the connection pool to the personas database.
//
// Statements are executed through two primitives, Select and Pool.Exec, which never return a
// bare error. They return a Result whose Kind tells whether rows were found, no rows matched,
// a write was acknowledged or the driver failed.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
)

// ProbeTimeout bounds the connection attempt made when the pool is opened.
const ProbeTimeout = 10 * time.Second

// driverNames maps the configured driver to the name registered with database/sql.
var driverNames = map[string]string{
	config.DriverMySQL:    "mysql",
	config.DriverPostgres: "pgx",
	config.DriverSQLite:   "sqlite",
}

// Pool is a bounded pool of database connections.
type Pool struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewPool wraps an already opened database handle. The driver name selects the placeholder
// syntax used for statements. The database argument can be a real database for production use
// or a mock database within unit tests.
func NewPool(sqlDB *sql.DB, driverName string, logger zerolog.Logger) *Pool {
	return &Pool{
		db:  sqlx.NewDb(sqlDB, driverName),
		log: logger,
	}
}

// Open creates the pool described by cfg and probes it once. A failed probe is logged but
// does not fail Open: connections are attempted again by the first statement.
func Open(ctx context.Context, cfg config.Database, logger zerolog.Logger) (*Pool, error) {
	driverName, ok := driverNames[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := sqlx.Open(driverName, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", cfg.Driver, err)
	}
	maxConnections := cfg.MaxConnections
	if maxConnections < 1 {
		maxConnections = config.DefaultMaxConnections
	}
	db.SetMaxOpenConns(maxConnections)
	db.SetMaxIdleConns(maxConnections)

	pool := &Pool{db: db, log: logger}
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	_ = pool.Probe(probeCtx)
	return pool, nil
}

// DSN builds the driver specific data source name. For sqlite the database name is the path
// of the database file.
func DSN(cfg config.Database) string {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort,
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=disable",
		}
		return dsn.String()
	case config.DriverSQLite:
		return cfg.Name
	default:
		mysqlCfg := mysql.NewConfig()
		mysqlCfg.User = cfg.User
		mysqlCfg.Passwd = cfg.Password
		mysqlCfg.Net = "tcp"
		mysqlCfg.Addr = hostPort
		mysqlCfg.DBName = cfg.Name
		mysqlCfg.ParseTime = true
		return mysqlCfg.FormatDSN()
	}
}

// Probe acquires one connection and releases it again, logging the outcome.
func (p *Pool) Probe(ctx context.Context) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		driverErr := Classify(err)
		p.log.Error().
			Str("outcome", "error").
			Str("code", string(driverErr.Code)).
			Err(err).
			Msg("database connection failed")
		return driverErr
	}
	p.log.Info().Str("outcome", "success").Msg("database connection established")
	return conn.Close()
}

// DB returns the underlying handle, for instance to collect pool statistics.
func (p *Pool) DB() *sql.DB {
	return p.db.DB
}

// Close drains the pool and closes all connections.
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		p.log.Error().Str("outcome", "error").Err(err).Msg("closing database connections failed")
		return fmt.Errorf("close database pool: %w", err)
	}
	p.log.Info().Str("outcome", "success").Msg("database connections closed")
	return nil
}

// Select runs a query and scans every row into a T. A query that matches no rows yields
// KindEmpty rather than an empty KindRows.
func Select[T any](ctx context.Context, p *Pool, query string, args ...any) Result[[]T] {
	var rows []T
	if err := p.db.SelectContext(ctx, &rows, p.db.Rebind(query), args...); err != nil {
		p.log.Debug().Err(err).Str("query", query).Msg("query failed")
		return failedResult[[]T](Classify(err))
	}
	if len(rows) == 0 {
		return emptyResult[[]T]()
	}
	return rowsResult(rows)
}

// Exec runs a write statement. The affected row count is reported as is, so a statement that
// matched nothing is still acknowledged.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) Result[Acknowledgment] {
	res, err := p.db.ExecContext(ctx, p.db.Rebind(query), args...)
	if err != nil {
		p.log.Debug().Err(err).Str("query", query).Msg("statement failed")
		return failedResult[Acknowledgment](Classify(err))
	}
	var ack Acknowledgment
	if affected, err := res.RowsAffected(); err == nil {
		ack.AffectedRows = affected
	}
	// Not every driver reports an insert id; pgx returns an error here.
	if id, err := res.LastInsertId(); err == nil {
		ack.InsertId = id
	}
	return ackResult(ack)
}
