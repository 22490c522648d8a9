package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/dirk.krummacker/personas-service/internal/config"
)

type row struct {
	Id   string `db:"id"`
	Name string `db:"name"`
}

// createMockPool builds a pool on top of a mock database handle and returns the mock object
// for defining the expected SQL calls.
func createMockPool(t *testing.T) (*Pool, *sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	return NewPool(db, "mysql", zerolog.Nop()), db, mock
}

// TestSelectRows expects that matching rows are returned in the KindRows variant.
func TestSelectRows(t *testing.T) {
	pool, db, mock := createMockPool(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM t WHERE id = ?")).
		WithArgs("7").
		WillReturnRows(mock.NewRows([]string{"id", "name"}).AddRow("7", "Ana"))

	res := Select[row](context.Background(), pool, "SELECT id, name FROM t WHERE id = ?", "7")
	assert.Equal(t, KindRows, res.Kind)
	assert.Nil(t, res.Err)
	assert.Equal(t, []row{{Id: "7", Name: "Ana"}}, res.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSelectNoRows expects that a query without matches yields KindEmpty instead of an empty
// list of rows.
func TestSelectNoRows(t *testing.T) {
	pool, db, mock := createMockPool(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM t")).
		WillReturnRows(mock.NewRows([]string{"id", "name"}))

	res := Select[row](context.Background(), pool, "SELECT id, name FROM t")
	assert.Equal(t, KindEmpty, res.Kind)
	assert.Nil(t, res.Value)
	assert.Nil(t, res.Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSelectDriverError expects that a driver failure is classified.
func TestSelectDriverError(t *testing.T) {
	pool, db, mock := createMockPool(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM t")).
		WillReturnError(&mysql.MySQLError{Number: 1045, Message: "Access denied for user 'x'@'localhost'"})

	res := Select[row](context.Background(), pool, "SELECT id, name FROM t")
	assert.Equal(t, KindDriverError, res.Kind)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeAccessDenied, res.Err.Code)
	assert.Equal(t, 1045, res.Err.Errno)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestExecAcknowledgment expects that a write is acknowledged with its affected row count,
// including a count of zero.
func TestExecAcknowledgment(t *testing.T) {
	for _, affected := range []int64{0, 1} {
		pool, db, mock := createMockPool(t)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM t WHERE id = ?")).
			WithArgs("9").
			WillReturnResult(sqlmock.NewResult(0, affected))

		res := pool.Exec(context.Background(), "DELETE FROM t WHERE id = ?", "9")
		assert.Equal(t, KindAck, res.Kind)
		assert.Equal(t, Acknowledgment{AffectedRows: affected}, res.Value)
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

// TestExecDriverError expects that a rejected write yields KindDriverError.
func TestExecDriverError(t *testing.T) {
	pool, db, mock := createMockPool(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO t")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"})

	res := pool.Exec(context.Background(), "INSERT INTO t (id) VALUES (?)", "1")
	assert.Equal(t, KindDriverError, res.Kind)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeDuplicateEntry, res.Err.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRebindForPostgres expects that question mark placeholders are rewritten for pgx.
func TestRebindForPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	pool := NewPool(db, "pgx", zerolog.Nop())

	mock.ExpectExec("UPDATE t SET name = $1 WHERE id = $2").
		WithArgs("Ana", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := pool.Exec(context.Background(), "UPDATE t SET name = ? WHERE id = ?", "Ana", "1")
	assert.Equal(t, KindAck, res.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestProbeAndClose expects that probing acquires a connection and closing drains the pool.
func TestProbeAndClose(t *testing.T) {
	pool, _, mock := createMockPool(t)
	mock.ExpectClose()

	assert.NoError(t, pool.Probe(context.Background()))
	assert.NoError(t, pool.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCloseFailure expects that a failed drain is reported.
func TestCloseFailure(t *testing.T) {
	pool, _, mock := createMockPool(t)
	mock.ExpectClose().WillReturnError(errors.New("connection busy"))

	require.NoError(t, pool.Probe(context.Background()))
	assert.Error(t, pool.Close())
}

// TestOpenUnreachable expects that an unreachable database does not prevent the pool from
// being created.
func TestOpenUnreachable(t *testing.T) {
	cfg := config.Database{
		Driver:         config.DriverMySQL,
		Host:           "127.0.0.1",
		Port:           1,
		Name:           "agenda",
		MaxConnections: 3,
	}
	pool, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()
	assert.Equal(t, 3, pool.DB().Stats().MaxOpenConnections)

	probeErr := pool.Probe(context.Background())
	var driverErr *DriverError
	require.ErrorAs(t, probeErr, &driverErr)
	assert.Equal(t, CodeConnectionRefused, driverErr.Code)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Database{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	base := config.Database{Host: "db", Port: 3306, User: "root", Password: "p@ss", Name: "agenda"}

	mysqlCfg := base
	mysqlCfg.Driver = config.DriverMySQL
	parsed, err := mysql.ParseDSN(DSN(mysqlCfg))
	require.NoError(t, err)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "agenda", parsed.DBName)
	assert.True(t, parsed.ParseTime)

	pgCfg := base
	pgCfg.Driver = config.DriverPostgres
	pgCfg.Port = 5432
	assert.Equal(t, "postgres://root:p%40ss@db:5432/agenda?sslmode=disable", DSN(pgCfg))

	sqliteCfg := config.Database{Driver: config.DriverSQLite, Name: "/tmp/personas.db"}
	assert.Equal(t, "/tmp/personas.db", DSN(sqliteCfg))
}
