package database

import (
	"errors"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Code identifies the class of a driver failure. The names follow the MySQL error names so
// that clients see the same codes whichever driver is configured.
type Code string

const (
	CodeAccessDenied      Code = "ER_ACCESS_DENIED_ERROR"
	CodeConnectionRefused Code = "ECONNREFUSED"
	CodeDuplicateEntry    Code = "ER_DUP_ENTRY"
	CodeBadNull           Code = "ER_BAD_NULL_ERROR"
	CodeNoSuchTable       Code = "ER_NO_SUCH_TABLE"
	CodeBadDatabase       Code = "ER_BAD_DB_ERROR"
	CodeParseError        Code = "ER_PARSE_ERROR"
	CodeDataTooLong       Code = "ER_DATA_TOO_LONG"
	CodeUnknown           Code = "ER_UNKNOWN"
)

var mysqlCodes = map[uint16]Code{
	1045: CodeAccessDenied,
	1048: CodeBadNull,
	1049: CodeBadDatabase,
	1062: CodeDuplicateEntry,
	1064: CodeParseError,
	1146: CodeNoSuchTable,
	1406: CodeDataTooLong,
}

var postgresCodes = map[string]Code{
	"28000": CodeAccessDenied,
	"28P01": CodeAccessDenied,
	"23502": CodeBadNull,
	"3D000": CodeBadDatabase,
	"23505": CodeDuplicateEntry,
	"42601": CodeParseError,
	"42P01": CodeNoSuchTable,
	"22001": CodeDataTooLong,
}

// DriverError is a failure reported by the database driver, reduced to a driver independent
// code. It marshals to the JSON body that write endpoints echo to clients.
type DriverError struct {
	Code     Code   `json:"code"`
	Errno    int    `json:"errno"`
	SQLState string `json:"sqlState,omitempty"`
	Message  string `json:"sqlMessage"`

	err error
}

func (e *DriverError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *DriverError) Unwrap() error {
	return e.err
}

// Classify converts any error returned by database/sql into a DriverError.
func Classify(err error) *DriverError {
	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return driverErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		code, ok := mysqlCodes[mysqlErr.Number]
		if !ok {
			code = CodeUnknown
		}
		return &DriverError{
			Code:     code,
			Errno:    int(mysqlErr.Number),
			SQLState: strings.TrimRight(string(mysqlErr.SQLState[:]), "\x00"),
			Message:  mysqlErr.Message,
			err:      err,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code, ok := postgresCodes[pgErr.Code]
		if !ok {
			code = CodeUnknown
		}
		return &DriverError{Code: code, SQLState: pgErr.Code, Message: pgErr.Message, err: err}
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return &DriverError{
			Code:    sqliteCode(sqliteErr.Code(), sqliteErr.Error()),
			Errno:   sqliteErr.Code(),
			Message: sqliteErr.Error(),
			err:     err,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &DriverError{
			Code:    CodeConnectionRefused,
			Errno:   int(syscall.ECONNREFUSED),
			Message: err.Error(),
			err:     err,
		}
	}

	return &DriverError{Code: CodeUnknown, Message: err.Error(), err: err}
}

// sqliteCode maps an extended sqlite result code. Builds without extended codes only report
// the primary code, so constraint failures are told apart by their message.
func sqliteCode(code int, message string) Code {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return CodeDuplicateEntry
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return CodeBadNull
	case sqlite3.SQLITE_AUTH:
		return CodeAccessDenied
	case sqlite3.SQLITE_TOOBIG:
		return CodeDataTooLong
	}
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		if strings.Contains(message, "NOT NULL") {
			return CodeBadNull
		}
		if strings.Contains(message, "UNIQUE") {
			return CodeDuplicateEntry
		}
	case sqlite3.SQLITE_ERROR:
		if strings.Contains(message, "no such table") {
			return CodeNoSuchTable
		}
		if strings.Contains(message, "syntax error") {
			return CodeParseError
		}
	case sqlite3.SQLITE_CANTOPEN:
		return CodeBadDatabase
	}
	return CodeUnknown
}
