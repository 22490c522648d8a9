package database

// Kind tells which variant of a Result is set.
type Kind uint8

const (
	// KindRows means a query returned at least one row. Value holds the rows.
	KindRows Kind = iota
	// KindAck means a write statement completed. Value holds the acknowledgment.
	KindAck
	// KindEmpty means a query completed but matched no rows.
	KindEmpty
	// KindDriverError means the driver or the database rejected the statement. Err is set.
	KindDriverError
)

func (k Kind) String() string {
	switch k {
	case KindRows:
		return "rows"
	case KindAck:
		return "ack"
	case KindEmpty:
		return "empty"
	case KindDriverError:
		return "driver_error"
	}
	return "unknown"
}

// Result is the outcome of a single statement.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   *DriverError
}

// Acknowledgment is returned by the driver after a write statement.
type Acknowledgment struct {
	AffectedRows int64 `json:"affectedRows"`
	InsertId     int64 `json:"insertId"`
}

func rowsResult[T any](rows T) Result[T] {
	return Result[T]{Kind: KindRows, Value: rows}
}

func ackResult(ack Acknowledgment) Result[Acknowledgment] {
	return Result[Acknowledgment]{Kind: KindAck, Value: ack}
}

func emptyResult[T any]() Result[T] {
	return Result[T]{Kind: KindEmpty}
}

func failedResult[T any](err *DriverError) Result[T] {
	return Result[T]{Kind: KindDriverError, Err: err}
}
