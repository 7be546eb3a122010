package vector

import "errors"

var (
	// ErrTableNotFound is returned when the named table has not been built.
	ErrTableNotFound = errors.New("vector table not found")

	// ErrTableExists is returned by CreateTable when the table is already there.
	ErrTableExists = errors.New("vector table already exists")

	// ErrInvalidTableName is returned for names that are not plain identifiers.
	ErrInvalidTableName = errors.New("invalid vector table name")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the table's configured dimensions.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFilter is returned for predicates on non-caption fields.
	ErrUnsupportedFilter = errors.New("unsupported filter field")

	// ErrNoTextIndex is returned by TextSearch before CreateTextIndex.
	ErrNoTextIndex = errors.New("text index not built")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
