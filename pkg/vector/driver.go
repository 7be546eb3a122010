// Package vector provides the contract for the vector table the index is
// stored in, plus the types that flow through it.
package vector

import (
	"context"
	"iter"
	"regexp"
)

// CaptionField is the only text field a table can filter or index on.
const CaptionField = "caption"

// Item is one indexed image: its caption record plus a unit embedding.
type Item struct {
	Filename string
	Caption  string
	Path     string
	Vector   []float32
}

// Hit is a row returned by a vector search.
type Hit struct {
	Filename string
	Caption  string
	Path     string

	// Distance is the cosine distance to the query vector (lower = closer).
	Distance float64
}

// TextHit is a row returned by a caption text search.
type TextHit struct {
	Filename string
	Caption  string
	Path     string

	// Score is the backend's relevance score (higher = better).
	Score float64
}

// Contains restricts a search to rows whose Field contains Substring.
// Matching is case-sensitive. Backends must bind Substring as a query
// parameter, never splice it into query text.
type Contains struct {
	Field     string
	Substring string
}

// Validate checks that the predicate targets a filterable field.
func (c *Contains) Validate() error {
	if c == nil {
		return nil
	}
	if c.Field != CaptionField {
		return ErrUnsupportedFilter
	}
	return nil
}

// Query is a single nearest-neighbour request. A non-nil Filter is applied
// before ranking, so it decides which rows can be returned at all.
type Query struct {
	Vector []float32
	Filter *Contains
	Limit  int
}

// Store manages named vector tables.
type Store interface {
	// TableNames lists the tables in the store.
	TableNames(ctx context.Context) ([]string, error)

	// HasTable reports whether a table with the given name exists.
	HasTable(ctx context.Context, name string) (bool, error)

	// DropTable removes a table and its text index. Dropping a missing table
	// returns ErrTableNotFound.
	DropTable(ctx context.Context, name string) error

	// CreateTable creates a table and fills it from batches in one bulk load.
	// The sequence is consumed once, incrementally. Creating a table that
	// already exists is an error; callers drop first.
	CreateTable(ctx context.Context, name string, batches iter.Seq[[]Item]) (Table, error)

	// OpenTable opens an existing table, or returns ErrTableNotFound.
	OpenTable(ctx context.Context, name string) (Table, error)

	// Close releases any resources held by the store.
	Close() error
}

// Table is a built vector table. It is immutable once built.
type Table interface {
	// Name returns the table name.
	Name() string

	// BuildID identifies the bulk load that produced the table.
	BuildID() string

	// Dimensions returns the vector length of every row.
	Dimensions() int

	// Count returns the number of rows.
	Count(ctx context.Context) (int, error)

	// Search returns at most q.Limit hits ordered by ascending distance.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// CreateTextIndex builds the full-text index over field.
	CreateTextIndex(ctx context.Context, field string) error

	// TextSearch runs a keyword query against the text index.
	// Returns ErrNoTextIndex if CreateTextIndex has not run.
	TextSearch(ctx context.Context, text string, limit int) ([]TextHit, error)
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName rejects names that are not plain SQL identifiers.
// Table names end up in DDL, which cannot take bound parameters.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return ErrInvalidTableName
	}
	return nil
}
