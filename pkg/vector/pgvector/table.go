package pgvector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/papercomputeco/lookbook/pkg/vector"
)

// Table is a built pgvector table.
type Table struct {
	store      *Store
	name       string
	buildID    string
	dimensions int
	textField  string
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// BuildID returns the ID of the build that created the table.
func (t *Table) BuildID() string { return t.buildID }

// Dimensions returns the vector dimensions the table was built with.
func (t *Table) Dimensions() int { return t.dimensions }

// Count returns the number of rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+ident(t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", t.name, err)
	}
	return n, nil
}

// Search orders rows by cosine distance (<=>) to q.Vector. A filter restricts
// rows with strpos(caption, $2) > 0, which is case-sensitive, before ranking.
func (t *Table) Search(ctx context.Context, q vector.Query) ([]vector.Hit, error) {
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	if len(q.Vector) != t.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, table expects %d",
			vector.ErrDimensionMismatch, len(q.Vector), t.dimensions)
	}
	if q.Limit <= 0 {
		return []vector.Hit{}, nil
	}

	var (
		query string
		args  []any
	)
	if q.Filter != nil {
		query = `
			SELECT filename, caption, path, (embedding <=> $1)::float8 AS distance
			FROM ` + ident(t.name) + `
			WHERE strpos(caption, $2) > 0
			ORDER BY distance
			LIMIT $3`
		args = []any{pgv.NewVector(q.Vector), q.Filter.Substring, q.Limit}
	} else {
		query = `
			SELECT filename, caption, path, (embedding <=> $1)::float8 AS distance
			FROM ` + ident(t.name) + `
			ORDER BY embedding <=> $1
			LIMIT $2`
		args = []any{pgv.NewVector(q.Vector), q.Limit}
	}

	rows, err := t.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vector.Hit, error) {
		var h vector.Hit
		err := row.Scan(&h.Filename, &h.Caption, &h.Path, &h.Distance)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning query results: %w", err)
	}

	t.store.logger.Debug("queried pgvector",
		"table", t.name,
		"filtered", q.Filter != nil,
		"results", len(hits),
	)
	return hits, nil
}

// CreateTextIndex builds a GIN index over the English tsvector of the
// caption column.
func (t *Table) CreateTextIndex(ctx context.Context, field string) error {
	if field != vector.CaptionField {
		return vector.ErrUnsupportedFilter
	}

	err := pgx.BeginFunc(ctx, t.store.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`CREATE INDEX ON `+ident(t.name)+` USING gin (to_tsvector('english', caption))`,
		); err != nil {
			return fmt.Errorf("creating text index on %s: %w", t.name, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE `+registryTable+` SET text_field = $1 WHERE name = $2`, field, t.name,
		); err != nil {
			return fmt.Errorf("recording text index for %s: %w", t.name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.textField = field
	t.store.logger.Debug("built caption text index", "table", t.name)
	return nil
}

// TextSearch matches captions against a websearch-style query and returns
// rows by descending ts_rank.
func (t *Table) TextSearch(ctx context.Context, text string, limit int) ([]vector.TextHit, error) {
	if t.textField == "" {
		return nil, vector.ErrNoTextIndex
	}
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return []vector.TextHit{}, nil
	}

	rows, err := t.store.pool.Query(ctx, `
		SELECT filename, caption, path,
			ts_rank(to_tsvector('english', caption), q)::float8 AS score
		FROM `+ident(t.name)+`, websearch_to_tsquery('english', $1) q
		WHERE to_tsvector('english', caption) @@ q
		ORDER BY score DESC, id
		LIMIT $2`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vector.TextHit, error) {
		var h vector.TextHit
		err := row.Scan(&h.Filename, &h.Caption, &h.Path, &h.Score)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning text search results: %w", err)
	}
	return hits, nil
}

var _ vector.Table = (*Table)(nil)
