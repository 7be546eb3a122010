package sqlitevec

import (
	"context"
	"fmt"

	"github.com/papercomputeco/lookbook/pkg/vector"
)

// knnMaxK is the largest k a vec0 KNN query accepts. Larger limits fall back
// to an exact scan.
const knnMaxK = 4096

// Table is a built sqlite-vec table.
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
	if err := t.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(t.name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", t.name, err)
	}
	return n, nil
}

// Search returns the q.Limit rows nearest to q.Vector by cosine distance.
//
// Without a filter this is a vec0 KNN query. With a filter, rows are first
// restricted by instr(caption, ?), which is case-sensitive, and the
// survivors are ranked by an exact vec_distance_cosine scan.
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

	blob := serializeFloat32(q.Vector)

	var (
		query string
		args  []any
	)
	switch {
	case q.Filter != nil:
		query = `
			SELECT filename, caption, path, vec_distance_cosine(vector, ?) AS distance
			FROM ` + quote(t.name) + `
			WHERE instr(caption, ?) > 0
			ORDER BY distance
			LIMIT ?`
		args = []any{blob, q.Filter.Substring, q.Limit}

	case q.Limit > knnMaxK:
		query = `
			SELECT filename, caption, path, vec_distance_cosine(vector, ?) AS distance
			FROM ` + quote(t.name) + `
			ORDER BY distance
			LIMIT ?`
		args = []any{blob, q.Limit}

	default:
		// KNN via vec0 MATCH, then JOIN back to the row table.
		query = `
			SELECT r.filename, r.caption, r.path, v.distance
			FROM ` + quote(t.name+vecSuffix) + ` v
			INNER JOIN ` + quote(t.name) + ` r ON r.rowid = v.rowid
			WHERE v.embedding MATCH ?
				AND v.k = ?
			ORDER BY v.distance`
		args = []any{blob, q.Limit}
	}

	rows, err := t.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := []vector.Hit{}
	for rows.Next() {
		var h vector.Hit
		if err := rows.Scan(&h.Filename, &h.Caption, &h.Path, &h.Distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	t.store.logger.Debug("queried sqlite-vec",
		"table", t.name,
		"filtered", q.Filter != nil,
		"results", len(hits),
	)

	return hits, nil
}

// Items returns every row, vectors included, in insertion order.
func (t *Table) Items(ctx context.Context) ([]vector.Item, error) {
	rows, err := t.store.db.QueryContext(ctx,
		`SELECT filename, caption, path, vector FROM `+quote(t.name)+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading rows from %s: %w", t.name, err)
	}
	defer rows.Close()

	var items []vector.Item
	for rows.Next() {
		var (
			item vector.Item
			blob []byte
		)
		if err := rows.Scan(&item.Filename, &item.Caption, &item.Path, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if item.Vector, err = deserializeFloat32(blob); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

var _ vector.Table = (*Table)(nil)
