package sqlitevec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/papercomputeco/lookbook/pkg/vector"
)

// textIndexBatchSize is the number of documents per bleve batch.
const textIndexBatchSize = 500

// captionDocument is what gets indexed for each row. The document ID is the
// row's rowid.
type captionDocument struct {
	Caption string `json:"caption"`
}

func captionMapping() mapping.IndexMapping {
	field := bleve.NewTextFieldMapping()
	field.Analyzer = en.AnalyzerName

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(vector.CaptionField, field)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// textIndexPath returns where the bleve index for table lives on disk, or ""
// for in-memory stores.
func (s *Store) textIndexPath(table string) string {
	if s.path == memoryPath {
		return ""
	}
	return s.path + "." + table + ".bleve"
}

// textIndex is an open bleve index and the table build it was made from.
// Document IDs are rowids, so an index is only valid for its own build.
type textIndex struct {
	buildID string
	index   bleve.Index
}

// openTextIndex returns the index for the given build of table. A cached
// index from an earlier build, for instance one replaced by another process
// sharing the database, is closed and the current one is opened from disk.
// On-disk indexes are opened read-only.
func (s *Store) openTextIndex(table, buildID string) (bleve.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ti, ok := s.indexes[table]; ok {
		if ti.buildID == buildID {
			return ti.index, nil
		}
		delete(s.indexes, table)
		if err := ti.index.Close(); err != nil {
			s.logger.Warn("closing stale text index", "table", table, "error", err)
		}
		s.logger.Debug("text index replaced by a newer build", "table", table, "build_id", buildID)
	}

	path := s.textIndexPath(table)
	if path == "" {
		return nil, vector.ErrNoTextIndex
	}

	idx, err := bleve.OpenUsing(path, map[string]any{"read_only": true})
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, vector.ErrNoTextIndex
	}
	if err != nil {
		return nil, fmt.Errorf("opening text index for %s: %w", table, err)
	}

	s.indexes[table] = &textIndex{buildID: buildID, index: idx}
	return idx, nil
}

// newTextIndex replaces any existing index for table with an empty,
// writable one.
func (s *Store) newTextIndex(table string) (bleve.Index, error) {
	if err := s.dropTextIndex(table); err != nil {
		return nil, err
	}

	var (
		idx bleve.Index
		err error
	)
	if path := s.textIndexPath(table); path == "" {
		idx, err = bleve.NewMemOnly(captionMapping())
	} else {
		idx, err = bleve.New(path, captionMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("creating text index for %s: %w", table, err)
	}
	return idx, nil
}

// finishTextIndex makes a freshly built index available for searching. A
// memory index is cached as is. An on-disk index is closed, releasing its
// write lock, and reopened read-only on first search.
func (s *Store) finishTextIndex(table, buildID string, idx bleve.Index) error {
	if s.textIndexPath(table) != "" {
		if err := idx.Close(); err != nil {
			return fmt.Errorf("closing text index for %s: %w", table, err)
		}
		return nil
	}

	s.mu.Lock()
	s.indexes[table] = &textIndex{buildID: buildID, index: idx}
	s.mu.Unlock()
	return nil
}

// dropTextIndex closes and deletes the index for table, if any.
func (s *Store) dropTextIndex(table string) error {
	s.mu.Lock()
	ti, ok := s.indexes[table]
	delete(s.indexes, table)
	s.mu.Unlock()

	if ok {
		if err := ti.index.Close(); err != nil {
			return fmt.Errorf("closing text index for %s: %w", table, err)
		}
	}

	if path := s.textIndexPath(table); path != "" {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing text index for %s: %w", table, err)
		}
	}
	return nil
}

// CreateTextIndex indexes every caption in the table into a fresh bleve
// index and records it in the registry.
func (t *Table) CreateTextIndex(ctx context.Context, field string) error {
	if field != vector.CaptionField {
		return vector.ErrUnsupportedFilter
	}

	idx, err := t.store.newTextIndex(t.name)
	if err != nil {
		return err
	}

	indexed, err := t.indexCaptions(ctx, idx)
	if err != nil {
		_ = idx.Close()
		return err
	}
	if err := t.store.finishTextIndex(t.name, t.buildID, idx); err != nil {
		return err
	}

	if _, err := t.store.db.ExecContext(ctx,
		`UPDATE `+registryTable+` SET text_field = ? WHERE name = ?`, field, t.name,
	); err != nil {
		return fmt.Errorf("recording text index for %s: %w", t.name, err)
	}
	t.textField = field

	t.store.logger.Debug("built caption text index", "table", t.name, "documents", indexed)
	return nil
}

// indexCaptions writes one document per row, keyed by rowid.
func (t *Table) indexCaptions(ctx context.Context, idx bleve.Index) (int, error) {
	rows, err := t.store.db.QueryContext(ctx, `SELECT rowid, caption FROM `+quote(t.name))
	if err != nil {
		return 0, fmt.Errorf("reading captions from %s: %w", t.name, err)
	}
	defer rows.Close()

	batch := idx.NewBatch()
	indexed := 0
	for rows.Next() {
		var (
			rowID   int64
			caption string
		)
		if err := rows.Scan(&rowID, &caption); err != nil {
			return indexed, fmt.Errorf("scanning caption: %w", err)
		}
		if err := batch.Index(strconv.FormatInt(rowID, 10), captionDocument{Caption: caption}); err != nil {
			return indexed, fmt.Errorf("indexing row %d: %w", rowID, err)
		}
		indexed++

		if batch.Size() >= textIndexBatchSize {
			if err := idx.Batch(batch); err != nil {
				return indexed, fmt.Errorf("writing text index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if err := rows.Err(); err != nil {
		return indexed, fmt.Errorf("iterating captions: %w", err)
	}

	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return indexed, fmt.Errorf("writing text index batch: %w", err)
		}
	}
	return indexed, nil
}

// TextSearch runs a match query over the caption index, analysed with the
// English analyzer, and returns rows by descending relevance.
func (t *Table) TextSearch(ctx context.Context, text string, limit int) ([]vector.TextHit, error) {
	if t.textField == "" {
		return nil, vector.ErrNoTextIndex
	}
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return []vector.TextHit{}, nil
	}

	idx, err := t.store.openTextIndex(t.name, t.buildID)
	if err != nil {
		return nil, err
	}

	query := bleve.NewMatchQuery(text)
	query.SetField(vector.CaptionField)

	req := bleve.NewSearchRequest(query)
	req.Size = limit

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}

	hits := make([]vector.TextHit, 0, len(res.Hits))
	for _, match := range res.Hits {
		rowID, err := strconv.ParseInt(match.ID, 10, 64)
		if err != nil {
			continue
		}

		h := vector.TextHit{Score: match.Score}
		err = t.store.db.QueryRowContext(ctx,
			`SELECT filename, caption, path FROM `+quote(t.name)+` WHERE rowid = ?`, rowID,
		).Scan(&h.Filename, &h.Caption, &h.Path)
		if err != nil {
			return nil, fmt.Errorf("loading row %d: %w", rowID, err)
		}
		hits = append(hits, h)
	}

	return hits, nil
}
