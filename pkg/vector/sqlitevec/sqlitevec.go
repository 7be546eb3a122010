// Package sqlitevec provides a SQLite-backed vector store using sqlite-vec.
//
// Each table is a plain row table holding the item fields and the raw vector
// BLOB, mirrored by a vec0 virtual table for KNN queries. The caption text
// index is a bleve index kept next to the database file.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/lookbook/pkg/vector"
)

const (
	// registryTable records the dimensions and build of every table.
	registryTable = "lookbook_tables"

	// vecSuffix names the vec0 table mirroring a row table.
	vecSuffix = "__vec"

	memoryPath = ":memory:"
)

// Store implements vector.Store using SQLite with sqlite-vec.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
	logger     *slog.Logger

	mu      sync.Mutex
	indexes map[string]*textIndex
}

// Config holds configuration for the SQLite vec store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewStore opens (or creates) a SQLite vector store backed by sqlite-vec.
func NewStore(c Config, logger *slog.Logger) (*Store, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Every connection to ":memory:" is a separate database.
	if c.DBPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + registryTable + ` (
			name TEXT PRIMARY KEY,
			dimensions INTEGER NOT NULL,
			build_id TEXT NOT NULL,
			text_field TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table registry: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("sqlite-vec vector store initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Store{
		db:         db,
		path:       c.DBPath,
		dimensions: int(c.Dimensions),
		logger:     logger,
		indexes:    make(map[string]*textIndex),
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// quote returns name as a quoted SQL identifier. Names are validated before
// they get here.
func quote(name string) string {
	return `"` + name + `"`
}

// TableNames lists the tables in the store.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM `+registryTable+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HasTable reports whether a table with the given name exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	if err := vector.ValidateTableName(name); err != nil {
		return false, err
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+registryTable+` WHERE name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

// DropTable removes the row table, its vec0 mirror, its registry entry and
// its text index.
func (s *Store) DropTable(ctx context.Context, name string) error {
	ok, err := s.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return vector.ErrTableNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS ` + quote(name+vecSuffix),
		`DROP TABLE IF EXISTS ` + quote(name),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping table %s: %w", name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+registryTable+` WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregistering table %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	if err := s.dropTextIndex(name); err != nil {
		return err
	}

	s.logger.Debug("dropped sqlite-vec table", "table", name)
	return nil
}

// CreateTable creates name and fills it from batches inside a single
// transaction. If any batch fails to load, nothing is left behind.
func (s *Store) CreateTable(ctx context.Context, name string, batches iter.Seq[[]vector.Item]) (vector.Table, error) {
	if err := vector.ValidateTableName(name); err != nil {
		return nil, err
	}
	if name == registryTable {
		return nil, vector.ErrInvalidTableName
	}

	exists, err := s.HasTable(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, vector.ErrTableExists
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ddl := []string{
		`CREATE TABLE ` + quote(name) + ` (
			rowid INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			caption TEXT NOT NULL,
			path TEXT NOT NULL,
			vector BLOB NOT NULL
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING vec0(embedding float[%d] distance_metric=cosine)`,
			quote(name+vecSuffix), s.dimensions),
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating table %s: %w", name, err)
		}
	}

	insertRow, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quote(name)+`(filename, caption, path, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing row insert: %w", err)
	}
	defer insertRow.Close()

	insertVec, err := tx.PrepareContext(ctx,
		`INSERT INTO `+quote(name+vecSuffix)+`(rowid, embedding) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing vector insert: %w", err)
	}
	defer insertVec.Close()

	var (
		rows    int
		loadErr error
	)
	for batch := range batches {
		if loadErr = ctx.Err(); loadErr != nil {
			break
		}
		for _, item := range batch {
			if len(item.Vector) != s.dimensions {
				loadErr = fmt.Errorf("%w: %s has %d dimensions, table expects %d",
					vector.ErrDimensionMismatch, item.Filename, len(item.Vector), s.dimensions)
				break
			}

			blob := serializeFloat32(item.Vector)
			res, err := insertRow.ExecContext(ctx, item.Filename, item.Caption, item.Path, blob)
			if err != nil {
				loadErr = fmt.Errorf("inserting %s: %w", item.Filename, err)
				break
			}
			rowID, err := res.LastInsertId()
			if err != nil {
				loadErr = fmt.Errorf("getting rowid for %s: %w", item.Filename, err)
				break
			}
			if _, err := insertVec.ExecContext(ctx, rowID, blob); err != nil {
				loadErr = fmt.Errorf("inserting embedding for %s: %w", item.Filename, err)
				break
			}
			rows++
		}
		if loadErr != nil {
			break
		}
	}
	if loadErr == nil {
		// A producer that stops early on cancellation must not commit.
		loadErr = ctx.Err()
	}
	if loadErr != nil {
		return nil, loadErr
	}

	buildID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+registryTable+`(name, dimensions, build_id, created_at) VALUES (?, ?, ?, ?)`,
		name, s.dimensions, buildID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("registering table %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("created sqlite-vec table", "table", name, "rows", rows, "build_id", buildID)

	return &Table{store: s, name: name, buildID: buildID, dimensions: s.dimensions}, nil
}

// OpenTable opens an existing table.
func (s *Store) OpenTable(ctx context.Context, name string) (vector.Table, error) {
	if err := vector.ValidateTableName(name); err != nil {
		return nil, err
	}

	t := &Table{store: s, name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, build_id, text_field FROM `+registryTable+` WHERE name = ?`, name,
	).Scan(&t.dimensions, &t.buildID, &t.textField)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vector.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening table %s: %w", name, err)
	}

	if t.dimensions != s.dimensions {
		return nil, fmt.Errorf("%w: table %s has %d dimensions, store configured for %d",
			vector.ErrDimensionMismatch, name, t.dimensions, s.dimensions)
	}

	return t, nil
}

// Close releases the database and any open text indexes.
func (s *Store) Close() error {
	s.mu.Lock()
	var errs []error
	for name, ti := range s.indexes {
		if err := ti.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing text index %s: %w", name, err))
		}
	}
	s.indexes = make(map[string]*textIndex)
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ vector.Store = (*Store)(nil)
