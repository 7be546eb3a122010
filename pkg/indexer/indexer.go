// Package indexer embeds the images named in the caption store and bulk
// loads them into a fresh vector table.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/papercomputeco/lookbook/pkg/captions"
	"github.com/papercomputeco/lookbook/pkg/eventstream"
	"github.com/papercomputeco/lookbook/pkg/eventstream/nop"
	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
	"github.com/papercomputeco/lookbook/pkg/vector"
)

const (
	// DefaultBatchSize is the number of images per embedding call.
	DefaultBatchSize = 64

	// DefaultTable is the vector table searched and rebuilt by default.
	DefaultTable = "fashion_items"
)

var (
	// ErrBuildInProgress is returned when another process holds the build lock.
	ErrBuildInProgress = errors.New("another index build is in progress")

	// ErrNoCaptionStore is returned when the caption store does not exist.
	ErrNoCaptionStore = errors.New("caption store not found")
)

// Config configures an Indexer.
type Config struct {
	Store  vector.Store
	Models *models.Provider

	// Table is the name of the table to rebuild.
	// Defaults to DefaultTable if empty.
	Table string

	// BatchSize is the number of images per embedding call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// LockPath, when set, is a lock file that serialises builds across
	// processes.
	LockPath string

	// Events receives an index built event after each successful build.
	// Defaults to a no-op publisher.
	Events eventstream.Publisher

	Logger *slog.Logger
}

// Indexer rebuilds a vector table from the caption store.
type Indexer struct {
	store     vector.Store
	models    *models.Provider
	table     string
	batchSize int
	lockPath  string
	events    eventstream.Publisher
	logger    *slog.Logger
}

// New creates an Indexer.
func New(c Config) (*Indexer, error) {
	if c.Store == nil {
		return nil, errors.New("indexer requires a vector store")
	}
	if c.Models == nil {
		return nil, errors.New("indexer requires a model provider")
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}
	if err := vector.ValidateTableName(table); err != nil {
		return nil, err
	}

	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	events := c.Events
	if events == nil {
		events = nop.NewPublisher()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		store:     c.Store,
		models:    c.Models,
		table:     table,
		batchSize: batchSize,
		lockPath:  c.LockPath,
		events:    events,
		logger:    logger,
	}, nil
}

// BuildIndex drops the table if it exists, then streams the caption store
// through the embedder into a new table in one bulk load and builds the
// caption text index over it.
//
// Records whose image is gone are skipped silently; undecodable images,
// failed embedding batches and degenerate vectors are logged and skipped.
// None of these abort the build.
func (ix *Indexer) BuildIndex(ctx context.Context, storePath string) (*Result, error) {
	if _, err := os.Stat(storePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCaptionStore, storePath)
		}
		return nil, fmt.Errorf("checking caption store: %w", err)
	}

	if ix.lockPath != "" {
		unlock, err := ix.lock()
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	// Load the embedder before touching the table so a missing model never
	// costs the existing index.
	embedder, err := ix.models.Embedder()
	if err != nil {
		return nil, err
	}

	exists, err := ix.store.HasTable(ctx, ix.table)
	if err != nil {
		return nil, err
	}
	if exists {
		ix.logger.Warn("dropping existing table", "table", ix.table)
		if err := ix.store.DropTable(ctx, ix.table); err != nil {
			return nil, fmt.Errorf("dropping table %s: %w", ix.table, err)
		}
	}

	started := time.Now()
	buildCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	result := &Result{Table: ix.table}

	ix.logger.Info("starting ingestion", "table", ix.table, "captions", storePath, "batch_size", ix.batchSize)

	table, err := ix.store.CreateTable(buildCtx, ix.table, ix.items(buildCtx, cancel, storePath, embedder, result))
	if err != nil {
		if cause := context.Cause(buildCtx); cause != nil {
			return nil, cause
		}
		return nil, err
	}
	result.BuildID = table.BuildID()

	ix.logger.Info("creating caption text index", "table", ix.table)
	if err := table.CreateTextIndex(ctx, vector.CaptionField); err != nil {
		return nil, fmt.Errorf("creating text index: %w", err)
	}

	rows, err := table.Count(ctx)
	if err != nil {
		return nil, err
	}
	result.Rows = rows

	ix.logger.Info("index built",
		"table", ix.table,
		"rows", result.Rows,
		"records", result.Records,
		"missing_assets", result.MissingAssets,
		"decode_failures", result.DecodeFailures,
		"failed_batches", result.FailedBatches,
		"degenerate_vectors", result.DegenerateVectors,
	)

	ix.publish(ctx, storePath, result, time.Since(started))

	return result, nil
}

// publish announces a finished build. A failed publish does not fail the
// build; the table is already live.
func (ix *Indexer) publish(ctx context.Context, storePath string, result *Result, took time.Duration) {
	event := eventstream.NewEvent(eventstream.EventTypeIndexBuilt, eventstream.EventSource{
		CaptionStore: storePath,
		Table:        result.Table,
	})
	event.Build = &eventstream.BuildMeta{
		BuildID:       result.BuildID,
		Rows:          result.Rows,
		Records:       result.Records,
		MissingAssets: result.MissingAssets,
		Dropped:       result.DecodeFailures + result.DegenerateVectors + result.FailedBatches,
		DurationMs:    took.Milliseconds(),
	}

	if err := ix.events.Publish(ctx, event); err != nil {
		ix.logger.Warn("could not publish index built event", "table", result.Table, "error", err)
	}
}

func (ix *Indexer) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(ix.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(ix.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring build lock: %w", err)
	}
	if !ok {
		return nil, ErrBuildInProgress
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			ix.logger.Warn("releasing build lock", "error", err)
		}
	}, nil
}

// items streams embedded, normalised batches out of the caption store. A
// read error cancels ctx with that error as the cause, which makes the store
// abandon the load.
func (ix *Indexer) items(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	storePath string,
	embedder models.Embedder,
	result *Result,
) iter.Seq[[]vector.Item] {
	return func(yield func([]vector.Item) bool) {
		var (
			records = make([]captions.Record, 0, ix.batchSize)
			images  = make([]imagefs.Image, 0, ix.batchSize)
		)

		flush := func() bool {
			if len(images) == 0 {
				return true
			}
			defer func() {
				records = records[:0]
				images = images[:0]
			}()

			batch, ok := ix.embed(ctx, embedder, records, images, result)
			if !ok {
				return false
			}
			if len(batch) == 0 {
				return true
			}
			return yield(batch)
		}

		reader := captions.NewReader(storePath)
		for rec := range reader.All() {
			if ctx.Err() != nil {
				return
			}
			result.Records++

			if _, err := os.Stat(rec.Path); err != nil {
				result.MissingAssets++
				ix.logger.Debug("skipping missing image", "filename", rec.Filename, "path", rec.Path)
				continue
			}

			img, err := imagefs.Load(imagefs.Asset{Filename: rec.Filename, Path: rec.Path})
			if err != nil {
				result.DecodeFailures++
				ix.logger.Error("indexing error", "filename", rec.Filename, "error", err)
				continue
			}

			records = append(records, rec)
			images = append(images, img)
			if len(images) >= ix.batchSize {
				if !flush() {
					return
				}
			}
		}

		result.SkippedLines = reader.Skipped()
		if err := reader.Err(); err != nil {
			cancel(err)
			return
		}

		flush()
	}
}

// embed runs one embedding call and pairs each unit vector with its record.
// It reports false only when ctx is done.
func (ix *Indexer) embed(
	ctx context.Context,
	embedder models.Embedder,
	records []captions.Record,
	images []imagefs.Image,
	result *Result,
) ([]vector.Item, bool) {
	vectors, err := embedder.EmbedImages(ctx, images)
	if err == nil && len(vectors) != len(images) {
		err = fmt.Errorf("%w: got %d vectors for %d images", models.ErrEmbedding, len(vectors), len(images))
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		result.FailedBatches++
		ix.logger.Error("dropping embedding batch",
			"first", records[0].Filename,
			"size", len(images),
			"error", err,
		)
		return nil, true
	}

	batch := make([]vector.Item, 0, len(vectors))
	for i, v := range vectors {
		unit, err := models.Normalize(v)
		if err != nil {
			result.DegenerateVectors++
			ix.logger.Warn("dropping degenerate embedding", "filename", records[i].Filename, "error", err)
			continue
		}
		batch = append(batch, vector.Item{
			Filename: records[i].Filename,
			Caption:  records[i].Caption,
			Path:     records[i].Path,
			Vector:   unit,
		})
	}
	return batch, true
}
