// Package curator captions a directory of images into the caption store.
// Runs are resumable: images already in the store are never captioned again.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/lookbook/pkg/captions"
	"github.com/papercomputeco/lookbook/pkg/eventstream"
	"github.com/papercomputeco/lookbook/pkg/eventstream/nop"
	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
)

const (
	// DefaultBatchSize is the number of images per caption call.
	DefaultBatchSize = 64

	// DefaultPrompt is the caption task sent with every batch.
	DefaultPrompt = "<MORE_DETAILED_CAPTION>"
)

// Config configures a Curator.
type Config struct {
	// Models supplies the captioner. It is only loaded once there is
	// something to caption.
	Models *models.Provider

	// BatchSize is the number of images per caption call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// Prompt is the task instruction passed to the captioner.
	// Defaults to DefaultPrompt if empty.
	Prompt string

	// Debounce is how long Watch waits for directory events to settle.
	// Defaults to DefaultDebounce if zero.
	Debounce time.Duration

	// Events receives an images captioned event after every run that
	// captions at least one image. Defaults to a no-op publisher.
	Events eventstream.Publisher

	Logger *slog.Logger
}

// Stats summarises one ProcessDirectory run.
type Stats struct {
	Discovered       int
	AlreadyProcessed int
	Captioned        int
	DecodeFailures   int
	CaptionFailures  int
	Batches          int
}

// Curator drives a Captioner over image directories.
type Curator struct {
	models    *models.Provider
	batchSize int
	prompt    string
	debounce  time.Duration
	events    eventstream.Publisher
	logger    *slog.Logger

	done  atomic.Int64
	total atomic.Int64
}

// New creates a Curator.
func New(c Config) (*Curator, error) {
	if c.Models == nil {
		return nil, errors.New("curator requires a model provider")
	}

	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	prompt := c.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	debounce := c.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	events := c.Events
	if events == nil {
		events = nop.NewPublisher()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Curator{
		models:    c.Models,
		batchSize: batchSize,
		prompt:    prompt,
		debounce:  debounce,
		events:    events,
		logger:    logger,
	}, nil
}

// Progress returns the number of pending images handled so far in the
// current run and the number pending when it started.
func (c *Curator) Progress() (done, total int) {
	return int(c.done.Load()), int(c.total.Load())
}

// ProcessDirectory captions every image in sourceDir that is not yet in the
// store at storePath. Images are captioned in batches and each record is
// synced to disk as it is written, so an interrupted run loses at most the
// batch in flight. Unreadable images and failed caption calls are logged and
// skipped; the run continues.
func (c *Curator) ProcessDirectory(ctx context.Context, sourceDir, storePath string) (Stats, error) {
	var stats Stats

	assets, err := imagefs.Discover(sourceDir)
	if err != nil {
		return stats, err
	}
	stats.Discovered = len(assets)

	// The resume scan runs under the writer lock so records appended by a
	// writer that released the store just before us are seen.
	w, err := captions.OpenWriter(storePath)
	if err != nil {
		return stats, err
	}
	defer w.Close()

	processed, err := captions.ScanProcessed(storePath)
	if err != nil {
		return stats, err
	}

	pending := make([]imagefs.Asset, 0, len(assets))
	for _, asset := range assets {
		if _, ok := processed[asset.Filename]; ok {
			stats.AlreadyProcessed++
			c.logger.Debug("skipping captioned image", "filename", asset.Filename, "path", asset.Path)
			continue
		}
		processed[asset.Filename] = struct{}{}
		pending = append(pending, asset)
	}

	c.total.Store(int64(len(pending)))
	c.done.Store(0)

	if len(pending) == 0 {
		c.logger.Info("caption store is up to date", "discovered", stats.Discovered, "store", storePath)
		return stats, nil
	}

	batch := make([]imagefs.Image, 0, c.batchSize)
	for _, asset := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		img, err := imagefs.Load(asset)
		if err != nil {
			stats.DecodeFailures++
			c.done.Add(1)
			c.logger.Warn("skipping unreadable image", "filename", asset.Filename, "error", err)
			continue
		}

		batch = append(batch, img)
		if len(batch) < c.batchSize {
			continue
		}

		if err := c.flush(ctx, w, batch, &stats); err != nil {
			return stats, err
		}
		batch = batch[:0]
	}

	if len(batch) > 0 {
		if err := c.flush(ctx, w, batch, &stats); err != nil {
			return stats, err
		}
	}

	c.logger.Info("curation complete",
		"discovered", stats.Discovered,
		"already_processed", stats.AlreadyProcessed,
		"captioned", stats.Captioned,
		"decode_failures", stats.DecodeFailures,
		"caption_failures", stats.CaptionFailures,
		"batches", stats.Batches,
	)

	if stats.Captioned > 0 {
		c.publish(ctx, storePath, stats)
	}

	return stats, nil
}

func (c *Curator) publish(ctx context.Context, storePath string, stats Stats) {
	event := eventstream.NewEvent(eventstream.EventTypeImagesCaptioned, eventstream.EventSource{
		CaptionStore: storePath,
	})
	event.Curation = &eventstream.CurationMeta{
		Discovered:      stats.Discovered,
		Captioned:       stats.Captioned,
		DecodeFailures:  stats.DecodeFailures,
		CaptionFailures: stats.CaptionFailures,
	}

	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warn("could not publish images captioned event", "store", storePath, "error", err)
	}
}

// flush captions one batch and appends its records. A failed caption call
// drops the batch; only store write failures and cancellation are returned.
func (c *Curator) flush(ctx context.Context, w *captions.Writer, batch []imagefs.Image, stats *Stats) error {
	defer c.done.Add(int64(len(batch)))
	stats.Batches++

	captioner, err := c.models.Captioner()
	if err != nil {
		return fmt.Errorf("loading captioner: %w", err)
	}

	raw, err := captioner.Caption(ctx, batch, c.prompt)
	if err == nil && len(raw) != len(batch) {
		err = fmt.Errorf("%w: got %d captions for %d images", models.ErrCaptioning, len(raw), len(batch))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.CaptionFailures += len(batch)
		c.logger.Error("dropping caption batch",
			"images", len(batch),
			"first", batch[0].Filename,
			"error", err,
		)
		return nil
	}

	for i, img := range batch {
		rec := captions.Record{
			Filename: img.Filename,
			Caption:  models.CleanCaption(raw[i], c.prompt),
			Path:     img.Path,
		}
		if err := w.Append(rec); err != nil {
			return err
		}
		stats.Captioned++
	}

	c.logger.Debug("flushed caption batch", "images", len(batch), "batch", stats.Batches)
	return nil
}
