package indexer

import "fmt"

// Result contains statistics from an index build.
type Result struct {
	Table   string
	BuildID string

	// Rows is the number of rows in the built table.
	Rows int

	// Records is the number of well-formed caption records read.
	Records int

	// SkippedLines counts malformed caption store lines.
	SkippedLines int

	MissingAssets     int
	DecodeFailures    int
	FailedBatches     int
	DegenerateVectors int
}

// Summary returns a human-readable summary of the build.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Index %s built with %d records (build %s)\n"+
			"Read %d caption records, skipped %d malformed lines\n"+
			"Dropped: %d missing images, %d unreadable images, %d failed batches, %d degenerate vectors",
		r.Table, r.Rows, r.BuildID,
		r.Records, r.SkippedLines,
		r.MissingAssets, r.DecodeFailures, r.FailedBatches, r.DegenerateVectors,
	)
}
