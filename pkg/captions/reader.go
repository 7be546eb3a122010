package captions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Reader streams records from a caption store.
type Reader struct {
	path    string
	skipped int
	err     error
}

// NewReader returns a Reader over the store at path. Nothing is opened until
// All is ranged over.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// All yields every well-formed record, one line at a time. Malformed lines,
// including a torn final line from an interrupted write, are counted and
// skipped. A missing store yields nothing. Check Err afterwards for I/O
// failures.
func (r *Reader) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		r.skipped = 0
		r.err = nil

		f, err := os.Open(r.path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.err = fmt.Errorf("opening caption store: %w", err)
			}
			return
		}
		defer f.Close()

		br := bufio.NewReader(f)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				rec, ok := parseLine(line)
				switch {
				case ok:
					if !yield(rec) {
						return
					}
				case strings.TrimSpace(line) != "":
					r.skipped++
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) {
					r.err = fmt.Errorf("reading caption store: %w", err)
				}
				return
			}
		}
	}
}

// Skipped returns the number of malformed lines seen by the last pass.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Err returns the I/O error that ended the last pass, if any.
func (r *Reader) Err() error {
	return r.err
}

// ScanProcessed returns the set of filenames already in the store. A missing
// store is an empty set.
func ScanProcessed(path string) (map[string]struct{}, error) {
	processed := make(map[string]struct{})

	r := NewReader(path)
	for rec := range r.All() {
		processed[rec.Filename] = struct{}{}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return processed, nil
}
