// Package captions reads and writes the caption store: an append-only JSONL
// file with one {"filename","caption","path"} object per line.
package captions

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrLocked is returned by OpenWriter when another writer holds the store.
var ErrLocked = errors.New("caption store is locked by another writer")

// Record is one captioned image. Filename is the store key.
type Record struct {
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
	Path     string `json:"path"`
}

// parseLine decodes one store line. Blank lines, malformed JSON and records
// without a filename report ok=false.
func parseLine(line string) (Record, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Record{}, false
	}
	if rec.Filename == "" {
		return Record{}, false
	}
	return rec, true
}
