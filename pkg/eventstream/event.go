package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeImagesCaptioned is emitted after a curation run appends
	// captions to the caption store.
	EventTypeImagesCaptioned = "lookbook.images.captioned"

	// EventTypeIndexBuilt is emitted after a vector table is rebuilt.
	EventTypeIndexBuilt = "lookbook.index.built"
)

// Event is a transport-neutral pipeline event payload. Exactly one of
// Curation or Build is set, matching EventType.
type Event struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`

	Curation *CurationMeta `json:"curation,omitempty"`
	Build    *BuildMeta    `json:"build,omitempty"`
}

// EventSource identifies which store or table the event concerns.
type EventSource struct {
	CaptionStore string `json:"caption_store,omitempty"`
	Table        string `json:"table,omitempty"`
}

// CurationMeta summarises one curation run.
type CurationMeta struct {
	Discovered      int `json:"discovered"`
	Captioned       int `json:"captioned"`
	DecodeFailures  int `json:"decode_failures"`
	CaptionFailures int `json:"caption_failures"`
}

// BuildMeta summarises one index build.
type BuildMeta struct {
	BuildID       string `json:"build_id"`
	Rows          int    `json:"rows"`
	Records       int    `json:"records"`
	MissingAssets int    `json:"missing_assets"`
	Dropped       int    `json:"dropped"`
	DurationMs    int64  `json:"duration_ms"`
}

// NewEvent returns an event of the given type stamped with a fresh ID and
// the current time.
func NewEvent(eventType string, source EventSource) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
	}
}

// Key is the partition key for the event. Events about the same table or
// caption store land on the same partition so consumers see them in order.
func (e *Event) Key() string {
	if e.Source.Table != "" {
		return e.Source.Table
	}
	return e.Source.CaptionStore
}
