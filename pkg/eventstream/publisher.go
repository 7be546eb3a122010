// Package eventstream publishes pipeline events (curation runs, index
// builds) to an event stream backend so downstream consumers can react to a
// rebuilt index.
package eventstream

import "context"

// Publisher publishes pipeline events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
