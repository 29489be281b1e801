// Package watcher defines the ingestion contract and the shared run
// loop that drives every concrete watcher. A watcher observes one
// source and materializes new work as action files in Needs_Action.
package watcher

// Item is one candidate unit of work observed by a watcher.
type Item struct {
	// ID deduplicates the item within its source.
	ID string
	// Kind is the action type tag recorded in the materialized file
	// (for example "file_drop", "email").
	Kind string
	// Title is a short human-readable summary.
	Title string
	// Meta holds source-specific key/value metadata.
	Meta map[string]string
	// Payload is source-specific: a file path for the drop folder,
	// message body text for mail and feed items.
	Payload string
}

// Watcher is the capability interface every ingestion source
// implements. The engine provides the loop (see Runner); a watcher only
// knows how to observe its source and write one action file.
type Watcher interface {
	// Name identifies the watcher in journal entries and logs.
	Name() string

	// Init prepares the external dependency. Returning an error means
	// the watcher declines to start; its loop is never entered.
	Init() error

	// Poll returns items observed since the last call. "Nothing new"
	// is a nil slice, not an error.
	Poll() ([]Item, error)

	// Materialize writes the action file for one item and returns its
	// path. An item that fails to materialize is not claimed; the
	// source will offer it again.
	Materialize(item Item) (string, error)

	// Close releases any OS resources held by the watcher.
	Close() error
}
