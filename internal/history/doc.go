// Package history keeps the door sensor's usage history.
//
// The Aggregator is the in-memory system of record: times opened, the time
// of the last event, and a rolling list of contact entries. Every mutation
// is also queued to a single writer goroutine that persists it to a Store,
// so the simulation tick never waits on disk.
//
// The Aggregator can expose itself on a device endpoint as the read-only
// EveHistory cluster. With auto-pilot enabled the cluster's attributes track
// the aggregate after every change.
//
// Close drains queued writes, waits for the writer, and closes the store
// exactly once. Mutations after Close only update memory.
package history
