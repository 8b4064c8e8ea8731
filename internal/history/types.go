package history

import (
	"context"
	"time"
)

// Contact values recorded in an Entry.
const (
	ContactClosed = 0
	ContactOpen   = 1
)

// EncodeContact converts a contact state (true = closed) to its entry value.
func EncodeContact(closed bool) int {
	if closed {
		return ContactClosed
	}
	return ContactOpen
}

// Entry is one recorded contact sample.
type Entry struct {
	// Time is seconds since the Unix epoch.
	Time int64 `json:"time"`

	// Contact is ContactClosed or ContactOpen.
	Contact int `json:"contact"`
}

// Summary is the persisted part of the aggregate that is not per-entry.
type Summary struct {
	TimesOpened int   `json:"times_opened"`
	LastEvent   int64 `json:"last_event,omitempty"`
}

// Aggregate is a point-in-time copy of the usage history.
type Aggregate struct {
	TimesOpened int `json:"times_opened"`

	// LastEvent is seconds since the Unix epoch; zero means no event yet.
	LastEvent int64   `json:"last_event,omitempty"`
	Entries   []Entry `json:"entries"`
}

// Store persists history durably.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// AppendEntry records one contact sample.
	AppendEntry(ctx context.Context, deviceID string, entry Entry) error

	// SaveSummary replaces the device's summary.
	SaveSummary(ctx context.Context, deviceID string, summary Summary) error

	// LoadSummary returns the device's summary, or ErrNotFound.
	LoadSummary(ctx context.Context, deviceID string) (Summary, error)

	// RecentEntries returns up to limit entries, newest first.
	RecentEntries(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Close releases the store. Later calls return ErrClosed.
	Close() error
}

// Pruner is implemented by stores that can drop old entries.
type Pruner interface {
	PruneEntries(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Logger defines the logging interface used by the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
