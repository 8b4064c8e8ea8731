package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
)

// Attribute names exposed on the EveHistory cluster.
const (
	AttrTimesOpened = "timesOpened"
	AttrLastEvent   = "lastEvent"
	AttrEntryCount  = "entryCount"
)

const (
	// DefaultQueueSize bounds pending store writes.
	DefaultQueueSize = 64

	// DefaultMaxEntries leaves the in-memory entry list unbounded for the
	// aggregator's lifetime. The store keeps every entry regardless.
	DefaultMaxEntries = 0

	// writeTimeout bounds a single store operation on the writer goroutine.
	writeTimeout = 5 * time.Second
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDebug makes every flush log the full entry list.
func WithDebug(debug bool) Option {
	return func(a *Aggregator) { a.debug = debug }
}

// WithQueueSize sets the pending write capacity. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithMaxEntries caps the in-memory entry list, dropping the oldest entries.
// Values below 1 are ignored and keep the list unbounded.
func WithMaxEntries(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxEntries = n
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithRetention prunes stored entries older than d on every flush. Zero disables pruning.
func WithRetention(d time.Duration) Option {
	return func(a *Aggregator) { a.retention = d }
}

type opKind int

const (
	opAppend opKind = iota
	opSummary
)

type writeOp struct {
	kind    opKind
	entry   Entry
	summary Summary
}

// Aggregator keeps a device's usage history in memory and persists it
// through a Store on a single background writer.
//
// Mutations never block on storage. When the write queue is full the
// write is dropped and logged; the in-memory aggregate stays authoritative
// and is saved in full on the next flush.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Close must be called to stop the writer and release the store.
type Aggregator struct {
	store    Store
	deviceID string
	logger   Logger
	debug    bool
	now      func() time.Time

	queueSize  int
	maxEntries int
	retention  time.Duration

	mu        sync.Mutex
	agg       Aggregate
	closed    bool
	cluster   *device.ClusterHandle
	autoPilot bool

	// syncMu serialises cluster updates so the last one written is the latest state.
	syncMu sync.Mutex

	writes    chan writeOp
	flushReq  chan bool
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAggregator creates an aggregator for deviceID, restores any
// persisted summary and recent entries from store, and starts the writer.
//
// Parameters:
//   - ctx: Bounds the restore queries only
//   - store: Durable backing store; owned by the aggregator from here on
//   - deviceID: Key the history is stored under
//   - opts: Optional settings
//
// Returns:
//   - *Aggregator: Running aggregator; caller must Close it
//   - error: ErrInvalidDeviceID, or a restore failure other than ErrNotFound
func NewAggregator(ctx context.Context, store Store, deviceID string, opts ...Option) (*Aggregator, error) {
	if deviceID == "" {
		return nil, ErrInvalidDeviceID
	}

	a := &Aggregator{
		store:      store,
		deviceID:   deviceID,
		logger:     noopLogger{},
		now:        time.Now,
		queueSize:  DefaultQueueSize,
		maxEntries: DefaultMaxEntries,
		stop:       make(chan struct{}),
		flushReq:   make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.agg.Entries = make([]Entry, 0)

	if err := a.restore(ctx); err != nil {
		return nil, err
	}

	a.writes = make(chan writeOp, a.queueSize)
	a.wg.Add(1)
	go a.run()

	return a, nil
}

func (a *Aggregator) restore(ctx context.Context) error {
	summary, err := a.store.LoadSummary(ctx, a.deviceID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("restoring history summary: %w", err)
	}

	limit := a.maxEntries
	if limit <= 0 || limit > maxEntryLimit {
		limit = maxEntryLimit
	}
	recent, err := a.store.RecentEntries(ctx, a.deviceID, limit)
	if err != nil {
		return fmt.Errorf("restoring history entries: %w", err)
	}

	// Stored newest first; memory keeps insertion order.
	entries := make([]Entry, len(recent))
	for i, e := range recent {
		entries[len(recent)-1-i] = e
	}

	a.agg = Aggregate{
		TimesOpened: summary.TimesOpened,
		LastEvent:   summary.LastEvent,
		Entries:     entries,
	}
	a.logger.Info("history restored",
		"device", a.deviceID,
		"times_opened", summary.TimesOpened,
		"entries", len(entries),
	)
	return nil
}

// DeviceID returns the key the history is stored under.
func (a *Aggregator) DeviceID() string {
	return a.deviceID
}

// Now returns the current time in whole seconds since the Unix epoch.
func (a *Aggregator) Now() int64 {
	return a.now().Unix()
}

// AddToTimesOpened increments the opened counter.
func (a *Aggregator) AddToTimesOpened() {
	a.mu.Lock()
	a.agg.TimesOpened++
	a.enqueueLocked(writeOp{kind: opSummary, summary: a.summaryLocked()})
	a.mu.Unlock()

	a.syncCluster()
}

// SetLastEvent stamps the last-event time with the current time.
func (a *Aggregator) SetLastEvent() {
	a.mu.Lock()
	a.agg.LastEvent = a.now().Unix()
	a.enqueueLocked(writeOp{kind: opSummary, summary: a.summaryLocked()})
	a.mu.Unlock()

	a.syncCluster()
}

// AddEntry appends a contact sample.
func (a *Aggregator) AddEntry(entry Entry) {
	a.mu.Lock()
	a.agg.Entries = append(a.agg.Entries, entry)
	if over := len(a.agg.Entries) - a.maxEntries; a.maxEntries > 0 && over > 0 {
		a.agg.Entries = append(a.agg.Entries[:0:0], a.agg.Entries[over:]...)
	}
	a.enqueueLocked(writeOp{kind: opAppend, entry: entry})
	a.mu.Unlock()

	if a.debug {
		a.logger.Debug("history entry added", "device", a.deviceID, "time", entry.Time, "contact", entry.Contact)
	}
	a.syncCluster()
}

// TimesOpened returns the opened counter.
func (a *Aggregator) TimesOpened() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agg.TimesOpened
}

// Snapshot returns a copy of the current aggregate.
func (a *Aggregator) Snapshot() Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]Entry, len(a.agg.Entries))
	copy(entries, a.agg.Entries)
	return Aggregate{
		TimesOpened: a.agg.TimesOpened,
		LastEvent:   a.agg.LastEvent,
		Entries:     entries,
	}
}

// LogHistory asks the writer to log the aggregate and save the summary.
// It never blocks; requests made while one is pending are coalesced.
func (a *Aggregator) LogHistory(verbose bool) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}

	select {
	case a.flushReq <- verbose:
	default:
	}
}

// AttachCluster adds a read-only EveHistory cluster to ep that mirrors the
// aggregate once AutoPilot is enabled.
func (a *Aggregator) AttachCluster(ep *device.Endpoint) error {
	snap := a.Snapshot()
	handle, err := ep.AddCluster(device.ClusterSpec{
		ID: device.ClusterEveHistory,
		Attributes: map[string]any{
			AttrTimesOpened: snap.TimesOpened,
			AttrLastEvent:   snap.LastEvent,
			AttrEntryCount:  len(snap.Entries),
		},
		ReadOnly: true,
	})
	if err != nil {
		return fmt.Errorf("adding history cluster: %w", err)
	}

	a.mu.Lock()
	a.cluster = handle
	a.mu.Unlock()
	return nil
}

// AutoPilot starts mirroring every mutation onto the attached cluster.
//
// Returns:
//   - error: ErrNotAttached if AttachCluster has not succeeded
func (a *Aggregator) AutoPilot() error {
	a.mu.Lock()
	if a.cluster == nil {
		a.mu.Unlock()
		return ErrNotAttached
	}
	a.autoPilot = true
	a.mu.Unlock()

	a.syncCluster()
	return nil
}

// StoredEntries reads entries back from the store, newest first.
func (a *Aggregator) StoredEntries(ctx context.Context, limit int) ([]Entry, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return a.store.RecentEntries(ctx, a.deviceID, limit)
}

// Close drains pending writes, stops the writer and closes the store.
// Only the first call does any work; later calls return nil.
func (a *Aggregator) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()

		close(a.stop)
		a.wg.Wait()

		err = a.store.Close()
	})
	return err
}

func (a *Aggregator) summaryLocked() Summary {
	return Summary{TimesOpened: a.agg.TimesOpened, LastEvent: a.agg.LastEvent}
}

// enqueueLocked must be called with mu held so it cannot race Close.
func (a *Aggregator) enqueueLocked(op writeOp) {
	if a.closed {
		return
	}
	select {
	case a.writes <- op:
	default:
		a.logger.Warn("history write queue full, dropping write",
			"device", a.deviceID,
			"queue_size", a.queueSize,
		)
	}
}

func (a *Aggregator) syncCluster() {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	a.mu.Lock()
	handle := a.cluster
	enabled := a.autoPilot
	timesOpened := a.agg.TimesOpened
	lastEvent := a.agg.LastEvent
	count := len(a.agg.Entries)
	a.mu.Unlock()

	if handle == nil || !enabled {
		return
	}

	for attr, value := range map[string]any{
		AttrTimesOpened: timesOpened,
		AttrLastEvent:   lastEvent,
		AttrEntryCount:  count,
	} {
		if err := handle.Set(attr, value); err != nil {
			a.logger.Warn("history cluster update failed", "attribute", attr, "error", err)
		}
	}
}

// run is the single writer goroutine.
func (a *Aggregator) run() {
	defer a.wg.Done()

	for {
		select {
		case op := <-a.writes:
			a.apply(op)
		case verbose := <-a.flushReq:
			a.flush(verbose)
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *Aggregator) drain() {
	for {
		select {
		case op := <-a.writes:
			a.apply(op)
		case verbose := <-a.flushReq:
			a.flush(verbose)
		default:
			return
		}
	}
}

func (a *Aggregator) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch op.kind {
	case opAppend:
		err = a.store.AppendEntry(ctx, a.deviceID, op.entry)
	case opSummary:
		err = a.store.SaveSummary(ctx, a.deviceID, op.summary)
	}
	if err != nil {
		a.logger.Error("history write failed", "device", a.deviceID, "error", err)
	}
}

func (a *Aggregator) flush(verbose bool) {
	snap := a.Snapshot()

	a.logger.Info("history",
		"device", a.deviceID,
		"times_opened", snap.TimesOpened,
		"last_event", snap.LastEvent,
		"entries", len(snap.Entries),
	)
	if verbose || a.debug {
		for i, e := range snap.Entries {
			a.logger.Debug("history entry", "index", i, "time", e.Time, "contact", e.Contact)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := a.store.SaveSummary(ctx, a.deviceID, Summary{TimesOpened: snap.TimesOpened, LastEvent: snap.LastEvent}); err != nil {
		a.logger.Error("saving history summary failed", "device", a.deviceID, "error", err)
	}

	if a.retention <= 0 {
		return
	}
	pruner, ok := a.store.(Pruner)
	if !ok {
		return
	}
	n, err := pruner.PruneEntries(ctx, a.retention)
	if err != nil {
		a.logger.Warn("pruning history failed", "device", a.deviceID, "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("pruned history entries", "device", a.deviceID, "deleted", n)
	}
}
