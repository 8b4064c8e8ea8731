package device

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var _ Proxy = (*Endpoint)(nil)

// Options configures a new Endpoint.
type Options struct {
	// UniqueStorageKey identifies the endpoint to the host across restarts.
	UniqueStorageKey string

	// Mode controls how the host exposes the endpoint.
	Mode Mode
}

// ClusterSpec declares a cluster and its initial attribute values.
type ClusterSpec struct {
	ID         ClusterID
	Attributes map[string]any
	Events     []string

	// ReadOnly clusters reject writes made through the Proxy interface.
	// Only the ClusterHandle returned by AddCluster can change them.
	ReadOnly bool
}

type cluster struct {
	attributes map[string]any
	events     map[string]struct{}
	readOnly   bool
}

// Endpoint is a device instance: a set of clusters plus command handlers.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners run on the caller's goroutine after the lock is released.
type Endpoint struct {
	id          string
	deviceTypes []DeviceType
	mode        Mode

	mu        sync.RWMutex
	clusters  map[ClusterID]*cluster
	order     []ClusterID
	handlers  map[string]CommandHandler
	listeners map[int]Listener
	nextID    int

	logger Logger
}

// NewEndpoint creates an endpoint with the given device types. The
// Descriptor cluster is added automatically.
func NewEndpoint(deviceTypes []DeviceType, opts Options) *Endpoint {
	types := make([]DeviceType, len(deviceTypes))
	copy(types, deviceTypes)

	e := &Endpoint{
		id:          opts.UniqueStorageKey,
		deviceTypes: types,
		mode:        opts.Mode,
		clusters:    make(map[ClusterID]*cluster),
		handlers:    make(map[string]CommandHandler),
		listeners:   make(map[int]Listener),
		logger:      noopLogger{},
	}

	e.clusters[ClusterDescriptor] = &cluster{
		attributes: map[string]any{
			AttrDeviceTypeList: types,
			AttrServerList:     []ClusterID{ClusterDescriptor},
		},
		readOnly: true,
	}
	e.order = []ClusterID{ClusterDescriptor}

	return e
}

// SetLogger sets the logger used for command dispatch.
func (e *Endpoint) SetLogger(logger Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// ID returns the endpoint's unique storage key.
func (e *Endpoint) ID() string {
	return e.id
}

// Mode returns how the host should expose the endpoint.
func (e *Endpoint) Mode() Mode {
	return e.mode
}

// DeviceTypes returns a copy of the endpoint's device types.
func (e *Endpoint) DeviceTypes() []DeviceType {
	types := make([]DeviceType, len(e.deviceTypes))
	copy(types, e.deviceTypes)
	return types
}

// ClusterHandle is the owner's write access to a cluster.
type ClusterHandle struct {
	endpoint *Endpoint
	id       ClusterID
}

// Set writes an attribute, bypassing the read-only flag.
func (h *ClusterHandle) Set(attribute string, value any) error {
	return h.endpoint.setAttribute(h.id, attribute, value, true)
}

// AddCluster adds a capability block to the endpoint.
//
// Returns:
//   - *ClusterHandle: Owner write access to the new cluster
//   - error: ErrClusterExists if the cluster was already added
func (e *Endpoint) AddCluster(spec ClusterSpec) (*ClusterHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.clusters[spec.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrClusterExists, spec.ID)
	}

	c := &cluster{
		attributes: make(map[string]any, len(spec.Attributes)),
		events:     make(map[string]struct{}, len(spec.Events)),
		readOnly:   spec.ReadOnly,
	}
	for name, value := range spec.Attributes {
		c.attributes[name] = value
	}
	for _, ev := range spec.Events {
		c.events[ev] = struct{}{}
	}

	e.clusters[spec.ID] = c
	e.order = append(e.order, spec.ID)

	serverList := make([]ClusterID, len(e.order))
	copy(serverList, e.order)
	e.clusters[ClusterDescriptor].attributes[AttrServerList] = serverList

	return &ClusterHandle{endpoint: e, id: spec.ID}, nil
}

// HasCluster reports whether the endpoint carries the cluster.
func (e *Endpoint) HasCluster(id ClusterID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.clusters[id]
	return ok
}

// Behaviors returns the endpoint's clusters in the order they were added.
func (e *Endpoint) Behaviors() []ClusterID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ClusterID, len(e.order))
	copy(out, e.order)
	return out
}

// GetAttribute reads an attribute value.
func (e *Endpoint) GetAttribute(clusterID ClusterID, attribute string) (any, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.clusters[clusterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, clusterID)
	}
	value, ok := c.attributes[attribute]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, clusterID, attribute)
	}
	return value, nil
}

// SetAttribute writes an attribute value. The new value must have the same
// Go type as the current one. Listeners are notified only when the value changes.
func (e *Endpoint) SetAttribute(clusterID ClusterID, attribute string, value any) error {
	return e.setAttribute(clusterID, attribute, value, false)
}

func (e *Endpoint) setAttribute(clusterID ClusterID, attribute string, value any, owner bool) error {
	e.mu.Lock()

	c, ok := e.clusters[clusterID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClusterNotFound, clusterID)
	}
	if c.readOnly && !owner {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadOnlyCluster, clusterID)
	}
	previous, ok := c.attributes[attribute]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, clusterID, attribute)
	}
	if reflect.TypeOf(previous) != reflect.TypeOf(value) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s.%s is %T, got %T", ErrAttributeType, clusterID, attribute, previous, value)
	}
	if reflect.DeepEqual(previous, value) {
		e.mu.Unlock()
		return nil
	}

	c.attributes[attribute] = value
	listeners := e.listenersLocked()
	e.mu.Unlock()

	change := AttributeChange{
		EndpointID: e.id,
		Cluster:    clusterID,
		Attribute:  attribute,
		Previous:   previous,
		Value:      value,
	}
	for _, l := range listeners {
		l.AttributeChanged(change)
	}
	return nil
}

// TriggerEvent raises a declared cluster event.
func (e *Endpoint) TriggerEvent(clusterID ClusterID, event string, payload map[string]any) error {
	e.mu.RLock()
	c, ok := e.clusters[clusterID]
	if !ok {
		e.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrClusterNotFound, clusterID)
	}
	if _, ok := c.events[event]; !ok {
		e.mu.RUnlock()
		return fmt.Errorf("%w: %s.%s", ErrEventNotSupported, clusterID, event)
	}
	listeners := e.listenersLocked()
	e.mu.RUnlock()

	notice := EventNotice{
		EndpointID: e.id,
		Cluster:    clusterID,
		Event:      event,
		Payload:    make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		notice.Payload[k] = v
	}
	for _, l := range listeners {
		l.EventTriggered(notice)
	}
	return nil
}

// AddCommandHandler registers the handler for a command, replacing any previous one.
func (e *Endpoint) AddCommandHandler(command string, handler CommandHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[command] = handler
}

// Commands returns the names of commands with a registered handler, sorted.
func (e *Endpoint) Commands() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteCommand delivers a command to its handler.
//
// Returns:
//   - error: ErrCommandNotSupported if no handler exists, else the handler's error
func (e *Endpoint) ExecuteCommand(ctx context.Context, command string, req CommandRequest) error {
	e.mu.RLock()
	handler, ok := e.handlers[command]
	logger := e.logger
	e.mu.RUnlock()

	if !ok || handler == nil {
		return fmt.Errorf("%w: %s", ErrCommandNotSupported, command)
	}

	req.Command = command
	logger.Debug("dispatching command", "endpoint", e.id, "command", command)
	return handler(ctx, req)
}

// Subscribe registers a listener and returns a function that removes it.
func (e *Endpoint) Subscribe(l Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of every cluster's attributes.
func (e *Endpoint) Snapshot() map[ClusterID]map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[ClusterID]map[string]any, len(e.clusters))
	for id, c := range e.clusters {
		attrs := make(map[string]any, len(c.attributes))
		for name, value := range c.attributes {
			attrs[name] = cloneValue(value)
		}
		out[id] = attrs
	}
	return out
}

// listenersLocked returns listeners in registration order. Caller holds e.mu.
func (e *Endpoint) listenersLocked() []Listener {
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.listeners[id])
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []DeviceType:
		return append([]DeviceType(nil), t...)
	case []ClusterID:
		return append([]ClusterID(nil), t...)
	default:
		return v
	}
}
