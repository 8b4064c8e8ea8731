package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-evedoor/internal/device"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-evedoor/internal/platform"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single command handler.
	commandTimeout = 5 * time.Second

	// eventQueueSize bounds events waiting to be published.
	eventQueueSize = 32
)

var _ platform.Host = (*Host)(nil)

// MQTTClient is the subset of the MQTT client the bridge uses.
// This allows mocking in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MetricWriter receives device telemetry. Satisfied by *influxdb.Client.
type MetricWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
}

// Logger defines the logging interface used by the bridge.
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

// Options holds configuration for creating a Host.
type Options struct {
	// Config describes the host to the platform.
	Config config.HostConfig

	// Version overrides Config.Version when set.
	Version string

	// MQTT is optional. Without it nothing is published or subscribed.
	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte

	// Metrics is optional telemetry output.
	Metrics MetricWriter

	Logger Logger
}

type registration struct {
	endpoint    *device.Endpoint
	topicID     string
	unsubscribe func()
}

// Host exposes registered endpoints over MQTT and InfluxDB.
//
// Thread Safety: All methods are safe for concurrent use. Endpoint
// listeners never block on the network; publishing happens on the
// Host's own goroutine between Start and Stop.
type Host struct {
	cfg     config.HostConfig
	mqtt    MQTTClient
	topics  mqtt.Topics
	qos     byte
	metrics MetricWriter
	logger  Logger

	mu      sync.RWMutex
	devices map[string]*registration

	// Coalesced state publishing
	dirtyMu sync.Mutex
	dirty   map[string]struct{}
	wake    chan struct{}
	events  chan EventMessage

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a host. Call Start to begin publishing.
func New(opts Options) *Host {
	cfg := opts.Config
	if opts.Version != "" {
		cfg.Version = opts.Version
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	topics := opts.Topics
	if topics.Prefix == "" {
		topics = mqtt.NewTopics("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		cfg:       cfg,
		mqtt:      opts.MQTT,
		topics:    topics,
		qos:       opts.QoS,
		metrics:   opts.Metrics,
		logger:    logger,
		devices:   make(map[string]*registration),
		dirty:     make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
		events:    make(chan EventMessage, eventQueueSize),
		ctx:       ctx,
		ctxCancel: cancel,
		done:      make(chan struct{}),
	}
}

// Version returns the host version reported to platforms.
func (h *Host) Version() string { return h.cfg.Version }

// Directory returns the platform state directory.
func (h *Host) Directory() string { return h.cfg.Directory }

// BridgeMode returns "bridge" or "childbridge".
func (h *Host) BridgeMode() string { return h.cfg.BridgeMode }

// Start begins publishing queued state and events.
func (h *Host) Start() {
	h.startOnce.Do(func() {
		if h.mqtt == nil {
			return
		}
		h.wg.Add(1)
		go h.publishLoop()
		h.logger.Info("bridge host started", "prefix", h.topics.Prefix)
	})
}

// Stop publishes any pending state, then stops the publisher.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.ctxCancel()
		h.wg.Wait()
		h.logger.Info("bridge host stopped")
	})
}

// DeviceCount returns the number of registered endpoints.
func (h *Host) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// RegisterDevice exposes ep. Its state is published retained, its events
// are forwarded, and its command topic is subscribed.
//
// Returns:
//   - error: ErrAlreadyRegistered for a duplicate ID, or the subscribe failure
func (h *Host) RegisterDevice(_ context.Context, ep *device.Endpoint) error {
	id := TopicID(ep.ID())
	if id == "" {
		return fmt.Errorf("%w: endpoint has no storage key", ErrUnknownDevice)
	}

	reg := &registration{endpoint: ep, topicID: id}
	reg.unsubscribe = ep.Subscribe(endpointListener{host: h, topicID: id})

	h.mu.Lock()
	if _, exists := h.devices[id]; exists {
		h.mu.Unlock()
		reg.unsubscribe()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	h.devices[id] = reg
	h.mu.Unlock()

	if h.mqtt != nil {
		if err := h.mqtt.Subscribe(h.topics.AllDeviceCommands(id), h.qos, h.handleCommand); err != nil {
			h.mu.Lock()
			delete(h.devices, id)
			h.mu.Unlock()
			reg.unsubscribe()
			return fmt.Errorf("subscribing to %s commands: %w", id, err)
		}
	}

	h.markDirty(id)

	h.logger.Info("device registered", "device", ep.ID(), "topic_id", id, "mode", string(ep.Mode()))
	return nil
}

// UnregisterAllDevices withdraws every endpoint: listeners are removed,
// command topics unsubscribed and retained state cleared.
func (h *Host) UnregisterAllDevices(_ context.Context) error {
	h.mu.Lock()
	regs := h.devices
	h.devices = make(map[string]*registration)
	h.mu.Unlock()

	var errs []error
	for id, reg := range regs {
		reg.unsubscribe()
		if h.mqtt != nil {
			if err := h.mqtt.Unsubscribe(h.topics.AllDeviceCommands(id)); err != nil {
				errs = append(errs, fmt.Errorf("unsubscribing %s: %w", id, err))
			}
			// An empty retained message deletes the retained state.
			if err := h.mqtt.Publish(h.topics.DeviceState(id), nil, h.qos, true); err != nil {
				errs = append(errs, fmt.Errorf("clearing %s state: %w", id, err))
			}
		}
		h.logger.Info("device unregistered", "device", reg.endpoint.ID())
	}

	return errors.Join(errs...)
}

// endpointListener forwards one endpoint's changes to the host.
type endpointListener struct {
	host    *Host
	topicID string
}

func (l endpointListener) AttributeChanged(change device.AttributeChange) {
	l.host.markDirty(l.topicID)
	l.host.writeMetric(l.topicID, change)
}

func (l endpointListener) EventTriggered(ev device.EventNotice) {
	l.host.enqueueEvent(EventMessage{
		DeviceID:  l.topicID,
		Cluster:   string(ev.Cluster),
		Event:     ev.Event,
		Payload:   ev.Payload,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Host) markDirty(id string) {
	if h.mqtt == nil {
		return
	}
	h.dirtyMu.Lock()
	h.dirty[id] = struct{}{}
	h.dirtyMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Host) enqueueEvent(msg EventMessage) {
	if h.mqtt == nil {
		return
	}
	select {
	case h.events <- msg:
	default:
		h.logger.Warn("event queue full, dropping event", "device", msg.DeviceID, "event", msg.Event)
	}
}

func (h *Host) writeMetric(id string, change device.AttributeChange) {
	if h.metrics == nil {
		return
	}
	value, ok := metricValue(change.Value)
	if !ok {
		return
	}
	h.metrics.WriteDeviceMetric(id, string(change.Cluster)+"."+change.Attribute, value)
}

// publishLoop is the single publisher goroutine.
func (h *Host) publishLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			h.flushDirty()
			return
		case <-h.wake:
			h.flushDirty()
		case msg := <-h.events:
			h.publishEvent(msg)
		}
	}
}

func (h *Host) flushDirty() {
	h.dirtyMu.Lock()
	ids := h.dirty
	h.dirty = make(map[string]struct{})
	h.dirtyMu.Unlock()

	// Held so a concurrent unregister cannot clear state before it is republished.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id := range ids {
		reg, ok := h.devices[id]
		if !ok {
			continue
		}
		h.publishState(reg)
	}
}

func (h *Host) publishState(reg *registration) {
	msg := StateMessage{
		DeviceID:  reg.topicID,
		Name:      reg.endpoint.ID(),
		Mode:      reg.endpoint.Mode(),
		Clusters:  reg.endpoint.Snapshot(),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal state", "device", reg.topicID, "error", err)
		return
	}
	if err := h.mqtt.Publish(h.topics.DeviceState(reg.topicID), payload, h.qos, true); err != nil {
		h.logger.Warn("failed to publish state", "device", reg.topicID, "error", err)
	}
}

func (h *Host) publishEvent(msg EventMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event", "device", msg.DeviceID, "error", err)
		return
	}
	topic := h.topics.DeviceEvent(msg.DeviceID, msg.Cluster, msg.Event)
	if err := h.mqtt.Publish(topic, payload, h.qos, false); err != nil {
		h.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// handleCommand dispatches a message from a command topic to its endpoint.
func (h *Host) handleCommand(topic string, payload []byte) error {
	id, command, ok := h.topics.ParseDeviceCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	h.mu.RLock()
	reg, ok := h.devices[id]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	req, err := decodeCommand(payload)
	if err != nil {
		h.logger.Warn("rejected command", "device", id, "command", command, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(h.ctx, commandTimeout)
	defer cancel()

	h.logger.Debug("received command", "device", id, "command", command)
	if err := reg.endpoint.ExecuteCommand(ctx, command, req); err != nil {
		h.logger.Warn("command failed", "device", id, "command", command, "error", err)
		return err
	}
	return nil
}

// decodeCommand parses a JSON object of command fields. An empty payload
// is a command without fields.
func decodeCommand(payload []byte) (device.CommandRequest, error) {
	if len(payload) == 0 {
		return device.CommandRequest{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return device.CommandRequest{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return device.CommandRequest{Fields: fields}, nil
}
